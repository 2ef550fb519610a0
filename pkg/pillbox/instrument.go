package pillbox

import (
	"time"

	"go.uber.org/zap"
)

type DeviceInstrument struct {
	RecordTime func(endpoint string, requestTime time.Duration)
}

func RecordTimer(name string, instrument []DeviceInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func debugLoggerInstrumentation(logger *zap.Logger) *DeviceInstrument {
	if logger == nil || !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &DeviceInstrument{
		RecordTime: func(endpoint string, requestTime time.Duration) {
			logger.Sugar().Debugf("pillbox [%s]: %d millis", endpoint, requestTime.Milliseconds())
		},
	}
}
