package events

import (
	"testing"

	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"
	"github.com/stretchr/testify/assert"
)

func TestDeviceStateEvents(t *testing.T) {

	assert := assert.New(t)

	state := pillbox.DeviceState{Address: "192.168.1.50", Connected: true, Status: "OK"}
	evs := DeviceStateEvents(state, REASON_PROBE)

	assert.Len(evs, 4)
	connected, ok := evs[0].(domain.BinarySensorUpdateEvent)
	assert.True(ok)
	assert.Equal(domain.SENSOR_ID_DEVICE_CONNECTED, connected.SensorId())
	assert.True(connected.Value)

	status, ok := evs[1].(domain.TextSensorUpdateEvent)
	assert.True(ok)
	assert.Equal("OK", status.Value)

	snapshot, ok := evs[3].(domain.DeviceStateUpdateEvent)
	assert.True(ok)
	assert.Equal(state, snapshot.State)
	assert.Equal(REASON_PROBE, snapshot.Reason)
}
