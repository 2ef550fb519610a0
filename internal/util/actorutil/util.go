package actorutil

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/internal/mqtt"
	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

var ErrUnknownEntity = errors.New("mqtt command: unknown entity")

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel, zap.PanicLevel, zap.FatalLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps a button press or number set to the device
// request it stands for.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.DeviceRequest, error) {
	switch cmd.Command {
	case mqtt.COMMAND_BUTTON:
		switch cmd.DeviceId {
		case domain.BUTTON_ID_OPEN:
			return domain.DeviceCommandRequest{Command: pillbox.Open()}, nil
		case domain.BUTTON_ID_CLOSE:
			return domain.DeviceCommandRequest{Command: pillbox.Close()}, nil
		case domain.BUTTON_ID_SELF_TEST:
			return domain.DeviceCommandRequest{Command: pillbox.SelfTest()}, nil
		case domain.BUTTON_ID_PROBE:
			return domain.DeviceProbeRequest{}, nil
		}
		if rawSlot, ok := strings.CutPrefix(cmd.DeviceId, "dispense_slot_"); ok {
			slot, err := strconv.Atoi(rawSlot)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, cmd.DeviceId)
			}
			return domain.DeviceCommandRequest{Command: pillbox.Dispense(slot)}, nil
		}
	case mqtt.COMMAND_NUMBER:
		if cmd.DeviceId == domain.INPUT_NUMBER_ID_DISPENSE {
			value, err := strconv.ParseFloat(cmd.Payload, 64)
			if err != nil || value != math.Trunc(value) {
				return nil, fmt.Errorf("%w: slot must be an integer, got %q", mqtt.ErrInvalidPayload, cmd.Payload)
			}
			return domain.DeviceCommandRequest{Command: pillbox.Dispense(int(value))}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrUnknownEntity, cmd.Command, cmd.DeviceId)
}
