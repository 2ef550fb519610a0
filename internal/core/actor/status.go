package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/pillbox2mqtt/internal/config"
	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// StatusActor probes the device periodically. The device actor publishes the
// resulting state, this actor only tracks connectivity transitions.
type StatusActor struct {
	config      *config.Config
	deviceActor *actor.PID
	scheduler   *scheduler.TimerScheduler
	cancelTick  scheduler.CancelFunc

	probed    bool
	connected bool
	since     time.Time
	failures  int

	logger *zap.Logger
}

type statusTick struct{}

func NewStatusActor(config *config.Config, deviceActor *actor.PID, logger *zap.Logger) *StatusActor {
	return &StatusActor{
		config:      config,
		deviceActor: deviceActor,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_STATUS, logger),
	}
}

func (state *StatusActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("status@default started", zap.Duration("interval", state.config.Device.PollInterval()))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		// first probe right away, then every poll interval
		ctx.Send(ctx.Self(), statusTick{})
	case *actor.Stopping, *actor.Restarting:
		if state.cancelTick != nil {
			state.cancelTick()
			state.cancelTick = nil
		}
	case statusTick:
		state.logger.Debug("status@default tick")
		timeout := 2*state.config.Device.Timeout() + time.Second
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.deviceActor, domain.DeviceProbeRequest{}, timeout), func(err error) any {
			return domain.DeviceProbeResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
			}
		})
	case domain.DeviceProbeResponse:
		if msg.HasResponseError() {
			state.logger.Warn("status@default probe failed", zap.Error(msg.GetResponseError()))
		}
		state.track(msg.Connected && !msg.HasResponseError())
		state.cancelTick = state.scheduler.RequestOnce(state.config.Device.PollInterval(), ctx.Self(), statusTick{})
	case domain.ActorHealthRequest:
		state.logger.Debug("status@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_STATUS,
			Healthy: true,
			State:   state.stateName(),
		})
	default:
		state.logger.Debug("status@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *StatusActor) track(connected bool) {
	if connected {
		state.failures = 0
	} else {
		state.failures++
	}
	if state.probed && state.connected == connected {
		return
	}
	if connected {
		state.logger.Info("status: device connected")
	} else {
		state.logger.Warn("status: device unreachable")
	}
	state.probed = true
	state.connected = connected
	state.since = time.Now()
}

func (state *StatusActor) stateName() string {
	if !state.probed {
		return "waiting"
	}
	if state.connected {
		return fmt.Sprintf("connected since %s", state.since.Format(time.DateTime))
	}
	return fmt.Sprintf("disconnected since %s (%d failed probes)", state.since.Format(time.DateTime), state.failures)
}
