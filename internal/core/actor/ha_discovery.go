package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/pillbox2mqtt/internal/config"
	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

var ErrDiscoveryDependencies = errors.New("hadiscovery: mqtt or device actor not healthy")

// HADiscoveryActor announces the bridge entities once MQTT and the device
// actor are up, then stays idle.
type HADiscoveryActor struct {
	config             *config.Config
	behavior           actor.Behavior
	stash              *actorutil.Stash
	deviceActor        *actor.PID
	mqttActor          *actor.PID
	deviceActorHealthy bool
	mqttActorHealthy   bool
	healthyRecv        int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, deviceActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		deviceActor: deviceActor,
		mqttActor:   mqttActor,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check Device and MQTT actor healthy
		state.healthyRecv = 0
		state.deviceActorHealthy = false
		state.mqttActorHealthy = false
		// Device Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.deviceActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_DEVICE,
				Healthy: false,
			}
		})
		// MQTT Actor Request, answered once the broker subscription is done
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 10*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_DEVICE:
				state.deviceActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.deviceActorHealthy && state.mqttActorHealthy {
				// Ask the current address for the device configuration URL
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.deviceActor, domain.DeviceStateRequest{}, 2*time.Second), func(err error) any {
					return domain.DeviceStateResponse{
						ActorResponseMixIn: domain.ErrorResponse(err),
					}
				})
				state.behavior.Become(state.WaitingInfoReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(ErrDiscoveryDependencies)
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PublishDiscoveryResponse:
		if msg.HasResponseError() {
			state.logger.Error("hadiscovery@done publish failed", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Info("hadiscovery@done entities announced")
		}
	}
}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.DeviceStateResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@info: DeviceStateResponse", zap.Any("response", msg))

		ctx.Send(state.mqttActor, DiscoveryEntities(state.config, msg.State.Address, ctx.Self()))
		state.behavior.Become(state.Done)

	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// DiscoveryEntities builds the full set of announced entities. The pillbox
// device hangs from the bridge device.
func DiscoveryEntities(cfg *config.Config, address string, replyTo *actor.PID) domain.PublishDiscoveryRequest {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(cfg.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	pillboxDevice := domain.PillboxDevice(cfg.MQTT.BaseTopic, address)
	pillboxDevice.ViaDevice = bridgeDevice.Id
	sensors = append(sensors, domain.PillboxSensors(pillboxDevice)...)

	req := domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		Buttons:      domain.PillboxButtons(pillboxDevice, cfg.Device.Slots),
		InputNumbers: domain.PillboxInputNumbers(pillboxDevice, cfg.Device.Slots),
	}
	if replyTo != nil {
		req.ActorRequestMixIn = domain.ReplyToPID(replyTo)
	}
	return req
}
