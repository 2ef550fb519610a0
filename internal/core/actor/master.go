package actor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	adactor "github.com/berfenger/pillbox2mqtt/internal/adapter/actor"
	"github.com/berfenger/pillbox2mqtt/internal/config"
	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	. "github.com/berfenger/pillbox2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type DeviceActorProvider func(*eventstream.EventStream) *adactor.DeviceActor

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

// MasterActor supervises the bridge actors and is the single entry point for
// device requests coming from HTTP and MQTT.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	deviceActor         *actor.PID
	mqttActor           *actor.PID
	statusActor         *actor.PID
	deviceActorProvider DeviceActorProvider
	mqttActorProvider   MQTTActorProvider
	logger              *zap.Logger
}

type healthCheckResult struct {
	expected       []string
	healthy        map[string]bool
	states         map[string]string
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterActor(config config.Config, eventStream *eventstream.EventStream, deviceActorProvider DeviceActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterActor {
	if eventStream == nil {
		eventStream = &eventstream.EventStream{}
	}
	act := &MasterActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         eventStream,
		deviceActorProvider: deviceActorProvider,
		mqttActorProvider:   mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start Device child
		deviceActorPID, err := state.startDeviceActor(ctx)
		if err != nil {
			panic(err)
		}
		state.deviceActor = deviceActorPID

		// start MQTT child
		if state.config.MQTT.Enable {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID
		}

		// start Status child
		if state.config.Device.PollIntervalMillis > 0 {
			statusActorPID, err := state.startStatusActor(ctx)
			if err != nil {
				panic(err)
			}
			state.statusActor = statusActorPID
		}

		// start HA Discovery
		if state.config.MQTT.Enable && state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.currentHealthCheck = newHealthCheckResult(state.childIds())

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.children() {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
					State:   err.Error(),
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.DeviceRequest:
		// the device actor answers the original sender
		state.logger.Debug("master@default DeviceRequest", zap.String("type", fmt.Sprintf("%T", msg)))
		ctx.Forward(state.deviceActor)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default ignored mqtt command", zap.Error(err))
				return
			}
			ctx.Send(state.deviceActor, cmd)
		}
	case *actor.Terminated:
		// the device actor is the core of the bridge, without it there is nothing to serve
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_DEVICE) {
			state.logger.Error("master@default device error")
			panic(errors.New("device terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.logger.Debug("master@healthcheck timeout", zap.Int("stashed", state.stash.Len()))
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.record(msg)
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()

			state.currentHealthCheck.respond(ctx)
			state.logger.Debug("master@healthcheck done", zap.Int("stashed", state.stash.Len()))

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_DEVICE: state.deviceActor,
	}
	if state.mqttActor != nil {
		children[domain.ACTOR_ID_MQTT] = state.mqttActor
	}
	if state.statusActor != nil {
		children[domain.ACTOR_ID_STATUS] = state.statusActor
	}
	return children
}

func (state *MasterActor) childIds() []string {
	var ids []string
	for id := range state.children() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (state *MasterActor) startDeviceActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		state.logger.Warn("master: handling failure for device", zap.Any("reason", reason))
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	deviceProps := actor.PropsFromProducer(func() actor.Actor {
		return state.deviceActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	deviceActorPID, err := ctx.SpawnNamed(deviceProps, domain.ACTOR_ID_DEVICE)
	if err != nil {
		return nil, err
	}

	return deviceActorPID, nil
}

func (state *MasterActor) startStatusActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		state.logger.Warn("master: handling failure for status", zap.Any("reason", reason))
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	statusProps := actor.PropsFromProducer(func() actor.Actor {
		return NewStatusActor(&state.config, state.deviceActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	statusActorPID, err := ctx.SpawnNamed(statusProps, domain.ACTOR_ID_STATUS)
	if err != nil {
		return nil, err
	}

	return statusActorPID, nil
}

func (state *MasterActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		state.logger.Warn("master: handling failure for hadiscovery", zap.Any("reason", reason))
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.deviceActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func newHealthCheckResult(expected []string) healthCheckResult {
	result := healthCheckResult{expected: expected}
	result.reset()
	return result
}

func (state *healthCheckResult) reset() {
	state.healthy = make(map[string]bool, len(state.expected))
	state.states = make(map[string]string, len(state.expected))
	state.checksReceived = 0
	state.respondTo = nil
}

func (state *healthCheckResult) record(resp domain.ActorHealthResponse) {
	state.checksReceived++
	state.healthy[resp.Id] = resp.Healthy
	state.states[resp.Id] = resp.State
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range state.expected {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

// summary renders "id=state" pairs in a stable order.
func (state *healthCheckResult) summary() string {
	parts := make([]string, 0, len(state.expected))
	for _, id := range state.expected {
		s, ok := state.states[id]
		if !ok {
			s = "no response"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", id, s))
	}
	return strings.Join(parts, " ")
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.summary(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
