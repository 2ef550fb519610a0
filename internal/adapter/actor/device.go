package actor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/berfenger/pillbox2mqtt/internal/config"
	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/internal/core/events"
	"github.com/berfenger/pillbox2mqtt/internal/util/actorutil"
	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// DeviceActor owns the dispenser client. Requests run on background
// goroutines, so a slow device never blocks health checks or state reads.
type DeviceActor struct {
	config      *config.Config
	behavior    actor.Behavior
	client      pillbox.DeviceCommander
	eventStream *eventstream.EventStream
	reqCtx      context.Context
	cancel      context.CancelFunc
	inFlight    int
	logger      *zap.Logger
}

type deviceTaskResult struct {
	message any
	replyTo *actor.PID
	// state events are published when reason is set
	reason string
	state  pillbox.DeviceState
	slot   *int
}

func NewDeviceActor(config *config.Config, client pillbox.DeviceCommander, eventStream *eventstream.EventStream, logger *zap.Logger) *DeviceActor {
	act := &DeviceActor{
		config:      config,
		client:      client,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_DEVICE, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *DeviceActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DeviceActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("device@default started", zap.String("address", state.client.Address()))
		state.reqCtx, state.cancel = context.WithCancel(context.Background())
		state.publishState(state.client.State(), events.REASON_ADDRESS)
	case *actor.Stopping, *actor.Restarting:
		// abort in-flight requests
		if state.cancel != nil {
			state.cancel()
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("device@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DEVICE,
			Healthy: true,
			State:   state.stateName(),
		})
	case domain.DeviceStateRequest:
		state.logger.Debug("device@default DeviceStateRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.DeviceStateResponse{
			State: state.client.State(),
		})
	case domain.SetDeviceAddressRequest:
		state.logger.Debug("device@default SetDeviceAddressRequest", zap.String("address", msg.Address))
		address := strings.TrimSpace(msg.Address)
		if address == "" {
			actorutil.ForRequest(msg).Respond(ctx, domain.SetDeviceAddressResponse{
				ActorResponseMixIn: domain.ErrorResponse(domain.ErrInvalidAddress),
			})
			return
		}
		// the connection state is left as is until the next probe
		state.client.SetAddress(address)
		current := state.client.State()
		actorutil.ForRequest(msg).Respond(ctx, domain.SetDeviceAddressResponse{
			State: current,
		})
		state.publishState(current, events.REASON_ADDRESS)
	case domain.DeviceProbeRequest:
		state.logger.Debug("device@default DeviceProbeRequest")
		state.probe(ctx, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.DeviceQueryStatusRequest:
		state.logger.Debug("device@default DeviceQueryStatusRequest")
		state.queryStatus(ctx, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.DeviceCommandRequest:
		state.logger.Debug("device@default DeviceCommandRequest", zap.Stringer("command", msg.Command))
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		if state.config.Device.RequireConnection && msg.Command.IsAction() && !state.client.IsConnected() {
			state.logger.Info("device@default command rejected, device not connected", zap.Stringer("command", msg.Command))
			state.reply(ctx, replyTo, domain.DeviceCommandResponse{
				ActorResponseMixIn: domain.ErrorResponse(domain.ErrDeviceNotConnected),
				Command:            msg.Command,
				State:              state.client.State(),
			})
			return
		}
		state.execute(ctx, msg.Command, replyTo)
	case deviceTaskResult:
		state.inFlight--
		state.logger.Debug("device@default task result", zap.String("type", fmt.Sprintf("%T", msg.message)))
		state.reply(ctx, msg.replyTo, msg.message)
		if msg.reason != "" {
			state.publishState(msg.state, msg.reason)
		}
		if msg.slot != nil {
			state.eventStream.Publish(events.DispenseSlotUpdateEvent(*msg.slot))
		}
	default:
		state.logger.Debug("device@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DeviceActor) probe(ctx actor.Context, replyTo *actor.PID) {
	state.inFlight++
	actorutil.NewBackgroundTaskNoError(ctx, func() *deviceTaskResult {
		connected := state.client.Probe(state.reqCtx)
		current := state.client.State()
		return &deviceTaskResult{
			message: domain.DeviceProbeResponse{
				Connected: connected,
				State:     current,
			},
			replyTo: replyTo,
			reason:  events.REASON_PROBE,
			state:   current,
		}
	}).WithTimeout(state.taskTimeout(1)).OnError(state.taskFailed).Recover(func(err error) deviceTaskResult {
		return deviceTaskResult{
			message: domain.DeviceProbeResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
				State:              state.client.State(),
			},
			replyTo: replyTo,
		}
	}).PipeToAsync(ctx.Self())
}

func (state *DeviceActor) queryStatus(ctx actor.Context, replyTo *actor.PID) {
	state.inFlight++
	actorutil.NewBackgroundTaskNoError(ctx, func() *deviceTaskResult {
		return &deviceTaskResult{
			message: domain.DeviceQueryStatusResponse{
				Status: state.client.QueryStatus(state.reqCtx),
			},
			replyTo: replyTo,
		}
	}).WithTimeout(state.taskTimeout(1)).OnError(state.taskFailed).Recover(func(err error) deviceTaskResult {
		return deviceTaskResult{
			message: domain.DeviceQueryStatusResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
				Status:             pillbox.StatusDisconnected,
			},
			replyTo: replyTo,
		}
	}).PipeToAsync(ctx.Self())
}

// execute runs the command and, for physical actions, re-reads the device
// state with a probe so the reported status reflects the action.
func (state *DeviceActor) execute(ctx actor.Context, cmd pillbox.Command, replyTo *actor.PID) {
	state.inFlight++
	var slot *int
	if cmd.Kind == pillbox.CommandDispense {
		s := cmd.Slot
		slot = &s
	}
	actorutil.NewBackgroundTaskNoError(ctx, func() *deviceTaskResult {
		success := state.client.Execute(state.reqCtx, cmd)
		result := &deviceTaskResult{
			replyTo: replyTo,
			slot:    slot,
		}
		if cmd.IsAction() {
			state.client.Probe(state.reqCtx)
			result.reason = events.REASON_COMMAND
		}
		result.state = state.client.State()
		result.message = domain.DeviceCommandResponse{
			Command: cmd,
			Success: success,
			State:   result.state,
		}
		return result
	}).WithTimeout(state.taskTimeout(2)).OnError(state.taskFailed).Recover(func(err error) deviceTaskResult {
		return deviceTaskResult{
			message: domain.DeviceCommandResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
				Command:            cmd,
				State:              state.client.State(),
			},
			replyTo: replyTo,
		}
	}).PipeToAsync(ctx.Self())
}

func (state *DeviceActor) taskFailed(err error) {
	state.logger.Warn("device: task failed", zap.Error(err))
}

func (state *DeviceActor) reply(ctx actor.Context, replyTo *actor.PID, msg any) {
	if replyTo != nil {
		ctx.Send(replyTo, msg)
	}
}

func (state *DeviceActor) publishState(current pillbox.DeviceState, reason string) {
	for _, ev := range events.DeviceStateEvents(current, reason) {
		state.eventStream.Publish(ev)
	}
}

// taskTimeout bounds a task made of n sequential device requests.
func (state *DeviceActor) taskTimeout(requests int) time.Duration {
	timeout := state.config.Device.Timeout()
	if timeout <= 0 {
		timeout = pillbox.DefaultRequestTimeout
	}
	return time.Duration(requests)*timeout + time.Second
}

func (state *DeviceActor) stateName() string {
	name := "disconnected"
	if state.client.IsConnected() {
		name = "connected"
	}
	if state.inFlight > 0 {
		name = fmt.Sprintf("%s (%d in flight)", name, state.inFlight)
	}
	return name
}
