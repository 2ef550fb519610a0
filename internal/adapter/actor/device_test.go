package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/internal/util"
	"github.com/berfenger/pillbox2mqtt/internal/util/actorutil"
	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []any
}

func recordEvents(es *eventstream.EventStream) *eventRecorder {
	rec := &eventRecorder{}
	es.Subscribe(func(evt any) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, evt)
	})
	return rec
}

func (r *eventRecorder) snapshots() []domain.DeviceStateUpdateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DeviceStateUpdateEvent
	for _, ev := range r.events {
		if s, ok := ev.(domain.DeviceStateUpdateEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

func spawnDeviceActor(t *testing.T, requireConnection bool) (*actor.ActorSystem, *actor.PID, *pillbox.TestDeviceClient, *eventRecorder) {
	t.Helper()

	cfg := util.LoadTestConfig()
	cfg.Device.RequireConnection = requireConnection
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	es := &eventstream.EventStream{}
	rec := recordEvents(es)
	client := pillbox.CreateTestDeviceClient()

	props := actor.PropsFromProducer(func() actor.Actor { return NewDeviceActor(&cfg, client, es, logger) })
	pid := as.Root.Spawn(props)

	return as, pid, client, rec
}

func TestDeviceActorProbe(t *testing.T) {

	require := require.New(t)

	as, pid, client, rec := spawnDeviceActor(t, false)
	defer as.Shutdown()

	result, err := as.Root.RequestFuture(pid, domain.DeviceProbeRequest{}, 2*time.Second).Result()
	require.NoError(err)
	resp, ok := result.(domain.DeviceProbeResponse)
	require.True(ok)
	require.False(resp.HasResponseError())
	require.True(resp.Connected)
	require.Equal("Pastillero listo", resp.State.Status)
	require.True(client.IsConnected())

	require.Eventually(func() bool {
		snaps := rec.snapshots()
		return len(snaps) >= 2 && snaps[len(snaps)-1].State.Connected
	}, 2*time.Second, 20*time.Millisecond, "probe publishes the new state")

	client.SetHealthy(false)
	result, err = as.Root.RequestFuture(pid, domain.DeviceProbeRequest{}, 2*time.Second).Result()
	require.NoError(err)
	resp = result.(domain.DeviceProbeResponse)
	require.False(resp.Connected)
	require.Equal(pillbox.StatusDisconnected, resp.State.Status)
}

func TestDeviceActorCommandReprobes(t *testing.T) {

	assert := assert.New(t)

	as, pid, client, _ := spawnDeviceActor(t, false)
	defer as.Shutdown()

	result, err := as.Root.RequestFuture(pid, domain.DeviceCommandRequest{Command: pillbox.Dispense(3)}, 2*time.Second).Result()
	assert.NoError(err)
	resp, ok := result.(domain.DeviceCommandResponse)
	assert.True(ok)
	assert.True(resp.Success)
	assert.Equal(pillbox.Dispense(3), resp.Command)
	// the action was followed by a probe
	assert.True(resp.State.Connected)
	assert.Equal([]pillbox.Command{pillbox.Dispense(3)}, client.Commands())
}

func TestDeviceActorRequireConnection(t *testing.T) {

	assert := assert.New(t)

	as, pid, client, _ := spawnDeviceActor(t, true)
	defer as.Shutdown()

	result, err := as.Root.RequestFuture(pid, domain.DeviceCommandRequest{Command: pillbox.Open()}, 2*time.Second).Result()
	assert.NoError(err)
	resp := result.(domain.DeviceCommandResponse)
	assert.ErrorIs(resp.GetResponseError(), domain.ErrDeviceNotConnected)
	assert.False(resp.Success)
	assert.Empty(client.Commands(), "gated commands never reach the device")

	_, err = as.Root.RequestFuture(pid, domain.DeviceProbeRequest{}, 2*time.Second).Result()
	assert.NoError(err)

	result, err = as.Root.RequestFuture(pid, domain.DeviceCommandRequest{Command: pillbox.Open()}, 2*time.Second).Result()
	assert.NoError(err)
	resp = result.(domain.DeviceCommandResponse)
	assert.False(resp.HasResponseError())
	assert.True(resp.Success)
}

func TestDeviceActorSetAddress(t *testing.T) {

	require := require.New(t)

	as, pid, client, _ := spawnDeviceActor(t, false)
	defer as.Shutdown()

	result, err := as.Root.RequestFuture(pid, domain.SetDeviceAddressRequest{Address: " 10.0.0.5 "}, 2*time.Second).Result()
	require.NoError(err)
	resp := result.(domain.SetDeviceAddressResponse)
	require.False(resp.HasResponseError())
	require.Equal("10.0.0.5", resp.State.Address)
	require.Equal("10.0.0.5", client.Address())

	result, err = as.Root.RequestFuture(pid, domain.SetDeviceAddressRequest{Address: ""}, 2*time.Second).Result()
	require.NoError(err)
	resp = result.(domain.SetDeviceAddressResponse)
	require.ErrorIs(resp.GetResponseError(), domain.ErrInvalidAddress)
	require.Equal("10.0.0.5", client.Address())
}

func TestDeviceActorQueryStatusKeepsState(t *testing.T) {

	require := require.New(t)

	as, pid, client, _ := spawnDeviceActor(t, false)
	defer as.Shutdown()

	result, err := as.Root.RequestFuture(pid, domain.DeviceQueryStatusRequest{}, 2*time.Second).Result()
	require.NoError(err)
	resp := result.(domain.DeviceQueryStatusResponse)
	require.Equal("Pastillero listo", resp.Status)
	require.False(client.IsConnected())

	result, err = as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(err)
	health := result.(domain.ActorHealthResponse)
	require.True(health.Healthy)
	require.Equal(domain.ACTOR_ID_DEVICE, health.Id)
}
