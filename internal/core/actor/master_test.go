package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/pillbox2mqtt/internal/adapter/actor"
	"github.com/berfenger/pillbox2mqtt/internal/config"
	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/internal/mqtt"
	"github.com/berfenger/pillbox2mqtt/internal/util"
	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnMaster(t *testing.T, cfg config.Config) (*actor.ActorSystem, *actor.PID, *pillbox.TestDeviceClient) {
	t.Helper()

	as := actor.NewActorSystem()

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	client := pillbox.CreateTestDeviceClient()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, &eventstream.EventStream{}, func(es *eventstream.EventStream) *adactor.DeviceActor {
			return adactor.NewDeviceActor(&cfg, client, es, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	return as, pid, client
}

func TestMasterActor(t *testing.T) {

	cfg := util.LoadTestConfig()
	as, pid, _ := spawnMaster(t, cfg)
	defer as.Shutdown()

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)

	assert.True(t, healthResp.Healthy, "healthy is true")
	assert.Equal(t, domain.ACTOR_ID_MASTER, healthResp.Id)
	assert.Contains(t, healthResp.State, "device=")
	assert.Contains(t, healthResp.State, "mqtt=idle")
	assert.Contains(t, healthResp.State, "status=")

	as.Root.Stop(pid)
}

func TestMasterActorWithoutOptionalChildren(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enable = false
	cfg.Device.PollIntervalMillis = 0
	as, pid, _ := spawnMaster(t, cfg)
	defer as.Shutdown()

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	healthResp := res.(domain.ActorHealthResponse)
	assert.True(t, healthResp.Healthy)
	assert.NotContains(t, healthResp.State, "mqtt=")
	assert.NotContains(t, healthResp.State, "status=")
}

func TestMasterForwardsDeviceRequests(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()
	cfg.Device.PollIntervalMillis = 0
	as, pid, client := spawnMaster(t, cfg)
	defer as.Shutdown()

	res, err := as.Root.RequestFuture(pid, domain.DeviceCommandRequest{Command: pillbox.Dispense(2)}, 5*time.Second).Result()
	require.NoError(err)
	resp, ok := res.(domain.DeviceCommandResponse)
	require.True(ok)
	require.True(resp.Success)
	require.True(resp.State.Connected)
	require.Equal([]pillbox.Command{pillbox.Dispense(2)}, client.Commands())

	res, err = as.Root.RequestFuture(pid, domain.DeviceStateRequest{}, 5*time.Second).Result()
	require.NoError(err)
	require.Equal(client.State(), res.(domain.DeviceStateResponse).State)
}

func TestMasterRoutesMQTTCommands(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.Device.PollIntervalMillis = 0
	as, pid, client := spawnMaster(t, cfg)
	defer as.Shutdown()

	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.BUTTON_ID_OPEN,
		Command:  mqtt.COMMAND_BUTTON,
		Payload:  mqtt.MQTT_PAYLOAD_PRESS,
	}})
	// unknown entities are dropped
	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: "reboot",
		Command:  mqtt.COMMAND_BUTTON,
		Payload:  mqtt.MQTT_PAYLOAD_PRESS,
	}})
	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.INPUT_NUMBER_ID_DISPENSE,
		Command:  mqtt.COMMAND_NUMBER,
		Payload:  "5",
	}})

	assert.Eventually(t, func() bool {
		return len(client.Commands()) == 2
	}, 3*time.Second, 50*time.Millisecond)
	assert.ElementsMatch(t, []pillbox.Command{pillbox.Open(), pillbox.Dispense(5)}, client.Commands())
}

func TestDiscoveryEntities(t *testing.T) {

	cfg := util.LoadTestConfig()
	req := DiscoveryEntities(&cfg, "192.168.4.1", nil)

	assert.Len(t, req.Sensors, 4)
	assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, req.Sensors[0].Id)
	assert.Equal(t, "http://192.168.4.1/", req.Sensors[1].Device.ConfigURL)
	assert.Equal(t, domain.BridgeDevice(cfg.MQTT.BaseTopic).Id, req.Sensors[1].Device.ViaDevice)
	// 4 fixed buttons plus one per slot
	assert.Len(t, req.Buttons, 4+int(cfg.Device.Slots))
	assert.Len(t, req.InputNumbers, 1)
	assert.Nil(t, req.ReplyTo())
}
