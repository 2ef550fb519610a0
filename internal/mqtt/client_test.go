package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButtonCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/dispense_slot_3/command"
	r := buttonCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal("dispense_slot_3", matches[0][1], "button extract")
}

func TestButtonCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	r := buttonCommandExtractor(baseTopic)

	assert.Empty(r.FindAllStringSubmatch("loremTopic/button/open/state", 1), "no matches")
	assert.Empty(r.FindAllStringSubmatch("other/loremTopic/button/open/command", 1), "anchored")
}

func TestInputNumberCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/number/dispense_slot/set"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal("dispense_slot", matches[0][1], "number_id extract")
}

func TestInputNumberCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/number_name/command"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(0, len(matches), "no matches")
}

func TestParseCommand(t *testing.T) {

	assert := assert.New(t)

	btn := buttonCommandExtractor("pillbox")
	num := inputNumberCommandExtractor("pillbox")

	cmd, err := parseCommand(btn, num, "pillbox/button/open/command", []byte("PRESS"))
	assert.NoError(err)
	assert.Equal(&ParsedMQTTCommand{DeviceId: "open", Command: COMMAND_BUTTON, Payload: MQTT_PAYLOAD_PRESS}, cmd)

	cmd, err = parseCommand(btn, num, "pillbox/button/probe/command", nil)
	assert.NoError(err)
	assert.Equal("probe", cmd.DeviceId)

	_, err = parseCommand(btn, num, "pillbox/button/open/command", []byte("RELEASE"))
	assert.ErrorIs(err, ErrInvalidPayload)

	cmd, err = parseCommand(btn, num, "pillbox/number/dispense_slot/set", []byte(" 4 "))
	assert.NoError(err)
	assert.Equal(&ParsedMQTTCommand{DeviceId: "dispense_slot", Command: COMMAND_NUMBER, Payload: "4"}, cmd)

	_, err = parseCommand(btn, num, "pillbox/number/dispense_slot/set", []byte("four"))
	assert.ErrorIs(err, ErrInvalidPayload)

	_, err = parseCommand(btn, num, "pillbox/sensor/status/state", []byte("OK"))
	assert.ErrorIs(err, ErrNotACommand)
}

func TestHADiscoveryMessages(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
	dev := domain.PillboxDevice(cfg.MQTT.BaseTopic, "192.168.4.1")

	sensors := domain.PillboxSensors(dev)
	connected := GenericSensorToHADiscoveryMessage(client, sensors[0])
	require.Equal("pillbox/binary_sensor/connected/state", connected.StateTopic)
	require.Equal(MQTT_PAYLOAD_ON, connected.PayloadOn)
	require.Equal("pillbox/bridge/state", connected.AvTopic)
	require.Equal("homeassistant/binary_sensor/"+dev.Id+"/connected/config", HADiscoverySensorTopic(client.DiscoveryPrefix(), sensors[0]))

	status := GenericSensorToHADiscoveryMessage(client, sensors[1])
	require.Equal("pillbox/sensor/status/state", status.StateTopic)
	require.Empty(status.PayloadOn)

	bridge := GenericSensorToHADiscoveryMessage(client, domain.BridgeSensors(domain.BridgeDevice("pillbox"))[0])
	require.Equal("pillbox/bridge/state", bridge.StateTopic)
	require.Equal(MQTT_PAYLOAD_ONLINE, bridge.PayloadOn)

	buttons := domain.PillboxButtons(dev, 2)
	dispense := GenericButtonToHADiscoveryMessage(client, buttons[len(buttons)-1])
	require.Equal("pillbox/button/dispense_slot_2/command", dispense.CommandTopic)
	require.Equal(MQTT_PAYLOAD_PRESS, dispense.PayloadPress)
	require.Equal("homeassistant/button/"+dev.Id+"/dispense_slot_2/config", HADiscoveryButtonTopic(client.DiscoveryPrefix(), buttons[len(buttons)-1]))

	payload, err := json.Marshal(GenericInputNumberToHADiscoveryMessage(client, domain.PillboxInputNumbers(dev, 6)[0]))
	require.NoError(err)
	require.Contains(string(payload), `"command_topic":"pillbox/number/dispense_slot/set"`)
	require.Contains(string(payload), `"max":6`)
}
