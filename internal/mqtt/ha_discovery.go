package mqtt

import (
	"fmt"

	"github.com/berfenger/pillbox2mqtt/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device           HADiscoveryDevice `json:"device"`
	StateTopic       string            `json:"state_topic,omitempty"`
	CommandTopic     string            `json:"command_topic,omitempty"`
	DeviceClass      string            `json:"device_class,omitempty"`
	AvTopic          string            `json:"availability_topic,omitempty"`
	EntityCategory   string            `json:"entity_category,omitempty"`
	Name             string            `json:"name"`
	UniqueId         string            `json:"unique_id"`
	Platform         string            `json:"platform"`
	EnabledByDefault *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn        string            `json:"payload_on,omitempty"`
	PayloadOff       string            `json:"payload_off,omitempty"`
	PayloadPress     string            `json:"payload_press,omitempty"`
	Icon             string            `json:"icon,omitempty"`
	Min              float64           `json:"min,omitempty"`
	Max              float64           `json:"max,omitempty"`
	Step             float64           `json:"step,omitempty"`
	Mode             string            `json:"mode,omitempty"`
	InitialValue     float64           `json:"initial,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
	ConfigURL    string   `json:"configuration_url,omitempty"`
}

func HADiscoverySensorTopic(prefix string, sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func HADiscoveryButtonTopic(prefix string, button domain.GenericButton) string {
	return fmt.Sprintf("%s/button/%s/%s/config", prefix, button.Device.Id, button.Id)
}

func HADiscoveryInputNumberTopic(prefix string, inputNumber domain.GenericInputNumber) string {
	return fmt.Sprintf("%s/number/%s/%s/config", prefix, inputNumber.Device.Id, inputNumber.Id)
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	case sensor.SensorType == domain.SENSOR_TYPE_SENSOR:
		topic = client.SensorStateTopic(sensor.Id)
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		topic = client.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:           dev,
		StateTopic:       topic,
		DeviceClass:      sensor.DeviceClass,
		AvTopic:          client.BridgeStateTopic(),
		EntityCategory:   sensor.EntityCategory,
		Name:             sensor.Name,
		UniqueId:         sensor.UniqueId,
		Icon:             sensor.Icon,
		EnabledByDefault: sensor.EnabledByDefault,
		Platform:         "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
		// the bridge entity reports its own availability
		disConfig.AvTopic = ""
	} else if sensor.SensorType == domain.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return disConfig
}

func GenericButtonToHADiscoveryMessage(client *MQTTClient, button domain.GenericButton) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:       device(button.Device),
		CommandTopic: client.ButtonCommandTopic(button.Id),
		AvTopic:      client.BridgeStateTopic(),
		Name:         button.Name,
		UniqueId:     button.UniqueId,
		Icon:         button.Icon,
		Platform:     "mqtt",
		PayloadPress: MQTT_PAYLOAD_PRESS,
	}
}

func GenericInputNumberToHADiscoveryMessage(client *MQTTClient, inputNumber domain.GenericInputNumber) HADiscoveryConfig {
	dev := device(inputNumber.Device)
	topic := client.InputNumberStateTopic(inputNumber.Id)
	cmdTopic := client.InputNumberCommandTopic(inputNumber.Id)
	disConfig := HADiscoveryConfig{
		Device:       dev,
		StateTopic:   topic,
		CommandTopic: cmdTopic,
		AvTopic:      client.BridgeStateTopic(),
		Name:         inputNumber.Name,
		UniqueId:     inputNumber.UniqueId,
		Icon:         inputNumber.Icon,
		Platform:     "mqtt",
		Min:          inputNumber.Min,
		Max:          inputNumber.Max,
		Step:         inputNumber.Step,
		Mode:         inputNumber.Mode,
		InitialValue: inputNumber.InitialValue,
	}
	return disConfig
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
		ConfigURL:    d.ConfigURL,
	}
}
