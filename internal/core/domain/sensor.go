package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_DEVICE_CONNECTED   = "connected"
	SENSOR_ID_DEVICE_STATUS      = "status"
	SENSOR_ID_DEVICE_ADDRESS     = "address"
	BUTTON_ID_OPEN               = "open"
	BUTTON_ID_CLOSE              = "close"
	BUTTON_ID_SELF_TEST          = "self_test"
	BUTTON_ID_PROBE              = "probe"
	BUTTON_ID_DISPENSE_SLOT_FMT  = "dispense_slot_%d"
	INPUT_NUMBER_ID_DISPENSE     = "dispense_slot"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	ENTITY_CLASS_CONFIG          = "config"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
	INPUT_NUMBER_MODE_BOX        = "box"
	INPUT_NUMBER_MODE_SLIDER     = "slider"
	BUTTON_PAYLOAD_PRESS         = "PRESS"
	DEVICE_MANUFACTURER_PILLBOX  = "Smart Pillbox"
	DEVICE_MODEL_PILLBOX_WIFI    = "Pillbox WiFi Direct"
	DEVICE_MODEL_PILLBOX_BRIDGE  = "Pillbox2MQTT"
	DEVICE_MANUFACTURER_BRIDGE   = "ACasal"
	DEVICE_CONFIG_URL_FMT        = "http://%s/"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("pillbox_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: DEVICE_MANUFACTURER_BRIDGE,
		Model:        DEVICE_MODEL_PILLBOX_BRIDGE,
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Pillbox bridge %s", md5HashShort(baseTopic)),
	}
}

// PillboxDevice is keyed by the base topic, not the address: the address can
// change at runtime and entities must keep their identity.
func PillboxDevice(baseTopic, address string) Device {
	return Device{
		Id:           fmt.Sprintf("pillbox_%s", md5HashShort(baseTopic)),
		Manufacturer: DEVICE_MANUFACTURER_PILLBOX,
		Model:        DEVICE_MODEL_PILLBOX_WIFI,
		Name:         fmt.Sprintf("Pillbox %s", md5HashShort(baseTopic)),
		ConfigURL:    fmt.Sprintf(DEVICE_CONFIG_URL_FMT, address),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func PillboxSensors(pillboxDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Device reachable
	sensors = append(sensors, GenericSensor{
		Device:      pillboxDevice,
		Id:          SENSOR_ID_DEVICE_CONNECTED,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Connected",
		DeviceClass: DEVICE_CLASS_CONNECTIVITY,
		UniqueId:    uniqueId(pillboxDevice.Id, SENSOR_ID_DEVICE_CONNECTED),
	})

	// Last status text reported by /estado
	sensors = append(sensors, GenericSensor{
		Device:     IdDevice(pillboxDevice),
		Id:         SENSOR_ID_DEVICE_STATUS,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Status",
		Icon:       "mdi:pill",
		UniqueId:   uniqueId(pillboxDevice.Id, SENSOR_ID_DEVICE_STATUS),
	})

	// Device address
	sensors = append(sensors, GenericSensor{
		Device:           IdDevice(pillboxDevice),
		Id:               SENSOR_ID_DEVICE_ADDRESS,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Address",
		Icon:             "mdi:ip-network",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(pillboxDevice.Id, SENSOR_ID_DEVICE_ADDRESS),
	})

	return sensors
}

func PillboxButtons(pillboxDevice Device, slots uint) []GenericButton {

	device := IdDevice(pillboxDevice)
	buttons := []GenericButton{
		{
			Device:   device,
			Id:       BUTTON_ID_OPEN,
			Name:     "Open lid",
			UniqueId: uniqueId(pillboxDevice.Id, BUTTON_ID_OPEN),
			Icon:     "mdi:package-variant",
		},
		{
			Device:   device,
			Id:       BUTTON_ID_CLOSE,
			Name:     "Close lid",
			UniqueId: uniqueId(pillboxDevice.Id, BUTTON_ID_CLOSE),
			Icon:     "mdi:package-variant-closed",
		},
		{
			Device:   device,
			Id:       BUTTON_ID_SELF_TEST,
			Name:     "Self test",
			UniqueId: uniqueId(pillboxDevice.Id, BUTTON_ID_SELF_TEST),
			Icon:     "mdi:test-tube",
		},
		{
			Device:   device,
			Id:       BUTTON_ID_PROBE,
			Name:     "Refresh status",
			UniqueId: uniqueId(pillboxDevice.Id, BUTTON_ID_PROBE),
			Icon:     "mdi:refresh",
		},
	}

	// one dispense button per slot
	for slot := uint(1); slot <= slots; slot++ {
		id := DispenseButtonId(int(slot))
		buttons = append(buttons, GenericButton{
			Device:   device,
			Id:       id,
			Name:     fmt.Sprintf("Dispense slot %d", slot),
			UniqueId: uniqueId(pillboxDevice.Id, id),
			Icon:     "mdi:pill-multiple",
		})
	}

	return buttons
}

func PillboxInputNumbers(pillboxDevice Device, slots uint) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	// Dispense a slot by number
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:       IdDevice(pillboxDevice),
		Id:           INPUT_NUMBER_ID_DISPENSE,
		Name:         "Dispense slot",
		UniqueId:     uniqueId(pillboxDevice.Id, INPUT_NUMBER_ID_DISPENSE),
		Icon:         "mdi:numeric",
		Max:          float64(slots),
		Min:          1,
		Step:         1,
		Mode:         INPUT_NUMBER_MODE_BOX,
		InitialValue: 1,
	})

	return inputNumbers
}

func DispenseButtonId(slot int) string {
	return fmt.Sprintf(BUTTON_ID_DISPENSE_SLOT_FMT, slot)
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
