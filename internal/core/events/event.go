package events

import (
	. "github.com/berfenger/pillbox2mqtt/internal/core/domain"
	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"
)

const (
	REASON_PROBE   = "probe"
	REASON_COMMAND = "command"
	REASON_ADDRESS = "address"
)

func DeviceStateToUpdateEvents(state pillbox.DeviceState) []any {
	var events []any

	// Device reachable
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DEVICE_CONNECTED,
		},
		Value: state.Connected,
	})
	// Status text
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DEVICE_STATUS,
		},
		Value: state.Status,
	})
	// Address
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DEVICE_ADDRESS,
		},
		Value: state.Address,
	})

	return events
}

// DeviceStateEvents returns the per sensor events followed by the snapshot event.
func DeviceStateEvents(state pillbox.DeviceState, reason string) []any {
	events := DeviceStateToUpdateEvents(state)
	events = append(events, DeviceStateUpdateEvent{
		State:  state,
		Reason: reason,
	})
	return events
}

func DispenseSlotUpdateEvent(slot int) any {
	return InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_DISPENSE,
		},
		Value: float64(slot),
	}
}
