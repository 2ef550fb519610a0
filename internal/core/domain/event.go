package domain

import (
	"fmt"

	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type InputNumberSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

// DeviceStateUpdateEvent carries the whole device snapshot for consumers
// that do not work per sensor (the websocket stream).
type DeviceStateUpdateEvent struct {
	State  pillbox.DeviceState `json:"state"`
	Reason string              `json:"reason"`
}
