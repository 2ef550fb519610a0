package domain

import (
	"errors"
	"fmt"

	"github.com/berfenger/pillbox2mqtt/pkg/pillbox"
)

var (
	ErrDeviceNotConnected = errors.New("device: not connected")
	ErrInvalidAddress     = errors.New("device: address must not be empty")
)

// DeviceRequest is implemented by every message routed to the device actor.
type DeviceRequest interface {
	ActorRequest
	DeviceRequest() string
}

type DeviceRequestMixIn struct {
	ActorRequestMixIn
}

func (r DeviceRequestMixIn) DeviceRequest() string {
	return fmt.Sprintf("%T", r)
}

type DeviceStateRequest struct {
	DeviceRequestMixIn
}

type DeviceStateResponse struct {
	ActorResponseMixIn
	State pillbox.DeviceState
}

// DeviceProbeRequest runs the connection probe, the only operation that
// changes the connection state.
type DeviceProbeRequest struct {
	DeviceRequestMixIn
}

type DeviceProbeResponse struct {
	ActorResponseMixIn
	Connected bool
	State     pillbox.DeviceState
}

type DeviceCommandRequest struct {
	DeviceRequestMixIn
	Command pillbox.Command
}

type DeviceCommandResponse struct {
	ActorResponseMixIn
	Command pillbox.Command
	Success bool
	State   pillbox.DeviceState
}

type DeviceQueryStatusRequest struct {
	DeviceRequestMixIn
}

type DeviceQueryStatusResponse struct {
	ActorResponseMixIn
	Status string
}

type SetDeviceAddressRequest struct {
	DeviceRequestMixIn
	Address string
}

type SetDeviceAddressResponse struct {
	ActorResponseMixIn
	State pillbox.DeviceState
}

// ensure interface compliance
var (
	_ DeviceRequest = (*DeviceStateRequest)(nil)
	_ DeviceRequest = (*DeviceProbeRequest)(nil)
	_ DeviceRequest = (*DeviceCommandRequest)(nil)
	_ DeviceRequest = (*DeviceQueryStatusRequest)(nil)
	_ DeviceRequest = (*SetDeviceAddressRequest)(nil)
)
