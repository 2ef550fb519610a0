package pillbox

import (
	"context"
	"sync"
)

// TestDeviceClient is an in-memory dispenser. It answers every command with
// Healthy and records the commands it received.
type TestDeviceClient struct {
	mu        sync.Mutex
	address   string
	connected bool
	status    string

	Healthy      bool
	StatusText   string
	commandsSeen []Command
}

func CreateTestDeviceClient() *TestDeviceClient {
	return &TestDeviceClient{
		address:    DefaultDeviceAddress,
		status:     StatusDisconnected,
		Healthy:    true,
		StatusText: "Pastillero listo",
	}
}

func (d *TestDeviceClient) SetHealthy(healthy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Healthy = healthy
}

func (d *TestDeviceClient) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commandsSeen...)
}

func (d *TestDeviceClient) SetAddress(address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.address = address
}

func (d *TestDeviceClient) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

func (d *TestDeviceClient) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *TestDeviceClient) CurrentStatus() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *TestDeviceClient) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceState{Address: d.address, Connected: d.connected, Status: d.status}
}

func (d *TestDeviceClient) Probe(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = d.Healthy
	if d.Healthy {
		d.status = d.StatusText
	} else {
		d.status = StatusDisconnected
	}
	return d.Healthy
}

func (d *TestDeviceClient) QueryStatus(ctx context.Context) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Healthy {
		return StatusDisconnected
	}
	return d.StatusText
}

func (d *TestDeviceClient) Open(ctx context.Context) bool {
	return d.Execute(ctx, Open())
}

func (d *TestDeviceClient) Close(ctx context.Context) bool {
	return d.Execute(ctx, Close())
}

func (d *TestDeviceClient) Dispense(ctx context.Context, slot int) bool {
	return d.Execute(ctx, Dispense(slot))
}

func (d *TestDeviceClient) SelfTest(ctx context.Context) bool {
	return d.Execute(ctx, SelfTest())
}

func (d *TestDeviceClient) Execute(ctx context.Context, cmd Command) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commandsSeen = append(d.commandsSeen, cmd)
	return d.Healthy
}

var _ DeviceCommander = (*TestDeviceClient)(nil)
