package pillbox

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultDeviceAddress  = "192.168.4.1"
	DefaultRequestTimeout = 5000 * time.Millisecond
	StatusDisconnected    = "disconnected"
	// longer bodies are truncated, the firmware answers with a short text
	MaxResponseBytes = 64 << 10
)

// device endpoints
const (
	EndpointStatus   = "estado"
	EndpointOpen     = "abrir"
	EndpointClose    = "cerrar"
	EndpointDispense = "dispensar"
	EndpointTest     = "test"
)

type CommandKind string

const (
	CommandOpen        CommandKind = "open"
	CommandClose       CommandKind = "close"
	CommandDispense    CommandKind = "dispense"
	CommandSelfTest    CommandKind = "test"
	CommandQueryStatus CommandKind = "status"
)

// Command is one entry of the device vocabulary. Slot is only meaningful for
// CommandDispense and is forwarded to the device as-is.
type Command struct {
	Kind CommandKind
	Slot int
}

func Open() Command {
	return Command{Kind: CommandOpen}
}

func Close() Command {
	return Command{Kind: CommandClose}
}

func Dispense(slot int) Command {
	return Command{Kind: CommandDispense, Slot: slot}
}

func SelfTest() Command {
	return Command{Kind: CommandSelfTest}
}

func QueryStatus() Command {
	return Command{Kind: CommandQueryStatus}
}

// IsAction reports whether the command has a physical side effect on the device.
func (c Command) IsAction() bool {
	switch c.Kind {
	case CommandOpen, CommandClose, CommandDispense, CommandSelfTest:
		return true
	}
	return false
}

// Path returns the request path relative to the device root, query included.
func (c Command) Path() string {
	switch c.Kind {
	case CommandOpen:
		return EndpointOpen
	case CommandClose:
		return EndpointClose
	case CommandDispense:
		return fmt.Sprintf("%s?slot=%d", EndpointDispense, c.Slot)
	case CommandSelfTest:
		return EndpointTest
	case CommandQueryStatus:
		return EndpointStatus
	}
	return ""
}

func (c Command) String() string {
	if c.Kind == CommandDispense {
		return fmt.Sprintf("%s(%d)", c.Kind, c.Slot)
	}
	return string(c.Kind)
}

// ParseCommand accepts both the english command names and the device endpoint names.
func ParseCommand(name string, slot int) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "open", EndpointOpen:
		return Open(), nil
	case "close", EndpointClose:
		return Close(), nil
	case "dispense", EndpointDispense:
		return Dispense(slot), nil
	case "test", "self_test", "selftest":
		return SelfTest(), nil
	case "status", EndpointStatus:
		return QueryStatus(), nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// DeviceState is a snapshot of the client-side view of the device.
type DeviceState struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
	Status    string `json:"status"`
}
