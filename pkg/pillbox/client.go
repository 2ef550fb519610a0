package pillbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goio "github.com/primetalk/goio/io"
	"go.uber.org/zap"
)

// DeviceCommander is the command surface of a pill dispenser. Every operation
// reports failure as false (or the disconnected sentinel); errors never reach
// the caller.
type DeviceCommander interface {
	SetAddress(address string)
	Address() string
	IsConnected() bool
	CurrentStatus() string
	State() DeviceState

	Probe(ctx context.Context) bool
	QueryStatus(ctx context.Context) string
	Open(ctx context.Context) bool
	Close(ctx context.Context) bool
	Dispense(ctx context.Context, slot int) bool
	SelfTest(ctx context.Context) bool
	Execute(ctx context.Context, cmd Command) bool
}

// HTTPDeviceClient talks to the dispenser firmware over plain HTTP GET requests.
//
// The scalar fields are guarded by mu, but the lock is never held while a
// request is in flight: concurrent calls are independent requests and the
// last probe to complete decides the connection state.
type HTTPDeviceClient struct {
	mu        sync.RWMutex
	address   string
	connected bool
	status    string

	http       *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	instrument []DeviceInstrument
}

func CreateHTTPDeviceClient(address string, timeout time.Duration, httpClient *http.Client,
	logger *zap.Logger, instrumentation *DeviceInstrument) *HTTPDeviceClient {
	if strings.TrimSpace(address) == "" {
		address = DefaultDeviceAddress
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{
			// a redirect is not a 200 from the device
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("target", "pillbox"))

	// instrumentation
	var inst []DeviceInstrument
	if logInst := debugLoggerInstrumentation(logger); logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	return &HTTPDeviceClient{
		address:    address,
		status:     StatusDisconnected,
		http:       httpClient,
		timeout:    timeout,
		logger:     logger,
		instrument: inst,
	}
}

func (c *HTTPDeviceClient) SetAddress(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = address
}

func (c *HTTPDeviceClient) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

func (c *HTTPDeviceClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *HTTPDeviceClient) CurrentStatus() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *HTTPDeviceClient) State() DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return DeviceState{
		Address:   c.address,
		Connected: c.connected,
		Status:    c.status,
	}
}

func (c *HTTPDeviceClient) Timeout() time.Duration {
	return c.timeout
}

// Probe is the only operation that changes the connection state.
func (c *HTTPDeviceClient) Probe(ctx context.Context) bool {
	c.logger.Debug("pillbox: probe", zap.String("address", c.Address()))
	body, err := c.send(ctx, EndpointStatus)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.connected = false
		c.status = StatusDisconnected
		return false
	}
	c.connected = true
	c.status = body
	return true
}

// QueryStatus reads the device status without touching the connection state.
func (c *HTTPDeviceClient) QueryStatus(ctx context.Context) string {
	body, err := c.send(ctx, EndpointStatus)
	if err != nil {
		return StatusDisconnected
	}
	return body
}

func (c *HTTPDeviceClient) Open(ctx context.Context) bool {
	return c.Execute(ctx, Open())
}

func (c *HTTPDeviceClient) Close(ctx context.Context) bool {
	return c.Execute(ctx, Close())
}

// Dispense forwards slot without any range check; the firmware owns that rule.
func (c *HTTPDeviceClient) Dispense(ctx context.Context, slot int) bool {
	return c.Execute(ctx, Dispense(slot))
}

func (c *HTTPDeviceClient) SelfTest(ctx context.Context) bool {
	return c.Execute(ctx, SelfTest())
}

func (c *HTTPDeviceClient) Execute(ctx context.Context, cmd Command) bool {
	path := cmd.Path()
	if path == "" {
		c.logger.Warn("pillbox: unsupported command", zap.String("command", string(cmd.Kind)))
		return false
	}
	c.logger.Debug("pillbox: send", zap.Stringer("command", cmd))
	_, err := c.send(ctx, path)
	return err == nil
}

// send issues one bounded GET and resolves to Ok(body) or Err(reason).
func (c *HTTPDeviceClient) send(ctx context.Context, path string) (string, error) {
	target := fmt.Sprintf("http://%s/%s", c.Address(), path)
	endpoint, _, _ := strings.Cut(path, "?")

	defer RecordTimer(endpoint, c.instrument)()

	task := goio.Eval(func() (string, error) {
		return c.get(ctx, target)
	})
	result := goio.RunSync(goio.WithTimeout[string](c.timeout)(task))
	if result.Error != nil {
		c.logger.Warn("pillbox: request failed",
			zap.String("endpoint", endpoint),
			zap.String("url", target),
			zap.String("reason", failureReason(result.Error)),
			zap.Error(result.Error))
		return "", result.Error
	}
	return result.Value, nil
}

func (c *HTTPDeviceClient) get(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %v", ErrNetworkUnreachable, ErrMalformedAddress, err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 2048))
		return "", &StatusError{Code: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	return string(body), nil
}

// ensure interface compliance
var _ DeviceCommander = (*HTTPDeviceClient)(nil)
