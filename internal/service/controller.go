package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zerobyte/warden/internal/events"
	"github.com/zerobyte/warden/internal/health"
)

const (
	// DefaultPollInterval is the delay between status queries while
	// waiting for an operation to take effect.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultPollTimeout bounds how long an operation waits for the
	// service manager to converge on the expected status.
	DefaultPollTimeout = 15 * time.Second
)

// Config holds the identity of the managed service and the polling
// behavior of lifecycle operations.
type Config struct {
	// ServiceName is the registration name in the OS service manager.
	ServiceName string

	// DisplayName is the human-readable name shown by service UIs.
	DisplayName string

	// Description is the service description installed with the entry.
	Description string

	// ServicePort is the port the installed service listens on.
	ServicePort int

	// Candidates are the executable locations tried in order. Empty
	// means DefaultCandidates.
	Candidates []string

	// ScriptDir overrides where temp scripts are written. Empty means
	// the system temp directory.
	ScriptDir string

	PollInterval time.Duration
	PollTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = "zerobyte"
	}
	if c.DisplayName == "" {
		c.DisplayName = "Zerobyte Server"
	}
	if c.Description == "" {
		c.Description = "Zerobyte backend server"
	}
	if c.ServicePort == 0 {
		c.ServicePort = 4097
	}
	if len(c.Candidates) == 0 {
		c.Candidates = DefaultCandidates()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	return c
}

// Options configures a Controller. Nil fields get working defaults.
type Options struct {
	Config   Config
	Querier  StatusQuerier
	Elevator Elevator
	EventBus *events.Bus
	Logger   *slog.Logger
}

// Controller drives service lifecycle operations: it renders a
// privileged script, runs it elevated, then polls the service manager
// until the status converges on the operation's expected outcome.
type Controller struct {
	cfg      Config
	querier  StatusQuerier
	elevator Elevator
	bus      *events.Bus
	logger   *slog.Logger
}

// NewController creates a service lifecycle controller.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	querier := opts.Querier
	if querier == nil {
		querier = defaultQuerier(logger)
	}
	elevator := opts.Elevator
	if elevator == nil {
		elevator = NewElevator(logger)
	}
	return &Controller{
		cfg:      opts.Config.withDefaults(),
		querier:  querier,
		elevator: elevator,
		bus:      opts.EventBus,
		logger:   logger,
	}
}

// Install registers the backend as an auto-starting OS service and
// starts it. The service entry runs this binary in service-host mode
// pointed at the resolved backend executable.
func (c *Controller) Install(ctx context.Context) (*Descriptor, error) {
	execPath, err := ResolveExecutable(c.cfg.Candidates)
	if err != nil {
		return nil, err
	}
	hostPath, err := os.Executable()
	if err != nil {
		return nil, newError(ErrCodeScriptFailed, "resolving own executable path", err)
	}
	c.logger.Info("installing service",
		"name", c.cfg.ServiceName, "host", hostPath, "executable", execPath)
	return c.runOperation(ctx, OpInstall, hostPath, execPath)
}

// Uninstall stops the service if running and removes its registration.
func (c *Controller) Uninstall(ctx context.Context) (*Descriptor, error) {
	c.logger.Info("uninstalling service", "name", c.cfg.ServiceName)
	return c.runOperation(ctx, OpUninstall, "", "")
}

// Start starts the registered service.
func (c *Controller) Start(ctx context.Context) (*Descriptor, error) {
	c.logger.Info("starting service", "name", c.cfg.ServiceName)
	return c.runOperation(ctx, OpStart, "", "")
}

// Stop stops the registered service.
func (c *Controller) Stop(ctx context.Context) (*Descriptor, error) {
	c.logger.Info("stopping service", "name", c.cfg.ServiceName)
	return c.runOperation(ctx, OpStop, "", "")
}

// Status queries the current status without touching the service.
func (c *Controller) Status(ctx context.Context) (*Descriptor, error) {
	status, raw, err := c.querier.Query(ctx, c.cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("service status", "name", c.cfg.ServiceName, "status", status, "raw", raw)

	desc := &Descriptor{Name: c.cfg.ServiceName, Status: status}
	if stq, ok := c.querier.(StartTypeQuerier); ok && status != StatusNotInstalled {
		if startType, err := stq.StartType(ctx, c.cfg.ServiceName); err == nil {
			desc.StartType = startType
		}
	}
	return desc, nil
}

// runOperation writes the operation script, runs it elevated, then
// polls until the service manager reports the expected status. The
// script is removed on every path, success or not.
func (c *Controller) runOperation(ctx context.Context, op Operation, hostPath, execPath string) (*Descriptor, error) {
	scriptPath, err := c.writeScript(op, hostPath, execPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(scriptPath)

	if err := c.elevator.RunElevated(ctx, scriptPath); err != nil {
		return nil, err
	}

	desc, err := c.awaitStatus(ctx, op)
	if err != nil {
		return nil, err
	}
	c.publishStatus(desc.Status, op)
	c.logger.Info("service operation complete",
		"name", c.cfg.ServiceName, "operation", string(op), "status", string(desc.Status))
	return desc, nil
}

func (c *Controller) writeScript(op Operation, hostPath, execPath string) (string, error) {
	dir := c.cfg.ScriptDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "warden-"+string(op)+"-*"+scriptExtension())
	if err != nil {
		return "", newError(ErrCodeScriptFailed, "creating operation script", err)
	}
	script := buildScript(op, c.cfg, hostPath, execPath)
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", newError(ErrCodeScriptFailed, "writing operation script", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", newError(ErrCodeScriptFailed, "writing operation script", err)
	}
	if err := os.Chmod(f.Name(), 0o700); err != nil {
		os.Remove(f.Name())
		return "", newError(ErrCodeScriptFailed, "marking operation script executable", err)
	}
	return f.Name(), nil
}

// awaitStatus polls the service manager until it reports the status
// the operation converges to. Query errors during polling are treated
// as "not yet": service managers are briefly inconsistent right after
// a change. One final query after the deadline decides soft success.
func (c *Controller) awaitStatus(ctx context.Context, op Operation) (*Descriptor, error) {
	want := op.desiredStatus()
	attempts := int(c.cfg.PollTimeout / c.cfg.PollInterval)
	if attempts < 1 {
		attempts = 1
	}

	var last Status
	converged := health.PollUntil(ctx, c.cfg.PollInterval, attempts, func(attempt int) bool {
		status, _, err := c.querier.Query(ctx, c.cfg.ServiceName)
		if err != nil {
			c.logger.Debug("status query failed during convergence poll",
				"operation", string(op), "attempt", attempt, "error", err)
			return false
		}
		last = status
		return status == want
	})
	if converged {
		return &Descriptor{Name: c.cfg.ServiceName, Status: want}, nil
	}

	// Final re-query: the last poll result may be stale by a full
	// interval, and some outcomes short of the target still count.
	status, raw, err := c.querier.Query(ctx, c.cfg.ServiceName)
	if err != nil {
		status = last
	}
	if status == want || op.acceptableStatus(status) {
		return &Descriptor{Name: c.cfg.ServiceName, Status: status}, nil
	}
	return nil, newError(ErrCodeStatusPollTimeout,
		fmt.Sprintf("service did not reach %q after %s (currently %q, raw: %s)",
			want, c.cfg.PollTimeout, status, raw), nil)
}

func (c *Controller) publishStatus(status Status, op Operation) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.ServiceStatusChangedEvent{
		Service:   c.cfg.ServiceName,
		Status:    string(status),
		Operation: string(op),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
