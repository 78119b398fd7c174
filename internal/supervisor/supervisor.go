package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/zerobyte/warden/internal/events"
	"github.com/zerobyte/warden/internal/health"
	"github.com/zerobyte/warden/internal/process"
)

// Well-known backend endpoints and launch environment.
const (
	healthPath   = "/healthcheck"
	shutdownPath = "/api/shutdown"

	envPort        = "PORT"
	envServiceMode = "ZEROBYTE_SERVICE_MODE"
)

// Config holds the supervision parameters. Zero values are filled with
// the defaults below; there are no package-level knobs.
type Config struct {
	ExecutablePath string // backend binary, already resolved
	Port           int    // port for a self-managed backend
	ServicePort    int    // port the external-service deployment listens on
	ServiceMode    bool   // launch the backend flagged as a service deployment
	DevMode        bool   // wait the full readiness budget for an already-running dev server

	ProbeTimeout       time.Duration // per-probe HTTP timeout
	ProbeInterval      time.Duration // delay between readiness probes
	ProbeAttempts      int           // readiness probe budget
	QuickProbeAttempts int           // budget for the already-running check
	MonitorInterval    time.Duration // exit-detection cadence
	RestartBackoff     time.Duration // delay before a crash restart
	MaxRestarts        int           // restart bound per supervision session
	GracePeriod        time.Duration // wait after a graceful shutdown request
	ShutdownTimeout    time.Duration // shutdown request HTTP timeout
}

// Supervision defaults, matching the backend's documented timings.
const (
	DefaultPort               = 4096
	DefaultServicePort        = 4097
	defaultProbeTimeout       = 2 * time.Second
	defaultProbeInterval      = 500 * time.Millisecond
	defaultProbeAttempts      = 30
	defaultQuickProbeAttempts = 2
	defaultMonitorInterval    = time.Second
	defaultRestartBackoff     = 5 * time.Second
	defaultMaxRestarts        = 3
	defaultGracePeriod        = 3 * time.Second
	defaultShutdownTimeout    = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ServicePort == 0 {
		c.ServicePort = DefaultServicePort
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = defaultProbeInterval
	}
	if c.ProbeAttempts == 0 {
		c.ProbeAttempts = defaultProbeAttempts
	}
	if c.QuickProbeAttempts == 0 {
		c.QuickProbeAttempts = defaultQuickProbeAttempts
	}
	if c.MonitorInterval == 0 {
		c.MonitorInterval = defaultMonitorInterval
	}
	if c.RestartBackoff == 0 {
		c.RestartBackoff = defaultRestartBackoff
	}
	if c.MaxRestarts == 0 {
		c.MaxRestarts = defaultMaxRestarts
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}

// Options configures a Supervisor.
type Options struct {
	Config   Config
	Launcher *process.Launcher
	EventBus *events.Bus
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Supervisor owns the lifecycle of the one backend instance: start,
// readiness confirmation, crash recovery with a bounded restart count,
// and two-phase shutdown. The monitoring loop runs on its own goroutine
// so shutdown requests are never blocked behind its sleep intervals.
type Supervisor struct {
	cfg        Config
	launcher   *process.Launcher
	prober     *health.Prober
	negotiator *Negotiator
	bus        *events.Bus
	metrics    *Metrics
	logger     *slog.Logger

	mu           sync.RWMutex
	state        State
	mode         Mode
	port         int
	restartCount int
	lastExitCode int
	startedAt    time.Time
	handle       *process.Handle

	// Single-producer single-consumer shutdown signal; the monitor loop
	// receives it without blocking every iteration.
	stopCh   chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Supervisor in the Idle state.
func New(opts *Options) *Supervisor {
	cfg := opts.Config.withDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = process.NewLauncher(logger)
	}

	return &Supervisor{
		cfg:        cfg,
		launcher:   launcher,
		prober:     health.NewProber(cfg.ProbeTimeout, logger),
		negotiator: NewNegotiator(cfg.ShutdownTimeout, logger),
		bus:        opts.EventBus,
		metrics:    opts.Metrics,
		logger:     logger,
		state:      StateIdle,
		mode:       ModeSelfManaged,
		port:       cfg.Port,
		stopCh:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start brings the backend up: it attaches to an already-healthy
// instance when one exists, otherwise spawns a child and confirms
// readiness before handing off to the monitoring loop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return newError(ErrCodeInvalidState, fmt.Sprintf("cannot start in state %s", state), nil)
	}
	s.mu.Unlock()

	// A healthy instance on the service port means the backend already
	// runs as an OS service; attach instead of spawning a second copy.
	if s.prober.Probe(ctx, healthURL(s.cfg.ServicePort)) {
		s.logger.Info("Service deployment detected, attaching", "port", s.cfg.ServicePort)
		s.attachExternal(s.cfg.ServicePort)
		return nil
	}

	// Quick check for an instance already on our own port, e.g. a
	// previous host instance. Dev mode waits the full budget so a dev
	// server still warming up is found.
	quickAttempts := s.cfg.QuickProbeAttempts
	if s.cfg.DevMode {
		quickAttempts = s.cfg.ProbeAttempts
	}
	if s.prober.Poll(ctx, healthURL(s.cfg.Port), s.cfg.ProbeInterval, quickAttempts) {
		s.logger.Info("Backend already running, attaching", "port", s.cfg.Port)
		s.attachExternal(s.cfg.Port)
		return nil
	}

	s.setState(StateStarting)

	handle, err := s.launch()
	if err != nil {
		s.setState(StateFailed)
		s.closeDone()
		return newError(ErrCodeLaunchFailed, "failed to start backend", err)
	}

	s.mu.Lock()
	s.handle = handle
	s.mode = ModeSelfManaged
	s.startedAt = time.Now()
	s.mu.Unlock()

	if !s.prober.Poll(ctx, healthURL(s.cfg.Port), s.cfg.ProbeInterval, s.cfg.ProbeAttempts) {
		s.logger.Error("Backend never became healthy, terminating", "attempts", s.cfg.ProbeAttempts)
		exitCode := handle.ForceTerminate()
		s.setExitCode(exitCode)
		s.setState(StateFailed)
		s.closeDone()
		return newError(ErrCodeReadinessTimeout,
			fmt.Sprintf("backend not ready after %d attempts", s.cfg.ProbeAttempts), nil)
	}

	s.setState(StateRunning)
	go s.monitor()
	return nil
}

// attachExternal marks the supervisor as attached to an instance it did
// not spawn and will never terminate.
func (s *Supervisor) attachExternal(port int) {
	s.mu.Lock()
	s.mode = ModeExternalService
	s.port = port
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.setState(StateRunning)
}

// launch spawns the backend with its deployment environment.
func (s *Supervisor) launch() (*process.Handle, error) {
	env := map[string]string{envPort: strconv.Itoa(s.cfg.Port)}
	if s.cfg.ServiceMode {
		env[envServiceMode] = "1"
	}
	return s.launcher.Launch(process.Spec{
		Path: s.cfg.ExecutablePath,
		Env:  env,
	})
}

// monitor is the supervision loop. It owns all state mutation after
// startup and runs until the backend is stopped or supervision fails.
func (s *Supervisor) monitor() {
	defer s.closeDone()

	for {
		// The shutdown signal is checked before exit detection every
		// iteration so a caller-initiated stop is never misreported as
		// a crash, even if the backend exits in the same instant.
		select {
		case <-s.stopCh:
			s.stopOwned()
			return
		default:
		}

		if exited, code := s.currentHandle().Exited(); exited {
			if !s.recover(code) {
				return
			}
			continue
		}

		select {
		case <-s.stopCh:
			s.stopOwned()
			return
		case <-time.After(s.cfg.MonitorInterval):
		}
	}
}

// recover handles an unexpected backend exit: bounded backoff restart.
// Returns false when supervision ends (restart bound hit, relaunch
// failure, or a shutdown request arriving mid-recovery).
func (s *Supervisor) recover(exitCode int) bool {
	s.setExitCode(exitCode)
	s.logger.Error("Backend exited unexpectedly", "exit_code", exitCode)
	s.setState(StateCrashed)

	s.mu.Lock()
	if s.restartCount >= s.cfg.MaxRestarts {
		count := s.restartCount
		s.mu.Unlock()
		s.logger.Error("Restart bound reached, giving up", "restarts", count, "exit_code", exitCode)
		s.setState(StateFailed)
		return false
	}
	s.restartCount++
	attempt := s.restartCount
	s.mu.Unlock()

	s.setState(StateRestarting)
	s.logger.Info("Restarting backend", "attempt", attempt, "backoff", s.cfg.RestartBackoff)

	select {
	case <-s.stopCh:
		// Nothing left to terminate; report a clean stop.
		s.stopOwned()
		return false
	case <-time.After(s.cfg.RestartBackoff):
	}

	handle, err := s.launch()
	if err != nil {
		s.logger.Error("Relaunch failed", "error", err)
		s.setState(StateFailed)
		return false
	}

	s.mu.Lock()
	s.handle = handle
	s.startedAt = time.Now()
	s.mu.Unlock()

	if !s.prober.Poll(context.Background(), healthURL(s.cfg.Port), s.cfg.ProbeInterval, s.cfg.ProbeAttempts) {
		s.logger.Error("Restarted backend never became healthy, terminating")
		s.setExitCode(handle.ForceTerminate())
		s.setState(StateFailed)
		return false
	}

	s.setState(StateRunning)
	return true
}

// stopOwned runs the two-phase shutdown of a self-managed backend:
// negotiate, wait the grace period, then force kill if still alive.
func (s *Supervisor) stopOwned() {
	s.setState(StateStoppingGraceful)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	s.negotiator.RequestShutdown(ctx, shutdownURL(s.currentPort()))
	cancel()

	// The grace period runs regardless of the negotiation outcome.
	time.Sleep(s.cfg.GracePeriod)

	handle := s.currentHandle()
	exited, code := handle.Exited()
	if !exited {
		s.setState(StateStoppingForced)
		s.logger.Warn("Backend still running after grace period, force killing", "pid", handle.PID())
		code = handle.ForceTerminate()
	}

	s.setExitCode(code)
	s.logger.Info("Backend stopped", "exit_code", code)
	s.setState(StateStopped)
}

// Shutdown tears the backend down and blocks until supervision has
// ended. It is idempotent: calling it on an already-stopped supervisor
// is a no-op.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	switch s.state {
	case StateStopped, StateFailed:
		s.mu.Unlock()
		return
	case StateIdle:
		s.mu.Unlock()
		s.setState(StateStopped)
		s.closeDone()
		return
	}

	if s.mode == ModeExternalService {
		s.mu.Unlock()
		// Never terminate a process the supervisor did not spawn.
		s.logger.Info("External instance, leaving backend running")
		s.setState(StateStopped)
		s.closeDone()
		return
	}
	s.mu.Unlock()

	select {
	case s.stopCh <- struct{}{}:
	default:
		// A stop is already pending.
	}
	<-s.done
}

// Done returns a channel closed when supervision has ended, whether by
// shutdown or failure.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Status returns a snapshot of the supervised backend.
func (s *Supervisor) Status() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		State:        s.state,
		Mode:         s.mode,
		Port:         s.port,
		RestartCount: s.restartCount,
		LastExitCode: s.lastExitCode,
		StartedAt:    s.startedAt,
	}
	if s.handle != nil && s.state == StateRunning && s.mode == ModeSelfManaged {
		info.PID = s.handle.PID()
	}
	return info
}

// BackendURL returns the base URL the healthy backend serves on.
func (s *Supervisor) BackendURL() string {
	return fmt.Sprintf("http://localhost:%d", s.currentPort())
}

func (s *Supervisor) setState(to State) {
	s.mu.Lock()
	from := s.state
	if from == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	mode := s.mode
	restarts := s.restartCount
	exitCode := s.lastExitCode
	s.mu.Unlock()

	s.logger.Info("State changed", "from", from, "to", to)
	s.metrics.observeTransition(to)
	if s.bus != nil {
		s.bus.Publish(events.SupervisorStateChangedEvent{
			From:         string(from),
			To:           string(to),
			Mode:         string(mode),
			RestartCount: restarts,
			ExitCode:     exitCode,
			Timestamp:    time.Now().Format(time.RFC3339),
		})
	}
}

func (s *Supervisor) setExitCode(code int) {
	s.mu.Lock()
	s.lastExitCode = code
	s.mu.Unlock()
}

func (s *Supervisor) currentHandle() *process.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

func (s *Supervisor) currentPort() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

func (s *Supervisor) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func healthURL(port int) string {
	return fmt.Sprintf("http://localhost:%d%s", port, healthPath)
}

func shutdownURL(port int) string {
	return fmt.Sprintf("http://localhost:%d%s", port, shutdownPath)
}
