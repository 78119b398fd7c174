package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/zerobyte/warden/internal/events"
	"github.com/zerobyte/warden/internal/logging"
	"github.com/zerobyte/warden/internal/version"
)

// restartDelay lets the HTTP response carrying the operation result
// leave the process before the process terminates itself.
const restartDelay = 500 * time.Millisecond

type service struct {
	repo    selfupdate.Repository
	updater *selfupdate.Updater
	backups *backupManager
	bus     *events.Bus
	logger  *slog.Logger

	enabled        bool
	disabledReason string

	mu          sync.RWMutex
	state       State
	latest      *selfupdate.Release
	lastChecked *time.Time
	lastError   error
}

// NewService creates the self-update service. When warden's own binary
// directory is not writable (packaged installs), the service comes up
// disabled rather than failing, so callers always get a working Service.
func NewService(opts *Options, bus *events.Bus) (Service, error) {
	logger := logging.GetLogger("updater")

	if reason := binaryWritable(); reason != "" {
		logger.Warn("update service disabled", "reason", reason)
		return &service{
			state:          StateIdle,
			disabledReason: reason,
			bus:            bus,
			logger:         logger,
		}, nil
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	backups, err := newBackupManager(logger)
	if err != nil {
		// Updates still work without rollback capability.
		logger.Warn("failed to create backup manager", "error", err)
	}

	return &service{
		repo:    selfupdate.ParseSlug(opts.Repository),
		updater: up,
		backups: backups,
		bus:     bus,
		logger:  logger,
		enabled: true,
		state:   StateIdle,
	}, nil
}

// binaryWritable probes whether the running binary can be replaced in
// place. Returns the reason it cannot, or "" when it can.
func binaryWritable() string {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Sprintf("failed to get executable path: %v", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return fmt.Sprintf("failed to resolve symlinks: %v", err)
	}

	dir := filepath.Dir(exe)
	probe := filepath.Join(dir, ".warden.update.test")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Sprintf("no write permission to %s: %v", dir, err)
	}
	f.Close()
	os.Remove(probe)
	return ""
}

func (s *service) IsEnabled() bool { return s.enabled }

func (s *service) DisabledReason() string { return s.disabledReason }

// CheckForUpdate queries the release source and compares the latest
// release against the running version without downloading anything.
func (s *service) CheckForUpdate(ctx context.Context) (*UpdateInfo, error) {
	if !s.enabled {
		return nil, newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if !s.advance(StateChecking, StateIdle, StateAvailable, StateError) {
		return nil, newError(ErrCodeInvalidState,
			fmt.Sprintf("cannot check for updates in state %s", s.currentState()), nil)
	}

	release, found, err := s.updater.DetectLatest(ctx, s.repo)
	if err != nil {
		s.fail(err)
		return nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}

	now := time.Now()
	s.mu.Lock()
	s.lastChecked = &now
	s.mu.Unlock()

	if !found {
		err := fmt.Errorf("repository not found or has no releases")
		s.fail(err)
		return nil, newError(ErrCodeCheckFailed, err.Error(), nil)
	}

	current := version.Version
	// A source build carries "dev" and takes any release.
	if current != "dev" && !release.GreaterThan(current) {
		s.advance(StateIdle)
		return &UpdateInfo{
			CurrentVersion: current,
			LatestVersion:  release.Version(),
		}, nil
	}

	s.mu.Lock()
	s.latest = release
	s.mu.Unlock()
	s.advance(StateAvailable)

	return &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		ReleaseNotes:    release.ReleaseNotes,
		ReleaseURL:      release.URL,
		PublishedAt:     release.PublishedAt,
		AssetSize:       release.AssetByteSize,
		UpdateAvailable: true,
	}, nil
}

// ApplyUpdate downloads and installs the latest release. The running
// binary is snapshotted first and restored automatically when the apply
// fails. On success the process terminates itself so the service
// manager restarts it on the new binary.
func (s *service) ApplyUpdate(ctx context.Context) error {
	if !s.enabled {
		return newError(ErrCodeDisabled, s.disabledReason, nil)
	}

	// Bare apply from idle runs the check inline.
	if s.currentState() == StateIdle {
		info, err := s.CheckForUpdate(ctx)
		if err != nil {
			return err
		}
		if !info.UpdateAvailable {
			return newError(ErrCodeNoUpdate, "no update available", nil)
		}
	}

	if !s.advance(StateDownloading, StateAvailable) {
		return newError(ErrCodeInvalidState,
			fmt.Sprintf("cannot apply update in state %s", s.currentState()), nil)
	}

	if s.backups != nil {
		if err := s.backups.createBackup(); err != nil {
			s.fail(err)
			return newError(ErrCodeBackupFailed, "failed to create backup", err)
		}
	}

	s.advance(StateApplying)

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		s.fail(err)
		s.rollbackAfterFailure()
		return newError(ErrCodeApplyFailed, "failed to get executable path", err)
	}

	s.mu.RLock()
	release := s.latest
	s.mu.RUnlock()

	if err := s.updater.UpdateTo(ctx, release, exe); err != nil {
		s.fail(err)
		s.rollbackAfterFailure()
		return newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	s.advance(StateRestarting)
	s.logger.Info("update applied, triggering restart", "version", release.Version())
	s.restartSoon()
	return nil
}

// Rollback restores the snapshot taken before the last update and
// restarts onto it.
func (s *service) Rollback(_ context.Context) error {
	if !s.enabled {
		return newError(ErrCodeDisabled, s.disabledReason, nil)
	}
	if s.backups == nil || !s.backups.hasBackup() {
		return newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if err := s.backups.restore(); err != nil {
		return newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}

	s.advance(StateRolledBack)
	s.logger.Info("rollback completed, triggering restart")
	s.restartSoon()
	return nil
}

// GetStatus reports the update state machine, version pair, last error,
// and rollback availability.
func (s *service) GetStatus(_ context.Context) *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &Status{
		State:          s.state,
		CurrentVersion: version.Version,
		LastChecked:    s.lastChecked,
	}
	if s.latest != nil {
		status.TargetVersion = s.latest.Version()
	}
	if s.lastError != nil {
		status.Error = s.lastError.Error()
	}
	if s.backups != nil {
		status.BackupAvailable = s.backups.hasBackup()
		status.BackupVersion = s.backups.backupVersion()
	}
	return status
}

// Restart terminates the process on request, for picking up a manually
// replaced binary.
func (s *service) Restart(_ context.Context) error {
	s.logger.Info("restart requested")
	s.restartSoon()
	return nil
}

// advance moves the state machine to next. With from states given, the
// move only happens when the current state is among them.
func (s *service) advance(next State, from ...State) bool {
	s.mu.Lock()
	if len(from) > 0 && !slices.Contains(from, s.state) {
		s.mu.Unlock()
		return false
	}
	s.logger.Debug("state transition", "from", s.state, "to", next)
	s.state = next
	s.lastError = nil
	var target string
	if s.latest != nil {
		target = s.latest.Version()
	}
	s.mu.Unlock()

	s.announce(next, target, "")
	return true
}

func (s *service) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *service) fail(err error) {
	s.mu.Lock()
	s.lastError = err
	s.state = StateError
	s.mu.Unlock()

	s.announce(StateError, "", err.Error())
}

func (s *service) announce(state State, target, errDetail string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.UpdateStateChangedEvent{
		State:     string(state),
		Version:   target,
		Error:     errDetail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *service) rollbackAfterFailure() {
	if s.backups == nil || !s.backups.hasBackup() {
		s.logger.Error("no backup available for automatic rollback")
		return
	}
	if err := s.backups.restore(); err != nil {
		s.logger.Error("failed to restore backup", "error", err)
		return
	}
	s.advance(StateRolledBack)
	s.logger.Info("automatic rollback completed")
}

// restartSoon sends SIGTERM to the own process after a short delay. The
// surrounding service manager (or shell loop in dev) brings warden back
// up on whatever binary now sits at the executable path.
func (s *service) restartSoon() {
	go func() {
		time.Sleep(restartDelay)

		proc, err := os.FindProcess(os.Getpid())
		if err != nil {
			s.logger.Error("failed to find own process", "error", err)
			return
		}
		s.logger.Info("sending SIGTERM to trigger restart")
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			s.logger.Error("failed to send SIGTERM", "error", err)
		}
	}()
}
