// Package updater provides self-update functionality for warden.
package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/zerobyte/warden/internal/version"
)

// The previous binary and its manifest live under the user cache so a
// failed update survives reinstalls of the binary directory.
const (
	backupBinaryName   = "warden.backup"
	backupManifestName = "backup.json"
)

type backupManifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExecPath  string    `json:"exec_path"`
}

// backupManager keeps at most one rollback snapshot of the running
// binary.
type backupManager struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	manifest *backupManifest
}

func newBackupManager(logger *slog.Logger) (*backupManager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".cache", "warden", "backup")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	m := &backupManager{dir: dir, logger: logger}
	if manifest, ok := m.readManifest(); ok {
		m.manifest = manifest
		logger.Info("found existing backup", "version", manifest.Version)
	}
	return m, nil
}

// readManifest loads the manifest from a previous run, rejecting it when
// the snapshot binary itself is gone.
func (m *backupManager) readManifest() (*backupManifest, bool) {
	data, err := os.ReadFile(filepath.Join(m.dir, backupManifestName))
	if err != nil {
		return nil, false
	}

	var manifest backupManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		m.logger.Warn("failed to parse backup manifest", "error", err)
		return nil, false
	}
	if _, err := os.Stat(filepath.Join(m.dir, backupBinaryName)); err != nil {
		m.logger.Warn("backup manifest present but binary missing", "error", err)
		return nil, false
	}
	return &manifest, true
}

// createBackup snapshots the current binary before an update overwrites
// it.
func (m *backupManager) createBackup() error {
	execPath, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	snapshotPath := filepath.Join(m.dir, backupBinaryName)
	if err := copyFile(execPath, snapshotPath); err != nil {
		return fmt.Errorf("failed to snapshot executable: %w", err)
	}

	manifest := backupManifest{
		Version:   version.Version,
		CreatedAt: time.Now(),
		ExecPath:  execPath,
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal backup manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, backupManifestName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup manifest: %w", err)
	}

	m.mu.Lock()
	m.manifest = &manifest
	m.mu.Unlock()

	m.logger.Info("backup created", "version", manifest.Version, "path", snapshotPath)
	return nil
}

// restore writes the snapshot back over the executable recorded in the
// manifest.
func (m *backupManager) restore() error {
	m.mu.RLock()
	manifest := m.manifest
	m.mu.RUnlock()
	if manifest == nil {
		return fmt.Errorf("no backup available")
	}

	if err := copyFile(filepath.Join(m.dir, backupBinaryName), manifest.ExecPath); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	m.logger.Info("backup restored", "version", manifest.Version)
	return nil
}

func (m *backupManager) hasBackup() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest != nil
}

func (m *backupManager) backupVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.manifest == nil {
		return ""
	}
	return m.manifest.Version
}

// copyFile copies src over dst, truncating dst and marking it
// executable.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
