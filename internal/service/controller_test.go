package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zerobyte/warden/internal/events"
)

// fakeQuerier returns a scripted sequence of statuses, repeating the
// last one once the sequence is exhausted.
type fakeQuerier struct {
	mu       sync.Mutex
	sequence []Status
	calls    int
}

func (q *fakeQuerier) Query(_ context.Context, _ string) (Status, string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.calls
	if idx >= len(q.sequence) {
		idx = len(q.sequence) - 1
	}
	q.calls++
	return q.sequence[idx], string(q.sequence[idx]), nil
}

func (q *fakeQuerier) queryCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// fakeElevator records the script it was asked to run.
type fakeElevator struct {
	mu      sync.Mutex
	scripts []string
	err     error
}

func (e *fakeElevator) RunElevated(_ context.Context, scriptPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	content, err := os.ReadFile(scriptPath)
	if err != nil {
		return err
	}
	e.scripts = append(e.scripts, string(content))
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testController(t *testing.T, querier StatusQuerier, elevator Elevator, bus *events.Bus) *Controller {
	t.Helper()
	exe := filepath.Join(t.TempDir(), "zerobyte-server")
	if err := os.WriteFile(exe, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
	return NewController(Options{
		Config: Config{
			Candidates:   []string{exe},
			ScriptDir:    t.TempDir(),
			PollInterval: 5 * time.Millisecond,
			PollTimeout:  100 * time.Millisecond,
		},
		Querier:  querier,
		Elevator: elevator,
		EventBus: bus,
		Logger:   discard(),
	})
}

func TestInstallConvergesToRunning(t *testing.T) {
	querier := &fakeQuerier{sequence: []Status{StatusNotInstalled, StatusStopped, StatusRunning}}
	elevator := &fakeElevator{}
	ctrl := testController(t, querier, elevator, nil)

	desc, err := ctrl.Install(context.Background())
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if desc.Status != StatusRunning {
		t.Errorf("status = %q, want %q", desc.Status, StatusRunning)
	}
	if len(elevator.scripts) != 1 {
		t.Fatalf("got %d elevated scripts, want 1", len(elevator.scripts))
	}
}

func TestInstallAcceptsStoppedAfterTimeout(t *testing.T) {
	// Service registered but never comes up: soft success.
	querier := &fakeQuerier{sequence: []Status{StatusStopped}}
	ctrl := testController(t, querier, &fakeElevator{}, nil)

	desc, err := ctrl.Install(context.Background())
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if desc.Status != StatusStopped {
		t.Errorf("status = %q, want %q", desc.Status, StatusStopped)
	}
}

func TestStartTimesOutWhenNeverRunning(t *testing.T) {
	querier := &fakeQuerier{sequence: []Status{StatusStopped}}
	ctrl := testController(t, querier, &fakeElevator{}, nil)

	_, err := ctrl.Start(context.Background())
	if err == nil {
		t.Fatal("expected a poll timeout error")
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrCodeStatusPollTimeout {
		t.Fatalf("got %v, want code %q", err, ErrCodeStatusPollTimeout)
	}
}

func TestStopOnAbsentServiceSucceeds(t *testing.T) {
	querier := &fakeQuerier{sequence: []Status{StatusNotInstalled}}
	ctrl := testController(t, querier, &fakeElevator{}, nil)

	desc, err := ctrl.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if desc.Status != StatusNotInstalled {
		t.Errorf("status = %q, want %q", desc.Status, StatusNotInstalled)
	}
}

func TestUninstallConverges(t *testing.T) {
	querier := &fakeQuerier{sequence: []Status{StatusRunning, StatusStopped, StatusNotInstalled}}
	ctrl := testController(t, querier, &fakeElevator{}, nil)

	desc, err := ctrl.Uninstall(context.Background())
	if err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if desc.Status != StatusNotInstalled {
		t.Errorf("status = %q, want %q", desc.Status, StatusNotInstalled)
	}
}

func TestElevationDeniedAborts(t *testing.T) {
	querier := &fakeQuerier{sequence: []Status{StatusNotInstalled}}
	denied := newError(ErrCodeElevationDenied, "authorization was not granted", nil)
	ctrl := testController(t, querier, &fakeElevator{err: denied}, nil)

	_, err := ctrl.Install(context.Background())
	if !errors.Is(err, denied) {
		t.Fatalf("got %v, want the elevation error", err)
	}
	if querier.queryCount() != 0 {
		t.Errorf("status polled %d times after denied elevation, want 0", querier.queryCount())
	}
}

func TestInstallWithoutExecutableFails(t *testing.T) {
	ctrl := NewController(Options{
		Config: Config{
			Candidates: []string{filepath.Join(t.TempDir(), "absent")},
		},
		Querier:  &fakeQuerier{sequence: []Status{StatusNotInstalled}},
		Elevator: &fakeElevator{},
		Logger:   discard(),
	})

	_, err := ctrl.Install(context.Background())
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrCodeExecutableNotFound {
		t.Fatalf("got %v, want code %q", err, ErrCodeExecutableNotFound)
	}
}

func TestScriptRemovedAfterOperation(t *testing.T) {
	scriptDir := t.TempDir()
	querier := &fakeQuerier{sequence: []Status{StatusRunning}}
	exe := filepath.Join(t.TempDir(), "zerobyte-server")
	if err := os.WriteFile(exe, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
	ctrl := NewController(Options{
		Config: Config{
			Candidates:   []string{exe},
			ScriptDir:    scriptDir,
			PollInterval: 5 * time.Millisecond,
			PollTimeout:  50 * time.Millisecond,
		},
		Querier:  querier,
		Elevator: &fakeElevator{},
		Logger:   discard(),
	})

	if _, err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%d files left in script dir, want 0", len(entries))
	}
}

func TestInstallScriptContent(t *testing.T) {
	querier := &fakeQuerier{sequence: []Status{StatusRunning}}
	elevator := &fakeElevator{}
	ctrl := testController(t, querier, elevator, nil)

	if _, err := ctrl.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if len(elevator.scripts) != 1 {
		t.Fatalf("got %d scripts, want 1", len(elevator.scripts))
	}
	script := elevator.scripts[0]
	for _, want := range []string{"zerobyte", "4097", "service-host"} {
		if !strings.Contains(script, want) {
			t.Errorf("install script missing %q:\n%s", want, script)
		}
	}
}

func TestOperationPublishesStatusEvent(t *testing.T) {
	bus := events.New()

	received := make(chan events.ServiceStatusChangedEvent, 1)
	unsub := bus.Subscribe(func(e events.ServiceStatusChangedEvent) {
		select {
		case received <- e:
		default:
		}
	})
	defer unsub()

	querier := &fakeQuerier{sequence: []Status{StatusRunning}}
	ctrl := testController(t, querier, &fakeElevator{}, bus)
	if _, err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Operation != string(OpStart) || ev.Status != string(StatusRunning) {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no service status event received")
	}
}

func TestStatusReportsDescriptor(t *testing.T) {
	querier := &fakeQuerier{sequence: []Status{StatusStopped}}
	ctrl := testController(t, querier, &fakeElevator{}, nil)

	desc, err := ctrl.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if desc.Name != "zerobyte" {
		t.Errorf("name = %q, want zerobyte", desc.Name)
	}
	if desc.Status != StatusStopped {
		t.Errorf("status = %q, want %q", desc.Status, StatusStopped)
	}
}

func TestDefaultQuerierSelection(t *testing.T) {
	ctrl := NewController(Options{Logger: discard()})
	if ctrl.querier == nil {
		t.Fatal("controller has no status querier")
	}

	explicit := &fakeQuerier{sequence: []Status{StatusRunning}}
	ctrl = NewController(Options{Querier: explicit, Logger: discard()})
	if ctrl.querier != StatusQuerier(explicit) {
		t.Error("explicit querier was replaced by the default")
	}
}
