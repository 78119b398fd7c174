package process

import (
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestLaunchEmptyPath(t *testing.T) {
	l := NewLauncher(discardLogger())
	if _, err := l.Launch(Spec{}); err == nil {
		t.Fatal("expected an error for empty executable path")
	}
}

func TestLaunchMissingExecutable(t *testing.T) {
	l := NewLauncher(discardLogger())
	if _, err := l.Launch(Spec{Path: "/nonexistent/binary"}); err == nil {
		t.Fatal("expected an error for missing executable")
	}
}

func TestHandleCleanExit(t *testing.T) {
	skipOnWindows(t)

	l := NewLauncher(discardLogger())
	h, err := l.Launch(Spec{Path: "/bin/sh", Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Fatal(err)
	}
	if code := h.Wait(); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}

	exited, code := h.Exited()
	if !exited || code != 0 {
		t.Errorf("Exited() = (%v, %d), want (true, 0)", exited, code)
	}
}

func TestHandleNonzeroExit(t *testing.T) {
	skipOnWindows(t)

	l := NewLauncher(discardLogger())
	h, err := l.Launch(Spec{Path: "/bin/sh", Args: []string{"-c", "exit 7"}})
	if err != nil {
		t.Fatal(err)
	}
	if code := h.Wait(); code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

func TestExitedNonBlockingWhileRunning(t *testing.T) {
	skipOnWindows(t)

	l := NewLauncher(discardLogger())
	h, err := l.Launch(Spec{Path: "/bin/sh", Args: []string{"-c", "exec sleep 5"}})
	if err != nil {
		t.Fatal(err)
	}
	defer h.ForceTerminate()

	exited, code := h.Exited()
	if exited {
		t.Error("Exited() reported true for a running process")
	}
	if code != -1 {
		t.Errorf("code = %d, want -1 while running", code)
	}
}

func TestForceTerminateReaps(t *testing.T) {
	skipOnWindows(t)

	l := NewLauncher(discardLogger())
	h, err := l.Launch(Spec{Path: "/bin/sh", Args: []string{"-c", "exec sleep 30"}})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan int, 1)
	go func() { done <- h.ForceTerminate() }()

	select {
	case code := <-done:
		// SIGKILL surfaces as -1
		if code != -1 {
			t.Errorf("exit code = %d, want -1 after SIGKILL", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ForceTerminate did not return")
	}

	if exited, _ := h.Exited(); !exited {
		t.Error("process not reported exited after ForceTerminate")
	}
}

func TestEnvPassedToChild(t *testing.T) {
	skipOnWindows(t)

	lines := &lineCollector{}
	l := NewLauncher(discardLogger())
	l.SetOutputHandler(lines)

	h, err := l.Launch(Spec{
		Path: "/bin/sh",
		Args: []string{"-c", `echo "port=$PORT mode=$ZEROBYTE_SERVICE_MODE"`},
		Env:  map[string]string{"PORT": "4097", "ZEROBYTE_SERVICE_MODE": "1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	h.Wait()

	want := "port=4097 mode=1"
	if !lines.contains(want) {
		t.Errorf("child output %v, want line %q", lines.all(), want)
	}
}

func TestOutputHandlerReceivesBothStreams(t *testing.T) {
	skipOnWindows(t)

	lines := &lineCollector{}
	l := NewLauncher(discardLogger())
	l.SetOutputHandler(lines)

	h, err := l.Launch(Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo out; echo err >&2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	h.Wait()

	if !lines.containsSource("stdout", "out") {
		t.Errorf("missing stdout line, got %v", lines.all())
	}
	if !lines.containsSource("stderr", "err") {
		t.Errorf("missing stderr line, got %v", lines.all())
	}
}

func TestDoneChannelCloses(t *testing.T) {
	skipOnWindows(t)

	l := NewLauncher(discardLogger())
	h, err := l.Launch(Spec{Path: "/bin/sh", Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done channel never closed")
	}
}

func TestEnvListStableOrder(t *testing.T) {
	env := map[string]string{"B": "2", "A": "1", "C": "3"}
	got := envList(env)
	want := []string{"A=1", "B=2", "C=3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("envList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// lineCollector records output lines with their source stream.
type lineCollector struct {
	mu    sync.Mutex
	lines []struct{ source, line string }
}

func (c *lineCollector) HandleLine(source, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, struct{ source, line string }{source, line})
}

func (c *lineCollector) contains(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l.line == line {
			return true
		}
	}
	return false
}

func (c *lineCollector) containsSource(source, line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l.source == source && l.line == line {
			return true
		}
	}
	return false
}

func (c *lineCollector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, l.source+": "+l.line)
	}
	return out
}
