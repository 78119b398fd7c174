package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
)

// OutputHandler receives output lines from the backend process.
// Implementations can forward lines to the event bus, metrics, etc.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a backend output line and returns the log level and
// message, so structured levels survive the re-logging.
type LogParser func(line string) (level, msg string)

// Spec describes how to launch the backend process.
type Spec struct {
	Path string
	Args []string
	// Env entries are appended to the current environment. The
	// supervisor communicates deployment mode and port this way; the
	// backend's output is never parsed for control purposes.
	Env map[string]string
	Dir string
}

// Launcher starts backend processes and wires up output streaming.
type Launcher struct {
	logger        *slog.Logger
	processLogger *slog.Logger // logger for backend output (nil = use logger)
	logParser     LogParser    // extracts levels from backend output (nil = info)
	outputHandler OutputHandler
}

// NewLauncher creates a launcher.
func NewLauncher(logger *slog.Logger) *Launcher {
	return &Launcher{logger: logger}
}

// SetLogParser sets a dedicated logger and level parser for backend output.
func (l *Launcher) SetLogParser(logger *slog.Logger, parser LogParser) {
	l.processLogger = logger
	l.logParser = parser
}

// SetOutputHandler sets a handler receiving every backend output line.
func (l *Launcher) SetOutputHandler(handler OutputHandler) {
	l.outputHandler = handler
}

// Launch spawns the backend described by spec and returns its handle.
// The handle is owned exclusively by the caller; no other component may
// signal or reap the process.
func (l *Launcher) Launch(spec Spec) (*Handle, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("empty executable path")
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), envList(spec.Env)...)
	cmd.SysProcAttr = sysProcAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Path, err)
	}

	l.logger.Info("Process started", "path", spec.Path, "pid", cmd.Process.Pid)

	h := &Handle{
		cmd:        cmd,
		done:       make(chan struct{}),
		outputDone: make(chan struct{}, 2),
	}

	go func() {
		l.streamOutput(stdout, "stdout")
		h.outputDone <- struct{}{}
	}()
	go func() {
		l.streamOutput(stderr, "stderr")
		h.outputDone <- struct{}{}
	}()

	go func() {
		// Both streams must hit EOF before Wait, which closes the pipes.
		<-h.outputDone
		<-h.outputDone
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

// envList renders the env map as KEY=VALUE pairs in a stable order.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}

// streamOutput re-logs backend output line by line, routing through the
// configured parser and handler.
func (l *Launcher) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := l.processLogger
	if logger == nil {
		logger = l.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if l.outputHandler != nil {
			l.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if l.logParser != nil {
			level, msg = l.logParser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning", "warn":
			logger.Warn(msg)
		case "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		l.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// Handle is the exclusive handle on a spawned backend process.
type Handle struct {
	cmd        *exec.Cmd
	done       chan struct{} // closed after waitErr is set
	waitErr    error
	outputDone chan struct{} // receives twice, once per output stream
}

// PID returns the process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Exited reports, without blocking, whether the process has exited and
// with which code. The code is -1 while running or when unknown.
func (h *Handle) Exited() (bool, int) {
	select {
	case <-h.done:
		return true, exitCodeFromError(h.waitErr)
	default:
		return false, -1
	}
}

// Wait blocks until the process exits and returns its exit code.
func (h *Handle) Wait() int {
	<-h.done
	return exitCodeFromError(h.waitErr)
}

// Done returns a channel closed when the process has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Signal sends sig to the process without waiting.
func (h *Handle) Signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

// ForceTerminate sends SIGKILL and blocks until the process is reaped.
// It has no timeout: returning before the OS confirms exit would leak a
// signalled but unreaped process.
func (h *Handle) ForceTerminate() int {
	// Kill can fail when the process exited between the caller's check
	// and the signal; the reaper goroutine completes Wait either way.
	_ = h.cmd.Process.Kill()
	return h.Wait()
}

// exitCodeFromError extracts the exit code from a wait error.
// Returns 0 for nil, the exit code for ExitError (-1 when killed by a
// signal), or -1 for unknown errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
