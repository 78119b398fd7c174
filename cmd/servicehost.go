package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/zerobyte/warden/internal/logging"
	"github.com/zerobyte/warden/internal/process"
	"github.com/zerobyte/warden/internal/supervisor"
)

// CreateServiceHostCmd creates the service-host command: the entry
// point the OS service manager invokes. It supervises the backend in
// service deployment (dedicated port, service-mode environment) and
// translates manager signals into the two-phase shutdown.
func CreateServiceHostCmd() *cobra.Command {
	var executable string
	var port int
	var logJSON bool

	cmd := &cobra.Command{
		Use:    "service-host",
		Short:  "Run as the OS service entry supervising the backend",
		Hidden: true,
		Run: func(_ *cobra.Command, _ []string) {
			format := "text"
			if logJSON {
				format = "json"
			}
			logging.Initialize(logging.Config{Level: "info", Format: format})
			logger := logging.GetLogger("service-host")

			launcher := process.NewLauncher(logging.GetLogger("process"))
			launcher.SetLogParser(logging.GetLogger("process"), process.ParseLogLevel)

			sup := supervisor.New(&supervisor.Options{
				Config: supervisor.Config{
					ExecutablePath: executable,
					Port:           port,
					ServicePort:    port,
					ServiceMode:    true,
				},
				Launcher: launcher,
				Logger:   logging.GetLogger("supervisor"),
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := sup.Start(ctx); err != nil {
				logger.Error("failed to start backend", "error", err)
				os.Exit(1)
			}

			// Under systemd Type=notify this flips the unit to active;
			// elsewhere SdNotify is a no-op and returns false.
			if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				logger.Warn("failed to notify service manager", "error", err)
			} else if sent {
				logger.Debug("service manager notified ready")
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logger.Info("received signal, stopping backend", "signal", sig.String())
				if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
					logger.Warn("failed to notify service manager", "error", err)
				}
				sup.Shutdown()
			case <-sup.Done():
				// Supervision ended on its own: crash bound reached or
				// readiness lost. Exit non-zero so Restart=on-failure
				// brings the host back up.
				info := sup.Status()
				logger.Error("supervision ended", "state", string(info.State),
					"exit_code", info.LastExitCode)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&executable, "executable", "", "Backend executable path")
	cmd.Flags().IntVar(&port, "port", supervisor.DefaultServicePort, "Port the backend listens on")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")

	return cmd
}
