package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/zerobyte/warden/internal/logging"
	"github.com/zerobyte/warden/internal/service"
)

// CreateServiceCmd creates the service command and its lifecycle
// subcommands. These are one-shot CLI entry points; the same
// controller also backs the HTTP endpoints when warden runs as host.
func CreateServiceCmd() *cobra.Command {
	var serviceName string
	var executable string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the backend's OS service registration",
		Long: `Install, remove, start, stop, or inspect the backend server's OS service entry. ` +
			`Mutating operations prompt for administrator privileges.`,
	}

	cmd.PersistentFlags().StringVar(&serviceName, "service-name", "zerobyte", "OS service registration name")
	cmd.PersistentFlags().StringVar(&executable, "executable", "", "Backend executable path (default: auto-detect)")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")

	newController := func() *service.Controller {
		format := "text"
		if logJSON {
			format = "json"
		}
		logging.Initialize(logging.Config{Level: "info", Format: format})

		cfg := service.Config{ServiceName: serviceName}
		if executable != "" {
			cfg.Candidates = []string{executable}
		}
		return service.NewController(service.Options{
			Config: cfg,
			Logger: logging.GetLogger("service"),
		})
	}

	type operation func(*service.Controller, context.Context) (*service.Descriptor, error)

	runOp := func(verb string, op operation) func(*cobra.Command, []string) {
		return func(_ *cobra.Command, _ []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			desc, err := op(newController(), ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "service %s failed: %v\n", verb, err)
				os.Exit(1)
			}
			fmt.Printf("service %q: %s\n", desc.Name, desc.Status)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Register the backend as an auto-starting OS service",
		Run:   runOp("install", (*service.Controller).Install),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Stop the backend service and remove its registration",
		Run:   runOp("uninstall", (*service.Controller).Uninstall),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the registered backend service",
		Run:   runOp("start", (*service.Controller).Start),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the registered backend service",
		Run:   runOp("stop", (*service.Controller).Stop),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the backend service status",
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			desc, err := newController().Status(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "service status failed: %v\n", err)
				os.Exit(1)
			}
			if desc.StartType != "" {
				fmt.Printf("service %q: %s (start: %s)\n", desc.Name, desc.Status, desc.StartType)
			} else {
				fmt.Printf("service %q: %s\n", desc.Name, desc.Status)
			}
		},
	})

	return cmd
}
