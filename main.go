package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zerobyte/warden/cmd"
	"github.com/zerobyte/warden/internal/api"
	"github.com/zerobyte/warden/internal/config"
	"github.com/zerobyte/warden/internal/events"
	"github.com/zerobyte/warden/internal/logging"
	"github.com/zerobyte/warden/internal/process"
	"github.com/zerobyte/warden/internal/service"
	"github.com/zerobyte/warden/internal/supervisor"
	"github.com/zerobyte/warden/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"warden.toml"`

	// API settings
	APIAddr string `help:"Control API listen address" default:"127.0.0.1:9080" toml:"api.addr" env:"API_ADDR"`

	// Backend settings
	BackendExecutable string `help:"Backend executable path (default: auto-detect)" toml:"backend.executable" env:"BACKEND_EXECUTABLE"`
	BackendPort       int    `help:"Backend port" short:"p" default:"4096" toml:"backend.port" env:"BACKEND_PORT"`
	DevMode           bool   `help:"Wait the full readiness budget for an externally started dev server" default:"false" toml:"backend.dev_mode" env:"DEV_MODE"`

	// Service settings
	ServiceName string `help:"OS service registration name" default:"zerobyte" toml:"service.name" env:"SERVICE_NAME"`
	ServicePort int    `help:"Port the service deployment listens on" default:"4097" toml:"service.port" env:"SERVICE_PORT"`

	// Update settings
	UpdateRepository string `help:"GitHub repository for self-updates" default:"zerobyte/warden" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases when checking for updates" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingProcess    string `help:"Process launcher logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingService    string `help:"Service controller logging level" default:"info" toml:"logging.service" env:"LOGGING_SERVICE"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.Load(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"process":    opts.LoggingProcess,
				"service":    opts.LoggingService,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
			},
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Mirror captured log entries onto the bus for SSE streaming.
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		execPath := opts.BackendExecutable
		if execPath == "" {
			resolved, err := service.ResolveExecutable(service.DefaultCandidates())
			if err != nil {
				logger.Warn("No backend executable found, supervision limited to attach", "error", err)
			} else {
				execPath = resolved
			}
		}

		// Backend output is re-logged under the "process" module and
		// mirrored onto the bus for the SSE backend-log stream.
		launcher := process.NewLauncher(logging.GetLogger("process"))
		launcher.SetLogParser(logging.GetLogger("process"), process.ParseLogLevel)
		launcher.SetOutputHandler(events.NewBackendOutputPublisher(eventBus))

		sup := supervisor.New(&supervisor.Options{
			Config: supervisor.Config{
				ExecutablePath: execPath,
				Port:           opts.BackendPort,
				ServicePort:    opts.ServicePort,
				DevMode:        opts.DevMode,
			},
			Launcher: launcher,
			EventBus: eventBus,
			Metrics:  supervisor.NewMetrics(registry),
			Logger:   logging.GetLogger("supervisor"),
		})

		candidates := service.DefaultCandidates()
		if opts.BackendExecutable != "" {
			candidates = []string{opts.BackendExecutable}
		}
		serviceController := service.NewController(service.Options{
			Config: service.Config{
				ServiceName: opts.ServiceName,
				ServicePort: opts.ServicePort,
				Candidates:  candidates,
			},
			EventBus: eventBus,
			Logger:   logging.GetLogger("service"),
		})

		updateService, updateErr := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepository,
			Prerelease: opts.UpdatePrerelease,
		}, eventBus)
		if updateErr != nil {
			logger.Warn("Failed to create update service", "error", updateErr)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Supervisor:        sup,
			ServiceController: serviceController,
			UpdateService:     updateService,
			EventBus:          eventBus,
			PrometheusHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		})

		// The watcher only retargets log levels: supervised backend
		// settings are fixed for the lifetime of the session.
		var watcher *config.Watcher[logging.Config]
		if _, statErr := os.Stat(opts.Config); statErr == nil {
			watcher = config.NewWatcher(
				opts.Config,
				func(path string) (logging.Config, error) {
					return config.LoadLoggingConfig(path), nil
				},
				logging.GetLogger("config"),
			)
			watcher.OnReload(func(cfg logging.Config) {
				logger.Info("Applying updated log levels")
				logging.ApplyLevels(cfg)
			})
		}

		hooks.OnStart(func() {
			ctx := context.Background()

			if startErr := sup.Start(ctx); startErr != nil {
				logger.Error("Failed to start backend", "error", startErr)
				var supErr *supervisor.Error
				if errors.As(startErr, &supErr) {
					for _, line := range supErr.LogTail {
						fmt.Fprintln(os.Stderr, line)
					}
				}
				os.Exit(1)
			}

			if watcher != nil {
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Warn("Failed to start config watcher", "error", watchErr)
				}
			}

			// Supervision failure after startup should take the host
			// down; the API would otherwise keep serving a dead backend.
			go func() {
				<-sup.Done()
				info := sup.Status()
				if info.State == supervisor.StateFailed {
					logger.Error("Supervision failed, shutting down",
						"restarts", info.RestartCount, "exit_code", info.LastExitCode)
					os.Exit(1)
				}
			}()

			logger.Info("Starting control API", "addr", opts.APIAddr)
			if startErr := server.Start(opts.APIAddr); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start control API", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping control API", "error", stopErr)
			}
			sup.Shutdown()
		})
	})

	cli.Root().Use = "warden"
	cli.Root().AddCommand(cmd.CreateServiceCmd())
	cli.Root().AddCommand(cmd.CreateServiceHostCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}
