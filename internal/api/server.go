package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/zerobyte/warden/internal/api/models"
	"github.com/zerobyte/warden/internal/events"
	"github.com/zerobyte/warden/internal/logging"
	"github.com/zerobyte/warden/internal/service"
	"github.com/zerobyte/warden/internal/supervisor"
	"github.com/zerobyte/warden/internal/updater"
	"github.com/zerobyte/warden/internal/version"
)

// Options configures the control API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Supervisor        *supervisor.Supervisor
	ServiceController *service.Controller
	UpdateService     updater.Service
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the Huma v2 control API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the control API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("Warden API", version.Version)
	config.Info.Description = "Control API for the zerobyte backend supervisor"
	// Empty servers list makes OpenAPI use relative paths
	config.Servers = []*huma.Server{}

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Metrics endpoint skips Huma so classification and auth don't apply
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	return server
}

// basicAuthMiddleware enforces HTTP basic auth on every operation that
// declares a security requirement. Credentials arrive in the standard
// Authorization header, or base64-encoded in an `auth` query parameter
// for SSE clients, which cannot set headers.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		reject := func(status int, msg string, errs ...error) {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="Warden API"`)
			huma.WriteErr(s.api, ctx, status, msg, errs...)
		}

		encoded := ""
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				reject(http.StatusUnauthorized, "Invalid authentication type")
				return
			}
			encoded = header[len(prefix):]
		} else {
			encoded = ctx.Query("auth")
		}
		if encoded == "" {
			reject(http.StatusUnauthorized, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			reject(http.StatusUnauthorized, "Invalid credentials format", err)
			return
		}
		user, pass, found := strings.Cut(string(decoded), ":")
		if !found {
			reject(http.StatusUnauthorized, "Invalid credentials format")
			return
		}
		if user != username || pass != password {
			reject(http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// GetMux returns the underlying HTTP ServeMux for additional setup
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start starts the HTTP server on the specified address.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting control API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for open connections.
func (s *Server) Stop() error {
	s.logger.Info("stopping control API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	// Health check endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	// Version endpoint - no auth required
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerSupervisorRoutes()
	s.registerServiceRoutes()
	s.registerLogRoutes()
	s.registerEventRoutes()
	s.registerUpdateRoutes()
}

// registerSupervisorRoutes exposes the backend lifecycle status.
func (s *Server) registerSupervisorRoutes() {
	if s.options.Supervisor == nil {
		return
	}
	sup := s.options.Supervisor

	huma.Register(s.api, huma.Operation{
		OperationID: "get-supervisor-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Supervisor Status",
		Description: "Get the current state of the supervised backend",
		Tags:        []string{"supervisor"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.SupervisorStatusResponse, error) {
		info := sup.Status()
		data := models.SupervisorStatusData{
			State:        string(info.State),
			Mode:         string(info.Mode),
			Port:         info.Port,
			PID:          info.PID,
			RestartCount: info.RestartCount,
			LastExitCode: info.LastExitCode,
			BackendURL:   sup.BackendURL(),
		}
		if !info.StartedAt.IsZero() {
			data.StartedAt = info.StartedAt.UTC().Format(time.RFC3339)
		}
		return &models.SupervisorStatusResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "shutdown-backend",
		Method:      http.MethodPost,
		Path:        "/api/shutdown",
		Summary:     "Shutdown Backend",
		Description: "Tear down the supervised backend: graceful first, forced if needed",
		Tags:        []string{"supervisor"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.MessageResponse, error) {
		go sup.Shutdown()
		return &models.MessageResponse{
			Body: models.MessageData{Message: "Backend shutdown initiated"},
		}, nil
	})
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
