package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zerobyte/warden/internal/api/models"
	"github.com/zerobyte/warden/internal/service"
)

// registerServiceRoutes exposes the privileged service lifecycle.
// Requests block until the operation's status poll converges, so
// clients get the settled outcome in one round trip.
func (s *Server) registerServiceRoutes() {
	if s.options.ServiceController == nil {
		return
	}
	ctrl := s.options.ServiceController

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/service/status",
		Summary:     "Service Status",
		Description: "Get the backend's OS service status",
		Tags:        []string{"service"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.ServiceStatusResponse, error) {
		desc, err := ctrl.Status(ctx)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return &models.ServiceStatusResponse{
			Body: models.ServiceStatusData{
				Service:   desc.Name,
				Status:    string(desc.Status),
				StartType: desc.StartType,
			},
		}, nil
	})

	type actionHandler func(context.Context) (*service.Descriptor, error)

	register := func(opID, pathSuffix, summary, description string, action actionHandler) {
		huma.Register(s.api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        "/api/service/" + pathSuffix,
			Summary:     summary,
			Description: description,
			Tags:        []string{"service"},
			Errors:      []int{401, 403, 404, 500, 504},
			Security:    withAuth(),
		}, func(ctx context.Context, _ *struct{}) (*models.ServiceActionResponse, error) {
			desc, err := action(ctx)
			if err != nil {
				return nil, mapServiceError(err)
			}
			return &models.ServiceActionResponse{
				Body: models.ServiceActionData{
					Service: desc.Name,
					Action:  pathSuffix,
					Status:  string(desc.Status),
				},
			}, nil
		})
	}

	register("install-service", "install", "Install Service",
		"Register the backend as an auto-starting OS service and start it. Prompts for elevation.",
		ctrl.Install)
	register("uninstall-service", "uninstall", "Uninstall Service",
		"Stop the backend service and remove its registration. Prompts for elevation.",
		ctrl.Uninstall)
	register("start-service", "start", "Start Service",
		"Start the registered backend service. Prompts for elevation.",
		ctrl.Start)
	register("stop-service", "stop", "Stop Service",
		"Stop the registered backend service. Prompts for elevation.",
		ctrl.Stop)
}

// mapServiceError converts service errors to Huma HTTP errors.
func mapServiceError(err error) error {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		switch svcErr.Code {
		case service.ErrCodeElevationDenied:
			return huma.Error403Forbidden(svcErr.Message)
		case service.ErrCodeExecutableNotFound:
			return huma.Error404NotFound(svcErr.Message)
		case service.ErrCodeStatusPollTimeout:
			return huma.Error504GatewayTimeout(svcErr.Message)
		default:
			return huma.Error500InternalServerError(svcErr.Message)
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
