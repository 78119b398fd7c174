package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zerobyte/warden/internal/api/models"
	"github.com/zerobyte/warden/internal/updater"
)

// updateRoute describes one self-update endpoint, shared between the
// live and disabled registrations so the OpenAPI surface stays stable.
type updateRoute struct {
	id, method, path, summary string
}

var updateRoutes = struct {
	check, status, apply, rollback, restart updateRoute
}{
	check:    updateRoute{"check-updates", http.MethodGet, "/api/update/check", "Check for Updates"},
	status:   updateRoute{"get-update-status", http.MethodGet, "/api/update/status", "Get Update Status"},
	apply:    updateRoute{"apply-update", http.MethodPost, "/api/update/apply", "Apply Update"},
	rollback: updateRoute{"rollback-update", http.MethodPost, "/api/update/rollback", "Rollback Update"},
	restart:  updateRoute{"restart-warden", http.MethodPost, "/api/update/restart", "Restart Warden"},
}

// registerUpdateRoutes registers warden self-update endpoints.
func (s *Server) registerUpdateRoutes() {
	svc := s.options.UpdateService
	if svc == nil {
		return
	}
	if !svc.IsEnabled() {
		s.registerDisabledUpdateRoutes(svc.DisabledReason())
		return
	}

	registerUpdateOp(s, updateRoutes.check,
		"Check whether a newer version is available, without downloading",
		[]int{401, 409, 500},
		func(ctx context.Context, _ *struct{}) (*models.UpdateCheckResponse, error) {
			info, err := svc.CheckForUpdate(ctx)
			if err != nil {
				return nil, mapUpdateError(err)
			}
			return &models.UpdateCheckResponse{Body: models.UpdateCheckData{
				CurrentVersion:  info.CurrentVersion,
				LatestVersion:   info.LatestVersion,
				ReleaseNotes:    info.ReleaseNotes,
				ReleaseURL:      info.ReleaseURL,
				PublishedAt:     info.PublishedAt,
				AssetSize:       info.AssetSize,
				UpdateAvailable: info.UpdateAvailable,
			}}, nil
		})

	registerUpdateOp(s, updateRoutes.status,
		"Report the updater state, version pair, and rollback availability",
		[]int{401, 500},
		func(ctx context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
			status := svc.GetStatus(ctx)
			return &models.UpdateStatusResponse{Body: models.UpdateStatusData{
				State:           string(status.State),
				CurrentVersion:  status.CurrentVersion,
				TargetVersion:   status.TargetVersion,
				Error:           status.Error,
				LastChecked:     status.LastChecked,
				BackupAvailable: status.BackupAvailable,
				BackupVersion:   status.BackupVersion,
			}}, nil
		})

	registerUpdateOp(s, updateRoutes.apply,
		"Download and install the available update, then restart",
		[]int{400, 401, 409, 500},
		func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
			if err := svc.ApplyUpdate(ctx); err != nil {
				return nil, mapUpdateError(err)
			}
			return &models.MessageResponse{Body: models.MessageData{Message: "Update applied, restarting..."}}, nil
		})

	registerUpdateOp(s, updateRoutes.rollback,
		"Restore the pre-update binary, then restart",
		[]int{400, 401, 404, 500},
		func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
			if err := svc.Rollback(ctx); err != nil {
				return nil, mapUpdateError(err)
			}
			return &models.MessageResponse{Body: models.MessageData{Message: "Rollback complete, restarting..."}}, nil
		})

	registerUpdateOp(s, updateRoutes.restart,
		"Restart the warden process",
		[]int{401, 500},
		func(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
			if err := svc.Restart(ctx); err != nil {
				return nil, huma.Error500InternalServerError(err.Error())
			}
			return &models.MessageResponse{Body: models.MessageData{Message: "Restarting..."}}, nil
		})
}

func registerUpdateOp[O any](s *Server, r updateRoute, desc string, errs []int, handler func(context.Context, *struct{}) (*O, error)) {
	huma.Register(s.api, huma.Operation{
		OperationID: r.id,
		Method:      r.method,
		Path:        r.path,
		Summary:     r.summary,
		Description: desc,
		Tags:        []string{"update"},
		Errors:      errs,
		Security:    withAuth(),
	}, handler)
}

// registerDisabledUpdateRoutes keeps the update surface present but
// answering 503 when the binary cannot be replaced in place.
func (s *Server) registerDisabledUpdateRoutes(reason string) {
	handler := func(_ context.Context, _ *struct{}) (*struct{}, error) {
		return nil, huma.Error503ServiceUnavailable("Update service disabled: " + reason)
	}
	for _, r := range []updateRoute{
		updateRoutes.check, updateRoutes.status, updateRoutes.apply, updateRoutes.rollback,
	} {
		huma.Register(s.api, huma.Operation{
			OperationID: r.id,
			Method:      r.method,
			Path:        r.path,
			Summary:     r.summary,
			Description: "Unavailable: the running binary is not replaceable in place",
			Tags:        []string{"update"},
			Errors:      []int{503},
			Security:    withAuth(),
		}, handler)
	}
}

// mapUpdateError converts updater error codes to Huma HTTP errors.
func mapUpdateError(err error) error {
	var updateErr *updater.Error
	if !errors.As(err, &updateErr) {
		return huma.Error500InternalServerError(err.Error())
	}
	switch updateErr.Code {
	case updater.ErrCodeInvalidState:
		return huma.Error409Conflict(updateErr.Message)
	case updater.ErrCodeNoUpdate:
		return huma.Error400BadRequest(updateErr.Message)
	case updater.ErrCodeNoBackup:
		return huma.Error404NotFound(updateErr.Message)
	case updater.ErrCodeDisabled:
		return huma.Error503ServiceUnavailable(updateErr.Message)
	default:
		return huma.Error500InternalServerError(updateErr.Message)
	}
}
