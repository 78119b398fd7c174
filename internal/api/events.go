package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/zerobyte/warden/internal/events"
)

// registerEventRoutes registers the native Huma SSE endpoint for
// lifecycle events.
func (s *Server) registerEventRoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of supervisor transitions, service status changes, backend output, and update progress",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"supervisor-state-changed": events.SupervisorStateChangedEvent{},
		"service-status-changed":   events.ServiceStatusChangedEvent{},
		"backend-log":              events.BackendLogEvent{},
		"update-state-changed":     events.UpdateStateChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SupervisorStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ServiceStatusChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.BackendLogEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.UpdateStateChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
