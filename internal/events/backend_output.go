package events

import "time"

// BackendOutputPublisher forwards backend process output lines onto the
// bus as BackendLogEvents. It satisfies the launcher's output-handler
// interface.
type BackendOutputPublisher struct {
	bus *Bus
}

// NewBackendOutputPublisher creates a publisher bound to bus.
func NewBackendOutputPublisher(bus *Bus) *BackendOutputPublisher {
	return &BackendOutputPublisher{bus: bus}
}

// HandleLine publishes one output line.
func (p *BackendOutputPublisher) HandleLine(source, line string) {
	p.bus.Publish(BackendLogEvent{
		Source:    source,
		Line:      line,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
