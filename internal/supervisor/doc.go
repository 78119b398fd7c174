// Package supervisor guarantees that exactly one healthy backend
// instance is reachable at a known endpoint.
//
// The Supervisor is a state machine over the backend lifecycle:
//
//	Idle -> Starting -> Running -> Crashed -> Restarting -> Running
//	                       |                      |
//	                       v                      v
//	              StoppingGraceful -> StoppingForced -> Stopped
//
// Starting either spawns a child process (self-managed mode) or
// attaches to an instance already answering the health check
// (external-service mode), in which case the supervisor owns no process
// handle and shutdown never terminates the backend.
//
// Crashes are recovered with a fixed backoff and a bounded restart
// count; exhausting the bound ends supervision in Failed. Shutdown is
// two-phase: a graceful termination request to the control endpoint,
// a fixed grace period, then force kill.
//
// Every state transition is published on the event bus as it occurs.
package supervisor
