// Package audit records the decisions and admin operations of the policy
// engine into a durable trail.
//
// Records are written asynchronously through a buffered channel so that
// evaluation latency never depends on the audit store. The trail answers
// "what did the engine decide, and why" after the fact; it is not consulted
// during evaluation.
package audit
