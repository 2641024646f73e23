// Package orchestrator implements the top-level request state machine:
// classification of a request onto capability-tagged agents, context
// augmentation from memory and document retrieval, tracked concurrent
// delegation, and synthesis of a single assistant reply.
package orchestrator
