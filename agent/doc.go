// Package agent provides building blocks for core.Agent implementations:
// an embeddable Base carrying identity and capabilities, a gateway-backed
// Worker that answers tasks through a Completer, and a Func adapter for
// wiring plain functions as agents.
package agent
