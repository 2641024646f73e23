// Package gateway provides implementations of the core.Gateway contract:
// a deterministic mock for tests and examples, a retry decorator with
// bounded backoff that classifies failures as core.GatewayError, and
// Compose for pairing a Completer with a separate Embedder. Provider
// adapters live in the gateway/openai and gateway/anthropic subpackages.
package gateway
