// Package tracker records agent invocation lifecycles as task executions
// and enforces the pending -> running -> completed|failed transition
// discipline on top of any core.ExecutionStore.
package tracker
