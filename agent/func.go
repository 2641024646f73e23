package agent

import (
	"context"

	"github.com/hupe1980/staffmesh/core"
)

// FuncOptions configure a Func agent.
type FuncOptions struct {
	DisplayName  string
	Capabilities []core.Capability
	DependsOn    []string
	Active       bool
}

// Func adapts a plain function into a core.Agent. Handy for tests and for
// task handlers that need no completion model.
type Func struct {
	Base
	fn func(ctx context.Context, inv *core.Invocation) (*core.AgentOutput, error)
}

var _ core.Agent = (*Func)(nil)

// NewFunc wraps fn as an agent with the given name.
func NewFunc(name string, fn func(ctx context.Context, inv *core.Invocation) (*core.AgentOutput, error), optFns ...func(o *FuncOptions)) *Func {
	opts := FuncOptions{
		DisplayName: name,
		Active:      true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Func{
		Base: Base{
			name:         name,
			displayName:  opts.DisplayName,
			kind:         core.AgentKindWorker,
			capabilities: opts.Capabilities,
			dependsOn:    opts.DependsOn,
			active:       opts.Active,
		},
		fn: fn,
	}
}

// Invoke implements core.Agent.
func (f *Func) Invoke(ctx context.Context, inv *core.Invocation) (*core.AgentOutput, error) {
	out, err := f.fn(ctx, inv)
	if err != nil {
		return nil, err
	}
	if out.AgentName == "" {
		out.AgentName = f.Name()
	}
	return out, nil
}
