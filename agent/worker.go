package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/staffmesh/core"
)

// WorkerOptions configure a Worker.
type WorkerOptions struct {
	DisplayName  string
	Capabilities []core.Capability
	// DependsOn names agents whose outputs this worker must see first.
	DependsOn []string
	Active    bool
	// SystemPrompt frames the worker's role for the completion model.
	SystemPrompt string
	// ProposeMemories makes the worker propose an episodic memory of each
	// handled task for long-term retention.
	ProposeMemories bool
	// MemoryImportance is the initial importance of proposed memories.
	MemoryImportance float64
}

// Worker is a gateway-backed core.Agent: it assembles the invocation
// context into a prompt and answers through a core.Completer.
type Worker struct {
	Base
	completer core.Completer
	opts      WorkerOptions
}

var _ core.Agent = (*Worker)(nil)

// NewWorker creates a worker agent answering through the given completer.
func NewWorker(name string, completer core.Completer, optFns ...func(o *WorkerOptions)) *Worker {
	opts := WorkerOptions{
		DisplayName:      name,
		Active:           true,
		MemoryImportance: 0.5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Worker{
		Base: Base{
			name:         name,
			displayName:  opts.DisplayName,
			kind:         core.AgentKindWorker,
			capabilities: opts.Capabilities,
			dependsOn:    opts.DependsOn,
			active:       opts.Active,
		},
		completer: completer,
		opts:      opts,
	}
}

// Invoke implements core.Agent.
func (w *Worker) Invoke(ctx context.Context, inv *core.Invocation) (*core.AgentOutput, error) {
	var thoughts []string
	contextText := w.buildContext(inv, &thoughts)

	completion, err := w.completer.Complete(ctx, inv.Task, contextText)
	if err != nil {
		return nil, err
	}

	out := &core.AgentOutput{
		AgentName:  w.Name(),
		Message:    completion.Text,
		Thoughts:   thoughts,
		Sources:    inv.Sources,
		TokensUsed: completion.TokensUsed,
	}
	if w.opts.ProposeMemories {
		out.Memories = append(out.Memories, core.MemoryProposal{
			Kind:       core.MemoryKindEpisodic,
			Content:    fmt.Sprintf("Task: %s\nOutcome: %s", inv.Task, completion.Text),
			Summary:    inv.Task,
			Importance: w.opts.MemoryImportance,
		})
	}
	return out, nil
}

// buildContext flattens the invocation into the completion context block
// and records which context classes contributed.
func (w *Worker) buildContext(inv *core.Invocation, thoughts *[]string) string {
	var sections []string
	if w.opts.SystemPrompt != "" {
		sections = append(sections, w.opts.SystemPrompt)
	}
	if len(inv.History) > 0 {
		var b strings.Builder
		b.WriteString("Recent conversation:\n")
		for _, msg := range inv.History {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}
	if len(inv.Memories) > 0 {
		var b strings.Builder
		b.WriteString("Relevant memories:\n")
		for _, hit := range inv.Memories {
			fmt.Fprintf(&b, "- %s\n", hit.Memory.Content)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
		*thoughts = append(*thoughts, fmt.Sprintf("Recalled %d relevant memories", len(inv.Memories)))
	}
	if inv.DocumentText != "" {
		sections = append(sections, "Retrieved document context:\n"+inv.DocumentText)
		*thoughts = append(*thoughts, fmt.Sprintf("Consulted %d document sources", len(inv.Sources)))
	}
	if len(inv.PriorOutputs) > 0 {
		var b strings.Builder
		b.WriteString("Results from other agents:\n")
		for _, prior := range inv.PriorOutputs {
			fmt.Fprintf(&b, "[%s] %s\n", prior.AgentName, prior.Message)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
		*thoughts = append(*thoughts, fmt.Sprintf("Incorporated output from %d prior agents", len(inv.PriorOutputs)))
	}
	return strings.Join(sections, "\n\n")
}
