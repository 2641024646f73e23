package core

import "context"

// AgentKind categorizes an agent. Only a master agent may cause other
// agents to be invoked (it does so through the orchestrator, never
// directly).
type AgentKind string

// Known agent kinds.
const (
	AgentKindMaster AgentKind = "master"
	AgentKindWorker AgentKind = "worker"
)

// Capability describes one thing an agent can do. Tag is the stable
// identifier used for selection and dependency declarations; Keywords feed
// the deterministic classifier.
type Capability struct {
	Tag      string   `json:"tag"`
	Keywords []string `json:"keywords,omitempty"`
}

// Agent is the polymorphic contract every task handler implements. The
// orchestrator holds a registry of Agent instances and never inspects
// concrete types.
//
// Implementations must respect context cancellation in Invoke and return
// either a non-nil output or an error, never both nil.
type Agent interface {
	Name() string
	DisplayName() string
	Kind() AgentKind
	Capabilities() []Capability
	// DependsOn names agents whose outputs this agent must see before it
	// runs. Agents with no dependency edges among a delegation set run
	// concurrently; declared dependencies force sequential order.
	DependsOn() []string
	Active() bool
	Invoke(ctx context.Context, inv *Invocation) (*AgentOutput, error)
}

// Invocation carries the per-call context handed to an agent: the task,
// recent conversation history, retrieved memory and document context, and
// outputs of dependency agents that already ran.
type Invocation struct {
	ConversationID string
	Task           string
	History        []*Message
	Memories       []MemoryHit
	DocumentText   string
	Sources        []Source
	PriorOutputs   []*AgentOutput
}

// AgentOutput is the standardized result of one agent invocation.
type AgentOutput struct {
	AgentName  string           `json:"agent_name"`
	Message    string           `json:"message"`
	Thoughts   []string         `json:"thoughts,omitempty"`
	ToolCalls  []ToolCall       `json:"tool_calls,omitempty"`
	Sources    []Source         `json:"sources,omitempty"`
	TokensUsed int              `json:"tokens_used"`
	Memories   []MemoryProposal `json:"-"`
}

// MemoryProposal is a fact an agent wants persisted to its long-term
// memory. The orchestrator embeds and stores proposals after the
// invocation returns.
type MemoryProposal struct {
	Kind       MemoryKind
	Content    string
	Summary    string
	Importance float64
}

// Source attributes retrieved document content for citation.
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Similarity float64 `json:"similarity"`
}

// RegisteredAgent is the read model exposed for agent registry access.
type RegisteredAgent struct {
	Name         string       `json:"name"`
	DisplayName  string       `json:"display_name"`
	Kind         AgentKind    `json:"kind"`
	Capabilities []Capability `json:"capabilities"`
	Active       bool         `json:"active"`
}
