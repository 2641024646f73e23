package core

import (
	"context"
	"time"
)

// MemoryKind classifies a long-term memory. The set is open in the data
// model; these are the well-understood kinds plus an explicit fallback so
// switch statements stay meaningful.
type MemoryKind string

// Known memory kinds.
const (
	MemoryKindEpisodic   MemoryKind = "episodic"
	MemoryKindSemantic   MemoryKind = "semantic"
	MemoryKindPreference MemoryKind = "preference"
	MemoryKindProcedural MemoryKind = "procedural"
	MemoryKindOther      MemoryKind = "other"
)

// NormalizeMemoryKind maps free-form kind labels onto the known set,
// falling back to MemoryKindOther.
func NormalizeMemoryKind(s string) MemoryKind {
	switch MemoryKind(s) {
	case MemoryKindEpisodic, MemoryKindSemantic, MemoryKindPreference, MemoryKindProcedural:
		return MemoryKind(s)
	default:
		return MemoryKindOther
	}
}

// AgentMemory is one long-term memory owned by an agent. Importance and
// access bookkeeping mutate on every retrieval that surfaces the record;
// ConversationID is a non-owning reference nulled when the conversation is
// deleted.
type AgentMemory struct {
	ID             string     `json:"id"`
	AgentID        string     `json:"agent_id"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Kind           MemoryKind `json:"kind"`
	Content        string     `json:"content"`
	Summary        string     `json:"summary,omitempty"`
	Importance     float64    `json:"importance"`
	Embedding      []float32  `json:"-"`
	AccessCount    int        `json:"access_count"`
	LastAccessed   time.Time  `json:"last_accessed"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MemoryHit pairs a retrieved memory with its similarity to the query.
type MemoryHit struct {
	Memory     *AgentMemory
	Similarity float64
}

// StoreMemoryOptions carries the optional fields of MemoryStore.Store.
type StoreMemoryOptions struct {
	ConversationID string
	Summary        string
}

// RetrieveOptions carries the optional filters of MemoryStore.Retrieve.
type RetrieveOptions struct {
	ConversationID string
	Kind           MemoryKind
}

// DecayStats summarizes one decay pass over an agent's memories.
type DecayStats struct {
	Examined int
	Decayed  int
	Pruned   int
}

// MemoryStore is the per-agent long-term memory contract.
//
// Contract:
//   - Store rejects importance outside [0,1] and embeddings whose
//     dimensionality differs from the configured dimension
//   - Retrieve ranks by cosine similarity descending, breaking ties by
//     higher importance then more recent last_accessed; it returns at most
//     k entries, none below minSimilarity, and increments access_count /
//     refreshes last_accessed on every returned entry - retrieval is never
//     read-only
//   - Decay reduces importance of memories idle beyond the configured
//     window (monotone in elapsed idle time) and prunes records below the
//     floor; it never runs concurrently with itself for the same agent
//   - UnlinkConversation nulls originating references, never deletes
type MemoryStore interface {
	Store(ctx context.Context, agentID string, kind MemoryKind, content string, importance float64, embedding []float32, optFns ...func(o *StoreMemoryOptions)) (string, error)
	Retrieve(ctx context.Context, agentID string, queryEmbedding []float32, k int, minSimilarity float64, optFns ...func(o *RetrieveOptions)) ([]MemoryHit, error)
	Decay(ctx context.Context, agentID string) (DecayStats, error)
	UnlinkConversation(ctx context.Context, conversationID string) error
	DeleteAgent(ctx context.Context, agentID string) error
}
