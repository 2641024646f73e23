package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/logging"
)

// Options configure an InMemoryStore.
type Options struct {
	// Dimension is the fixed embedding dimensionality; Store rejects
	// mismatched vectors.
	Dimension int
	// DecayWindow is how long a memory may sit unaccessed before a decay
	// pass starts reducing its importance.
	DecayWindow time.Duration
	// DecayHalfLife controls the exponential decay rate: importance halves
	// per half-life of idle time beyond the window.
	DecayHalfLife time.Duration
	// PruneFloor deletes a memory once its importance decays below this
	// value and it is idle beyond RetentionWindow.
	PruneFloor float64
	// RetentionWindow protects recently accessed memories from pruning
	// regardless of importance.
	RetentionWindow time.Duration
	// ImportanceBoost is added to every surfaced memory's importance on
	// retrieval (capped at 1). Applied uniformly, so relative order among
	// surfaced entries is stable across repeated retrievals.
	ImportanceBoost float64
	// Clock overrides time.Now for tests.
	Clock func() time.Time
	// Logger receives decay/prune reporting.
	Logger logging.Logger
}

// InMemoryStore is a process-local core.MemoryStore backed by maps.
//
// Concurrency: protected by RWMutex; retrieval takes the write lock since
// it mutates access bookkeeping. Decay is single-flight per agent so
// concurrent passes cannot double-penalize the same memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*core.AgentMemory // agentID -> memoryID -> record
	opts    Options
	decay   singleflight.Group
}

var _ core.MemoryStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates a store for embeddings of the given dimension.
func NewInMemoryStore(dimension int, optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		Dimension:       dimension,
		DecayWindow:     24 * time.Hour,
		DecayHalfLife:   72 * time.Hour,
		PruneFloor:      0.1,
		RetentionWindow: 168 * time.Hour,
		ImportanceBoost: 0.01,
		Clock:           time.Now,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		records: make(map[string]map[string]*core.AgentMemory),
		opts:    opts,
	}
}

// Store implements core.MemoryStore. It validates importance range and
// embedding dimension before any side effect.
func (s *InMemoryStore) Store(
	ctx context.Context,
	agentID string,
	kind core.MemoryKind,
	content string,
	importance float64,
	embedding []float32,
	optFns ...func(o *core.StoreMemoryOptions),
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if agentID == "" {
		return "", core.NewValidationError("agent_id", "must not be empty")
	}
	if content == "" {
		return "", core.NewValidationError("content", "must not be empty")
	}
	if importance < 0 || importance > 1 {
		return "", core.NewValidationError("importance", "must be in [0,1]")
	}
	if err := core.ValidateEmbedding(embedding, s.opts.Dimension); err != nil {
		return "", err
	}

	var opts core.StoreMemoryOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	now := s.opts.Clock()
	rec := &core.AgentMemory{
		ID:             core.NewID(),
		AgentID:        agentID,
		ConversationID: opts.ConversationID,
		Kind:           kind,
		Content:        content,
		Summary:        opts.Summary,
		Importance:     importance,
		Embedding:      append([]float32(nil), embedding...),
		LastAccessed:   now,
		CreatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[agentID]; !ok {
		s.records[agentID] = make(map[string]*core.AgentMemory)
	}
	s.records[agentID][rec.ID] = rec
	return rec.ID, nil
}

// Retrieve implements core.MemoryStore. Results are ordered by similarity
// descending with ties broken by higher importance then more recent
// last_accessed; every surfaced record has its access bookkeeping mutated.
func (s *InMemoryStore) Retrieve(
	ctx context.Context,
	agentID string,
	queryEmbedding []float32,
	k int,
	minSimilarity float64,
	optFns ...func(o *core.RetrieveOptions),
) ([]core.MemoryHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, core.NewValidationError("k", "must be positive")
	}
	if err := core.ValidateEmbedding(queryEmbedding, s.opts.Dimension); err != nil {
		return nil, err
	}

	var opts core.RetrieveOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.records[agentID]
	hits := make([]core.MemoryHit, 0, len(candidates))
	for _, rec := range candidates {
		if opts.ConversationID != "" && rec.ConversationID != opts.ConversationID {
			continue
		}
		if opts.Kind != "" && rec.Kind != opts.Kind {
			continue
		}
		sim := core.CosineSimilarity(queryEmbedding, rec.Embedding)
		if sim < minSimilarity {
			continue
		}
		hits = append(hits, core.MemoryHit{Memory: rec, Similarity: sim})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].Memory.Importance != hits[j].Memory.Importance {
			return hits[i].Memory.Importance > hits[j].Memory.Importance
		}
		return hits[i].Memory.LastAccessed.After(hits[j].Memory.LastAccessed)
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	// Retrieval is never read-only: bump bookkeeping on surfaced records,
	// then hand out copies so callers cannot mutate store state.
	now := s.opts.Clock()
	out := make([]core.MemoryHit, len(hits))
	for i, h := range hits {
		h.Memory.AccessCount++
		h.Memory.LastAccessed = now
		h.Memory.Importance = math.Min(1, h.Memory.Importance+s.opts.ImportanceBoost)
		cp := *h.Memory
		cp.Embedding = append([]float32(nil), h.Memory.Embedding...)
		out[i] = core.MemoryHit{Memory: &cp, Similarity: h.Similarity}
	}
	return out, nil
}

// Decay implements core.MemoryStore. Importance decays exponentially in
// the idle time beyond the configured window; records below the prune
// floor and idle beyond the retention window are deleted. Single-flight
// per agent.
func (s *InMemoryStore) Decay(ctx context.Context, agentID string) (core.DecayStats, error) {
	if err := ctx.Err(); err != nil {
		return core.DecayStats{}, err
	}
	v, err, _ := s.decay.Do(agentID, func() (any, error) {
		return s.decayLocked(agentID), nil
	})
	if err != nil {
		return core.DecayStats{}, err
	}
	return v.(core.DecayStats), nil
}

func (s *InMemoryStore) decayLocked(agentID string) core.DecayStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Clock()
	var stats core.DecayStats
	for id, rec := range s.records[agentID] {
		stats.Examined++
		idle := now.Sub(rec.LastAccessed)
		if idle <= s.opts.DecayWindow {
			continue
		}
		factor := math.Exp2(-float64(idle-s.opts.DecayWindow) / float64(s.opts.DecayHalfLife))
		rec.Importance *= factor
		stats.Decayed++
		if rec.Importance < s.opts.PruneFloor && idle > s.opts.RetentionWindow {
			delete(s.records[agentID], id)
			stats.Pruned++
		}
	}
	if stats.Decayed > 0 || stats.Pruned > 0 {
		s.opts.Logger.Debug("memory decay pass", "agent", agentID,
			"examined", stats.Examined, "decayed", stats.Decayed, "pruned", stats.Pruned)
	}
	return stats
}

// DecayAll runs a decay pass for every agent with stored memories.
func (s *InMemoryStore) DecayAll(ctx context.Context) (core.DecayStats, error) {
	s.mu.RLock()
	agents := make([]string, 0, len(s.records))
	for id := range s.records {
		agents = append(agents, id)
	}
	s.mu.RUnlock()

	var total core.DecayStats
	for _, id := range agents {
		stats, err := s.Decay(ctx, id)
		if err != nil {
			return total, err
		}
		total.Examined += stats.Examined
		total.Decayed += stats.Decayed
		total.Pruned += stats.Pruned
	}
	return total, nil
}

// UnlinkConversation implements core.MemoryStore: deleting a conversation
// nulls originating references, it never cascades into memories.
func (s *InMemoryStore) UnlinkConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, byID := range s.records {
		for _, rec := range byID {
			if rec.ConversationID == conversationID {
				rec.ConversationID = ""
			}
		}
	}
	return nil
}

// DeleteAgent implements core.MemoryStore, cascading an agent's memories.
func (s *InMemoryStore) DeleteAgent(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, agentID)
	return nil
}

// Count returns the number of memories stored for an agent.
func (s *InMemoryStore) Count(agentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[agentID])
}

// Get returns a copy of a single memory, mainly for tests and inspection.
func (s *InMemoryStore) Get(agentID, memoryID string) (*core.AgentMemory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[agentID][memoryID]
	if !ok {
		return nil, false
	}
	cp := *rec
	cp.Embedding = append([]float32(nil), rec.Embedding...)
	return &cp, true
}
