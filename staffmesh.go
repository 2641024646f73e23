// Package staffmesh provides a high-level façade over the orchestration
// and retrieval core (orchestrator, memory, document pipeline, tracking
// and logging) enabling rapid construction of a multi-agent assistant.
// Most applications interact with this package by:
//  1. Creating a StaffMesh via New() (optionally overriding default
//     in-memory stores and the mock gateway)
//  2. Registering one or more capability-tagged agents
//  3. Sending chat requests via Chat() and ingesting documents via
//     IngestDocument()
//
// The façade delegates request handling to orchestrator.Orchestrator
// while keeping setup concise. All defaults are safe for local
// development and testing; production deployments supply a real model
// gateway, the SQLite stores, and a structured logger.
package staffmesh

import (
	"context"

	"github.com/hupe1980/staffmesh/config"
	"github.com/hupe1980/staffmesh/conversation"
	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/gateway"
	"github.com/hupe1980/staffmesh/logging"
	"github.com/hupe1980/staffmesh/memory"
	"github.com/hupe1980/staffmesh/orchestrator"
	"github.com/hupe1980/staffmesh/rag"
	"github.com/hupe1980/staffmesh/tracker"
)

// Options configure the StaffMesh instance.
type Options struct {
	// Settings supply the tunable knobs; defaults to config.Default().
	Settings *config.Settings

	// Gateway is the embedding/completion model adapter. Defaults to the
	// deterministic mock, which is only suitable for development.
	Gateway core.Gateway

	// Stores (default to in-memory implementations if not provided).
	ConversationStore core.ConversationStore
	MemoryStore       core.MemoryStore
	ExecutionStore    core.ExecutionStore
	DocumentStore     core.DocumentStore
	VectorIndex       rag.VectorIndex

	// Classifier overrides the default keyword classifier.
	Classifier orchestrator.Classifier

	// SummaryRefresh enables asynchronous rolling conversation summaries.
	SummaryRefresh bool

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// StaffMesh is the high-level façade aggregating the core components.
type StaffMesh struct {
	opts      Options
	registry  *orchestrator.Registry
	orch      *orchestrator.Orchestrator
	pipeline  *rag.Pipeline
	documents core.DocumentStore
	convs     core.ConversationStore
}

// New creates a StaffMesh instance with optional overrides. Any unset
// store is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *StaffMesh {
	opts := Options{
		Settings: config.Default(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Settings
	if opts.Gateway == nil {
		opts.Gateway = gateway.NewMock(cfg.EmbeddingDimension)
	}
	if opts.ConversationStore == nil {
		opts.ConversationStore = conversation.NewInMemoryStore()
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore(cfg.EmbeddingDimension, func(o *memory.Options) {
			o.DecayWindow = cfg.DecayWindow
			o.DecayHalfLife = cfg.DecayHalfLife
			o.PruneFloor = cfg.PruneFloor
			o.RetentionWindow = cfg.RetentionWindow
			o.ImportanceBoost = cfg.ImportanceBoost
			o.Logger = opts.Logger
		})
	}
	if opts.ExecutionStore == nil {
		opts.ExecutionStore = tracker.NewInMemoryStore()
	}
	if opts.DocumentStore == nil {
		opts.DocumentStore = rag.NewInMemoryDocumentStore()
	}
	if opts.VectorIndex == nil {
		opts.VectorIndex = rag.NewInMemoryIndex()
	}
	if opts.Classifier == nil {
		opts.Classifier = orchestrator.NewKeywordClassifier()
	}

	gw := gateway.WithRetry(opts.Gateway, func(o *gateway.RetryOptions) {
		o.MaxAttempts = cfg.GatewayMaxRetries
	})

	splitter := rag.NewSplitter(func(o *rag.SplitterOptions) {
		o.ChunkSize = cfg.ChunkSize
		o.ChunkOverlap = cfg.ChunkOverlap
	})
	pipeline := rag.NewPipeline(opts.DocumentStore, opts.VectorIndex, gw, splitter, func(o *rag.Options) {
		o.RetrievalK = cfg.RetrievalK
		o.MinSimilarity = cfg.MinSimilarity
		o.ScopedK = cfg.ScopedK
		o.ScopedSimilarity = cfg.ScopedSimilarity
		o.DedupeCeiling = cfg.DedupeCeiling
		o.Logger = opts.Logger
	})

	registry := orchestrator.NewRegistry()
	orch := orchestrator.New(
		registry,
		opts.ConversationStore,
		opts.MemoryStore,
		tracker.New(opts.ExecutionStore, func(o *tracker.Options) { o.Logger = opts.Logger }),
		pipeline,
		gw,
		func(o *orchestrator.Options) {
			o.Classifier = opts.Classifier
			o.HistoryWindow = cfg.HistoryWindow
			o.MemoryK = cfg.MemoryK
			o.MemorySimilarity = cfg.MemorySimilarity
			o.InvocationTimeout = cfg.InvocationTimeout
			o.MaxDelegations = cfg.MaxDelegations
			o.SummaryRefresh = opts.SummaryRefresh
			o.Logger = opts.Logger
		},
	)

	return &StaffMesh{
		opts:      opts,
		registry:  registry,
		orch:      orch,
		pipeline:  pipeline,
		documents: opts.DocumentStore,
		convs:     opts.ConversationStore,
	}
}

// RegisterAgent adds an agent to the registry.
func (m *StaffMesh) RegisterAgent(a core.Agent) error { return m.registry.Register(a) }

// ChatOptions carry the optional fields of Chat.
type ChatOptions struct {
	ConversationID string
	UserID         string
	UseRAG         bool
	DocumentIDs    []string
}

// Chat handles one request and returns the single reply.
func (m *StaffMesh) Chat(ctx context.Context, message string, optFns ...func(o *ChatOptions)) (*orchestrator.Response, error) {
	var opts ChatOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return m.orch.Handle(ctx, &orchestrator.Request{
		Message:        message,
		ConversationID: opts.ConversationID,
		UserID:         opts.UserID,
		UseRAG:         opts.UseRAG,
		DocumentIDs:    opts.DocumentIDs,
	})
}

// IngestDocument chunks, embeds, and indexes raw text for retrieval.
func (m *StaffMesh) IngestDocument(ctx context.Context, userID, filename, fileType string, content []byte) (*core.Document, error) {
	return m.pipeline.Ingest(ctx, userID, filename, fileType, content)
}

// Orchestrator exposes the underlying orchestrator, e.g. for mounting
// the HTTP server.
func (m *StaffMesh) Orchestrator() *orchestrator.Orchestrator { return m.orch }

// Pipeline exposes the document retrieval pipeline.
func (m *StaffMesh) Pipeline() *rag.Pipeline { return m.pipeline }

// Conversations exposes the conversation store.
func (m *StaffMesh) Conversations() core.ConversationStore { return m.convs }

// Documents exposes the document store.
func (m *StaffMesh) Documents() core.DocumentStore { return m.documents }
