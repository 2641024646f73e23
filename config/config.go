// Package config loads runtime settings from the environment. Every knob
// the core components leave open (chunk sizing, decay policy, timeouts,
// embedding dimension) is configuration with a documented default rather
// than a hardcoded constant.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds all tunable parameters. Values are read from the
// environment with the STAFFMESH_ prefix, e.g. STAFFMESH_CHUNK_SIZE.
type Settings struct {
	// Gateway
	OpenAIModel          string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIEmbeddingModel string        `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimension   int           `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
	GatewayTimeout       time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
	GatewayMaxRetries    int           `envconfig:"GATEWAY_MAX_RETRIES" default:"3"`

	// Document retrieval
	ChunkSize        int     `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap     int     `envconfig:"CHUNK_OVERLAP" default:"200"`
	RetrievalK       int     `envconfig:"RETRIEVAL_K" default:"5"`
	MinSimilarity    float64 `envconfig:"MIN_SIMILARITY" default:"0.7"`
	DedupeCeiling    float64 `envconfig:"DEDUPE_CEILING" default:"0.97"`
	ScopedSimilarity float64 `envconfig:"SCOPED_MIN_SIMILARITY" default:"0.2"`
	ScopedK          int     `envconfig:"SCOPED_RETRIEVAL_K" default:"8"`

	// Memory
	MemoryK          int           `envconfig:"MEMORY_K" default:"3"`
	MemorySimilarity float64       `envconfig:"MEMORY_MIN_SIMILARITY" default:"0.5"`
	DecayWindow      time.Duration `envconfig:"DECAY_WINDOW" default:"24h"`
	DecayHalfLife    time.Duration `envconfig:"DECAY_HALF_LIFE" default:"72h"`
	PruneFloor       float64       `envconfig:"PRUNE_FLOOR" default:"0.1"`
	RetentionWindow  time.Duration `envconfig:"RETENTION_WINDOW" default:"168h"`
	ImportanceBoost  float64       `envconfig:"IMPORTANCE_BOOST" default:"0.01"`

	// Orchestration
	InvocationTimeout time.Duration `envconfig:"INVOCATION_TIMEOUT" default:"120s"`
	MaxDelegations    int           `envconfig:"MAX_DELEGATIONS" default:"10"`
	HistoryWindow     int           `envconfig:"HISTORY_WINDOW" default:"10"`

	// Transport & persistence
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":2000"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"staffmesh.db"`
}

// Load reads settings from the environment and validates them.
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("STAFFMESH", &s); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns the documented default settings without touching the
// environment. Handy for tests and examples.
func Default() *Settings {
	var s Settings
	// envconfig fills defaults for unset variables; an empty lookup map is
	// not supported, so rely on Process with the regular prefix.
	if err := envconfig.Process("STAFFMESH", &s); err != nil {
		panic(err)
	}
	return &s
}

// Validate checks cross-field invariants.
func (s *Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("chunk overlap must satisfy 0 <= overlap < size, got %d/%d", s.ChunkOverlap, s.ChunkSize)
	}
	if s.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", s.EmbeddingDimension)
	}
	if s.PruneFloor < 0 || s.PruneFloor > 1 {
		return fmt.Errorf("prune floor must be in [0,1], got %f", s.PruneFloor)
	}
	return nil
}
