package config

import (
	"fmt"

	"github.com/voicekb/voicekb/internal/stack"
)

// Default budgets and service settings, mirroring the deployed system.
const (
	DefaultRegion = "us-east-1"

	DefaultTranscribeTimeoutSeconds = 30
	DefaultTranscribeMemoryMB       = 256
	DefaultQueryTimeoutSeconds      = 60
	DefaultQueryMemoryMB            = 512

	DefaultChunkingMaxTokens = 500
	DefaultChunkingOverlap   = 0.20

	DefaultVoiceID     = "Matthew"
	DefaultVoiceEngine = "neural"

	DefaultGenerationModel  = "us.amazon.nova-pro-v1:0"
	DefaultEmbeddingModel   = "amazon.titan-embed-text-v2:0"
	DefaultMaxOutputTokens  = 220
	DefaultRetrievalResults = 3
)

// DefaultCORSHeaders is the fixed header allow-list applied at the gateway root.
var DefaultCORSHeaders = []string{"Content-Type", "X-Amz-Date", "Authorization", "X-Api-Key"}

// Config is the validated deployment definition.
type Config struct {
	Name    string
	Region  string
	Storage Storage

	Chunking   stack.Chunking
	Transcribe HandlerBudget
	Query      HandlerBudget

	CORSAllowedHeaders []string
	Voice              Voice
	Model              Model
}

// Storage holds the bucket's construction-time choices. The deletion policy
// has no default on purpose.
type Storage struct {
	DeletionPolicy stack.DeletionPolicy
	Versioned      bool
}

// HandlerBudget holds one handler's time and memory budgets.
type HandlerBudget struct {
	TimeoutSeconds int
	MemoryMB       int
}

// Voice holds the speech synthesis settings.
type Voice struct {
	VoiceID string
	Engine  string
}

// Model holds the managed model references and retrieval tuning.
type Model struct {
	GenerationModel  string
	EmbeddingModel   string
	MaxOutputTokens  int
	RetrievalResults int
}

// validate checks the assembled definition after defaults are applied.
func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("stack block: name is required")
	}
	switch c.Storage.DeletionPolicy {
	case stack.DeletionPolicyDelete, stack.DeletionPolicyRetain:
	case "":
		return fmt.Errorf("storage block: deletion_policy is required and has no default")
	default:
		return fmt.Errorf("storage block: unknown deletion_policy %q", c.Storage.DeletionPolicy)
	}
	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking block: %w", err)
	}
	for name, h := range map[string]HandlerBudget{"transcribe": c.Transcribe, "query": c.Query} {
		if h.TimeoutSeconds <= 0 {
			return fmt.Errorf("handler %q: timeout_seconds must be positive, got %d", name, h.TimeoutSeconds)
		}
		if h.MemoryMB <= 0 {
			return fmt.Errorf("handler %q: memory_mb must be positive, got %d", name, h.MemoryMB)
		}
	}
	if c.Model.MaxOutputTokens <= 0 {
		return fmt.Errorf("model block: max_output_tokens must be positive, got %d", c.Model.MaxOutputTokens)
	}
	if c.Model.RetrievalResults <= 0 {
		return fmt.Errorf("model block: retrieval_results must be positive, got %d", c.Model.RetrievalResults)
	}
	return nil
}
