package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/voicekb/voicekb/internal/ctxlog"
	"github.com/voicekb/voicekb/internal/fsutil"
	"github.com/voicekb/voicekb/internal/stack"
)

// hclFile represents the top-level structure of a definition file for decoding.
type hclFile struct {
	Stack    *hclStack     `hcl:"stack,block"`
	Storage  *hclStorage   `hcl:"storage,block"`
	Chunking *hclChunking  `hcl:"chunking,block"`
	Handlers []*hclHandler `hcl:"handler,block"`
	CORS     *hclCORS      `hcl:"cors,block"`
	Voice    *hclVoice     `hcl:"voice,block"`
	Model    *hclModel     `hcl:"model,block"`
}

type hclStack struct {
	Name   string `hcl:"name"`
	Region string `hcl:"region,optional"`
}

type hclStorage struct {
	DeletionPolicy string `hcl:"deletion_policy"`
	Versioned      *bool  `hcl:"versioned,optional"`
}

type hclChunking struct {
	MaxTokens *int     `hcl:"max_tokens,optional"`
	Overlap   *float64 `hcl:"overlap,optional"`
}

type hclHandler struct {
	Name           string `hcl:"name,label"`
	TimeoutSeconds *int   `hcl:"timeout_seconds,optional"`
	MemoryMB       *int   `hcl:"memory_mb,optional"`
}

type hclCORS struct {
	AllowedHeaders []string `hcl:"allowed_headers,optional"`
}

type hclVoice struct {
	VoiceID string `hcl:"voice_id,optional"`
	Engine  string `hcl:"engine,optional"`
}

type hclModel struct {
	GenerationModel  string `hcl:"generation_model,optional"`
	EmbeddingModel   string `hcl:"embedding_model,optional"`
	MaxOutputTokens  *int   `hcl:"max_output_tokens,optional"`
	RetrievalResults *int   `hcl:"retrieval_results,optional"`
}

// merged aggregates blocks across every definition file. Singleton blocks may
// appear in at most one file; handler blocks are keyed by their label.
type merged struct {
	stack    *hclStack
	storage  *hclStorage
	chunking *hclChunking
	handlers map[string]*hclHandler
	cors     *hclCORS
	voice    *hclVoice
	model    *hclModel
}

// Load finds every .hcl file under path (a file or a directory), decodes and
// merges them, applies defaults, and validates the result.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading deployment definition.", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find definition files in %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl definition files found in %s", path)
	}

	m := &merged{handlers: make(map[string]*hclHandler)}
	parser := hclparse.NewParser()
	for _, file := range files {
		if err := m.mergeFile(parser, file); err != nil {
			return nil, err
		}
	}
	logger.Debug("Definition files merged.", "file_count", len(files))

	cfg, err := m.assemble()
	if err != nil {
		return nil, err
	}
	logger.Debug("Deployment definition loaded.", "stack", cfg.Name, "region", cfg.Region)
	return cfg, nil
}

// mergeFile parses one definition file and folds its blocks into the merged view.
func (m *merged) mergeFile(parser *hclparse.Parser, filePath string) error {
	hclF, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(hclF.Body, nil, &parsed)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filePath, diags)
	}

	dup := func(name string) error {
		return fmt.Errorf("%s: duplicate %q block: it may appear in only one definition file", filePath, name)
	}
	if parsed.Stack != nil {
		if m.stack != nil {
			return dup("stack")
		}
		m.stack = parsed.Stack
	}
	if parsed.Storage != nil {
		if m.storage != nil {
			return dup("storage")
		}
		m.storage = parsed.Storage
	}
	if parsed.Chunking != nil {
		if m.chunking != nil {
			return dup("chunking")
		}
		m.chunking = parsed.Chunking
	}
	if parsed.CORS != nil {
		if m.cors != nil {
			return dup("cors")
		}
		m.cors = parsed.CORS
	}
	if parsed.Voice != nil {
		if m.voice != nil {
			return dup("voice")
		}
		m.voice = parsed.Voice
	}
	if parsed.Model != nil {
		if m.model != nil {
			return dup("model")
		}
		m.model = parsed.Model
	}
	for _, h := range parsed.Handlers {
		if h.Name != "transcribe" && h.Name != "query" {
			return fmt.Errorf("%s: unknown handler %q: this stack declares handlers \"transcribe\" and \"query\"", filePath, h.Name)
		}
		if _, exists := m.handlers[h.Name]; exists {
			return fmt.Errorf("%s: duplicate handler %q block", filePath, h.Name)
		}
		m.handlers[h.Name] = h
	}
	return nil
}

// assemble applies defaults over the merged blocks and validates the result.
func (m *merged) assemble() (*Config, error) {
	if m.stack == nil {
		return nil, fmt.Errorf("definition is missing the required stack block")
	}
	if m.storage == nil {
		return nil, fmt.Errorf("definition is missing the required storage block")
	}

	cfg := &Config{
		Name:   m.stack.Name,
		Region: m.stack.Region,
		Storage: Storage{
			DeletionPolicy: stack.DeletionPolicy(m.storage.DeletionPolicy),
		},
		Chunking: stack.Chunking{
			MaxTokens:       DefaultChunkingMaxTokens,
			OverlapFraction: DefaultChunkingOverlap,
		},
		Transcribe: HandlerBudget{
			TimeoutSeconds: DefaultTranscribeTimeoutSeconds,
			MemoryMB:       DefaultTranscribeMemoryMB,
		},
		Query: HandlerBudget{
			TimeoutSeconds: DefaultQueryTimeoutSeconds,
			MemoryMB:       DefaultQueryMemoryMB,
		},
		CORSAllowedHeaders: DefaultCORSHeaders,
		Voice: Voice{
			VoiceID: DefaultVoiceID,
			Engine:  DefaultVoiceEngine,
		},
		Model: Model{
			GenerationModel:  DefaultGenerationModel,
			EmbeddingModel:   DefaultEmbeddingModel,
			MaxOutputTokens:  DefaultMaxOutputTokens,
			RetrievalResults: DefaultRetrievalResults,
		},
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if m.storage.Versioned != nil {
		cfg.Storage.Versioned = *m.storage.Versioned
	} else {
		cfg.Storage.Versioned = true
	}
	if m.chunking != nil {
		if m.chunking.MaxTokens != nil {
			cfg.Chunking.MaxTokens = *m.chunking.MaxTokens
		}
		if m.chunking.Overlap != nil {
			cfg.Chunking.OverlapFraction = *m.chunking.Overlap
		}
	}
	if h := m.handlers["transcribe"]; h != nil {
		applyBudget(&cfg.Transcribe, h)
	}
	if h := m.handlers["query"]; h != nil {
		applyBudget(&cfg.Query, h)
	}
	if m.cors != nil && len(m.cors.AllowedHeaders) > 0 {
		cfg.CORSAllowedHeaders = m.cors.AllowedHeaders
	}
	if m.voice != nil {
		if m.voice.VoiceID != "" {
			cfg.Voice.VoiceID = m.voice.VoiceID
		}
		if m.voice.Engine != "" {
			cfg.Voice.Engine = m.voice.Engine
		}
	}
	if m.model != nil {
		if m.model.GenerationModel != "" {
			cfg.Model.GenerationModel = m.model.GenerationModel
		}
		if m.model.EmbeddingModel != "" {
			cfg.Model.EmbeddingModel = m.model.EmbeddingModel
		}
		if m.model.MaxOutputTokens != nil {
			cfg.Model.MaxOutputTokens = *m.model.MaxOutputTokens
		}
		if m.model.RetrievalResults != nil {
			cfg.Model.RetrievalResults = *m.model.RetrievalResults
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyBudget(dst *HandlerBudget, h *hclHandler) {
	if h.TimeoutSeconds != nil {
		dst.TimeoutSeconds = *h.TimeoutSeconds
	}
	if h.MemoryMB != nil {
		dst.MemoryMB = *h.MemoryMB
	}
}
