package compose

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekb/voicekb/internal/config"
	"github.com/voicekb/voicekb/internal/provision"
	"github.com/voicekb/voicekb/internal/stack"
)

// testConfig returns a deployment definition equivalent to the minimal HCL
// with every default applied.
func testConfig() *config.Config {
	return &config.Config{
		Name:   "voicekb",
		Region: config.DefaultRegion,
		Storage: config.Storage{
			DeletionPolicy: stack.DeletionPolicyRetain,
			Versioned:      true,
		},
		Chunking: stack.Chunking{
			MaxTokens:       config.DefaultChunkingMaxTokens,
			OverlapFraction: config.DefaultChunkingOverlap,
		},
		Transcribe: config.HandlerBudget{
			TimeoutSeconds: config.DefaultTranscribeTimeoutSeconds,
			MemoryMB:       config.DefaultTranscribeMemoryMB,
		},
		Query: config.HandlerBudget{
			TimeoutSeconds: config.DefaultQueryTimeoutSeconds,
			MemoryMB:       config.DefaultQueryMemoryMB,
		},
		CORSAllowedHeaders: config.DefaultCORSHeaders,
		Voice: config.Voice{
			VoiceID: config.DefaultVoiceID,
			Engine:  config.DefaultVoiceEngine,
		},
		Model: config.Model{
			GenerationModel:  config.DefaultGenerationModel,
			EmbeddingModel:   config.DefaultEmbeddingModel,
			MaxOutputTokens:  config.DefaultMaxOutputTokens,
			RetrievalResults: config.DefaultRetrievalResults,
		},
	}
}

func TestCompose_DeclaresEveryEntity(t *testing.T) {
	t.Parallel()

	// --- Act ---
	b, err := Compose(context.Background(), testConfig())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{
		BucketID,
		HandlerRoleID,
		KnowledgeRoleID,
		KnowledgeBaseID,
		DataSourceID,
		SharedLayerID,
		TranscribeFnID,
		QueryFnID,
		GatewayID,
	}, b.EntityIDs(), "the stack declares exactly these nine entities, leaves first")

	exportNames := make([]string, 0, 4)
	for _, ex := range b.Exports() {
		exportNames = append(exportNames, ex.Name)
	}
	assert.Equal(t, []string{ExportGatewayURL, ExportKnowledgeBaseID, ExportDataSourceID, ExportBucketName}, exportNames)
}

func TestCompose_StorageGrantsAreScoped(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	b, err := Compose(context.Background(), testConfig())
	require.NoError(t, err)

	bucketEntity, ok := b.Entity(BucketID)
	require.True(t, ok)
	bucket := bucketEntity.(*stack.Bucket)

	// --- Assert ---
	// Every grant naming a storage action must be scoped to exactly the bucket
	// ARN and the contained-objects pattern, never a bare wildcard.
	for _, id := range []string{HandlerRoleID, KnowledgeRoleID} {
		e, ok := b.Entity(id)
		require.True(t, ok)
		role := e.(*stack.Role)

		for _, g := range role.Grants {
			storage := false
			for _, a := range g.Actions {
				if strings.HasPrefix(a, "s3:") {
					storage = true
				}
			}
			if !storage {
				continue
			}
			assert.ElementsMatch(t, []string{bucket.ARN(), bucket.ObjectsARN()}, g.Resources,
				"role %s storage grant must name exactly the bucket and its objects", id)
		}
	}
}

func TestCompose_GatewayRoutes(t *testing.T) {
	t.Parallel()

	b, err := Compose(context.Background(), testConfig())
	require.NoError(t, err)

	e, ok := b.Entity(GatewayID)
	require.True(t, ok)
	gw := e.(*stack.Gateway)

	require.Len(t, gw.Routes, 2, "the gateway exposes exactly two routes")
	assert.Equal(t, stack.Route{Path: QueryRoutePath, Method: "POST", FunctionID: QueryFnID}, gw.Routes[0])
	assert.Equal(t, stack.Route{Path: TranscribeRoutePath, Method: "POST", FunctionID: TranscribeFnID}, gw.Routes[1])
	assert.Equal(t, config.DefaultCORSHeaders, gw.CORS.AllowHeaders)
}

func TestCompose_QueryEnvResolvesFully(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	b, err := Compose(ctx, testConfig())
	require.NoError(t, err)

	// --- Act ---
	resolved, err := b.Finalize(ctx, provision.NewLocalResolver(b.Name(), b.Region()))

	// --- Assert ---
	require.NoError(t, err)

	env := resolved.FunctionEnv[QueryFnID]
	require.NotNil(t, env)
	assert.Equal(t, config.DefaultRegion, env[EnvRegion])
	assert.NotEmpty(t, env[EnvKnowledgeBaseID], "the deferred knowledge base id must be concrete after linking")
	assert.NotEmpty(t, env[EnvDataSourceID], "the deferred data source id must be concrete after linking")
	assert.Equal(t, resolved.Outputs[ExportKnowledgeBaseID], env[EnvKnowledgeBaseID],
		"the env value and the export surface the same generated identifier")

	assert.NotEmpty(t, resolved.Outputs[ExportGatewayURL])
	assert.Equal(t, "voicekb-documents", resolved.Outputs[ExportBucketName])
}

func TestCompose_IsDeterministic(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()

	finalize := func() *stack.Resolved {
		b, err := Compose(ctx, testConfig())
		require.NoError(t, err)
		resolved, err := b.Finalize(ctx, provision.NewLocalResolver(b.Name(), b.Region()))
		require.NoError(t, err)
		return resolved
	}

	// --- Act ---
	first := finalize()
	second := finalize()

	// --- Assert ---
	// Same definition, same order, same identifiers, same outputs.
	assert.Equal(t, first.Order, second.Order)
	assert.Equal(t, first.Outputs, second.Outputs)
	assert.Equal(t, first.FunctionEnv, second.FunctionEnv)
}

func TestCompose_HandlerBudgetsComeFromDefinition(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	cfg := testConfig()
	cfg.Query.TimeoutSeconds = 90
	cfg.Transcribe.MemoryMB = 128

	// --- Act ---
	b, err := Compose(context.Background(), cfg)
	require.NoError(t, err)

	// --- Assert ---
	queryEntity, _ := b.Entity(QueryFnID)
	assert.Equal(t, 90, queryEntity.(*stack.Function).TimeoutSeconds)

	transcribeEntity, _ := b.Entity(TranscribeFnID)
	fn := transcribeEntity.(*stack.Function)
	assert.Equal(t, 128, fn.MemoryMB)
	assert.Equal(t, []string{SharedLayerID}, fn.LayerIDs, "the transcribe handler carries the shared layer")
}
