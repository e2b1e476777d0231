// Package compose declares the concrete resource graph of the voice
// knowledge-base stack: a documents bucket, two execution roles, the managed
// knowledge base with its data source binding, a shared layer, the two
// request handlers, the HTTP gateway, and the exported identifiers. The
// declarations run in topological order against an explicit builder context;
// compose contains no runtime logic of its own.
package compose

import (
	"context"
	"fmt"

	"github.com/voicekb/voicekb/internal/config"
	"github.com/voicekb/voicekb/internal/ctxlog"
	"github.com/voicekb/voicekb/internal/stack"
)

// Logical IDs of every entity the stack declares.
const (
	BucketID        = "Documents"
	HandlerRoleID   = "HandlerRole"
	KnowledgeRoleID = "KnowledgeEngineRole"
	KnowledgeBaseID = "KnowledgeBase"
	DataSourceID    = "DocumentsSource"
	SharedLayerID   = "TranscribeDepsLayer"
	TranscribeFnID  = "TranscribeFn"
	QueryFnID       = "QueryFn"
	GatewayID       = "Api"
)

// Gateway routes.
const (
	QueryRoutePath      = "/knowledge-base/query"
	TranscribeRoutePath = "/transcribe"
)

// Export names surfaced after provisioning.
const (
	ExportGatewayURL      = "GatewayUrl"
	ExportKnowledgeBaseID = "KnowledgeBaseId"
	ExportDataSourceID    = "DataSourceId"
	ExportBucketName      = "BucketName"
)

// Environment variable names read by the handlers.
const (
	EnvRegion          = "REGION"
	EnvKnowledgeBaseID = "KNOWLEDGE_BASE_ID"
	EnvDataSourceID    = "DATA_SOURCE_ID"
)

// Compose builds the full stack from a deployment definition. Construction
// is one deterministic pass: leaves first, then every entity that references
// them, exports last. Any construction error aborts the pass.
func Compose(ctx context.Context, cfg *config.Config) (*stack.Builder, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Composing stack.", "stack", cfg.Name, "region", cfg.Region)

	b, err := stack.NewBuilder(cfg.Name, cfg.Region)
	if err != nil {
		return nil, err
	}

	bucket, err := b.AddBucket(stack.BucketSpec{
		LogicalID:      BucketID,
		DeletionPolicy: cfg.Storage.DeletionPolicy,
		Versioned:      cfg.Storage.Versioned,
	})
	if err != nil {
		return nil, fmt.Errorf("composing storage: %w", err)
	}

	if _, err := b.AddRole(handlerRole(bucket)); err != nil {
		return nil, fmt.Errorf("composing handler role: %w", err)
	}
	if _, err := b.AddRole(knowledgeEngineRole(bucket, cfg.Model.EmbeddingModel)); err != nil {
		return nil, fmt.Errorf("composing knowledge engine role: %w", err)
	}

	if _, err := b.AddKnowledgeBase(stack.KnowledgeBaseSpec{
		LogicalID:         KnowledgeBaseID,
		EmbeddingModelARN: cfg.Model.EmbeddingModel,
		RoleID:            KnowledgeRoleID,
	}); err != nil {
		return nil, fmt.Errorf("composing knowledge base: %w", err)
	}

	if _, err := b.AddDataSourceBinding(stack.DataSourceSpec{
		LogicalID:       DataSourceID,
		KnowledgeBaseID: KnowledgeBaseID,
		BucketID:        BucketID,
		Chunking:        cfg.Chunking,
	}); err != nil {
		return nil, fmt.Errorf("composing data source binding: %w", err)
	}

	if _, err := b.AddLayer(stack.LayerSpec{
		LogicalID:          SharedLayerID,
		ContentPath:        "layers/transcribe-deps",
		CompatibleRuntimes: []string{"python3.12"},
	}); err != nil {
		return nil, fmt.Errorf("composing shared layer: %w", err)
	}

	if _, err := b.AddFunction(stack.FunctionSpec{
		LogicalID:      TranscribeFnID,
		Handler:        "transcribe_function.lambda_handler",
		Runtime:        "python3.12",
		CodePath:       "lambda/transcribeAudio/src",
		RoleID:         HandlerRoleID,
		TimeoutSeconds: cfg.Transcribe.TimeoutSeconds,
		MemoryMB:       cfg.Transcribe.MemoryMB,
		LayerIDs:       []string{SharedLayerID},
		Env: map[string]stack.Value{
			EnvRegion: stack.Literal(cfg.Region),
		},
	}); err != nil {
		return nil, fmt.Errorf("composing transcribe handler: %w", err)
	}

	if _, err := b.AddFunction(stack.FunctionSpec{
		LogicalID:      QueryFnID,
		Handler:        "kb_polly_function.lambda_handler",
		Runtime:        "python3.12",
		CodePath:       "lambda/queryKnowledgeBase/src",
		RoleID:         HandlerRoleID,
		TimeoutSeconds: cfg.Query.TimeoutSeconds,
		MemoryMB:       cfg.Query.MemoryMB,
		Env: map[string]stack.Value{
			EnvKnowledgeBaseID: stack.Deferred(KnowledgeBaseID, stack.AttrKnowledgeBaseID),
			EnvRegion:          stack.Literal(cfg.Region),
			EnvDataSourceID:    stack.Deferred(DataSourceID, stack.AttrDataSourceID),
		},
	}); err != nil {
		return nil, fmt.Errorf("composing query handler: %w", err)
	}

	if _, err := b.AddGateway(stack.GatewaySpec{
		LogicalID: GatewayID,
		CORS: stack.CORSPolicy{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"*"},
			AllowHeaders: cfg.CORSAllowedHeaders,
		},
		Routes: []stack.Route{
			{Path: QueryRoutePath, Method: "POST", FunctionID: QueryFnID},
			{Path: TranscribeRoutePath, Method: "POST", FunctionID: TranscribeFnID},
		},
	}); err != nil {
		return nil, fmt.Errorf("composing gateway: %w", err)
	}

	exports := []struct {
		name, id, attr string
	}{
		{ExportGatewayURL, GatewayID, stack.AttrURL},
		{ExportKnowledgeBaseID, KnowledgeBaseID, stack.AttrKnowledgeBaseID},
		{ExportDataSourceID, DataSourceID, stack.AttrDataSourceID},
		{ExportBucketName, BucketID, stack.AttrBucketName},
	}
	for _, ex := range exports {
		if err := b.AddExport(ex.name, ex.id, ex.attr); err != nil {
			return nil, fmt.Errorf("composing exports: %w", err)
		}
	}

	logger.Debug("Stack composed.", "entity_count", len(b.EntityIDs()))
	return b, nil
}

// handlerRole grants both request handlers what their glue code calls:
// knowledge engine retrieval, speech synthesis, transcription, and the
// documents bucket. Action-level scoping for the managed AI services uses
// broad wildcards because those services expose no per-resource ARNs for
// this action set; storage is scoped to exactly the bucket and its objects.
func handlerRole(bucket *stack.Bucket) stack.RoleSpec {
	return stack.RoleSpec{
		LogicalID:        HandlerRoleID,
		TrustedPrincipal: stack.PrincipalFunctions,
		Grants: []stack.Grant{
			{
				Actions:   []string{"bedrock:InvokeModel", "bedrock:Retrieve", "bedrock:RetrieveAndGenerate"},
				Resources: []string{"*"},
			},
			{
				Actions:   []string{"polly:SynthesizeSpeech"},
				Resources: []string{"*"},
			},
			{
				Actions:   []string{"transcribe:StartTranscriptionJob", "transcribe:GetTranscriptionJob"},
				Resources: []string{"*"},
			},
			{
				Actions:   []string{"s3:GetObject", "s3:PutObject", "s3:ListBucket"},
				Resources: []string{bucket.ARN(), bucket.ObjectsARN()},
			},
		},
	}
}

// knowledgeEngineRole grants the managed knowledge engine read/write on the
// documents bucket plus invocation of the embedding model.
func knowledgeEngineRole(bucket *stack.Bucket, embeddingModel string) stack.RoleSpec {
	return stack.RoleSpec{
		LogicalID:        KnowledgeRoleID,
		TrustedPrincipal: stack.PrincipalKnowledgeEngine,
		Grants: []stack.Grant{
			{
				Actions:   []string{"s3:GetObject", "s3:PutObject", "s3:ListBucket"},
				Resources: []string{bucket.ARN(), bucket.ObjectsARN()},
			},
			{
				Actions:   []string{"bedrock:InvokeModel"},
				Resources: []string{modelARN(embeddingModel)},
			},
		},
	}
}

// modelARN widens a bare model identifier into the foundation-model ARN
// pattern accepted by the permission layer. Identifiers that already look
// like ARNs pass through unchanged.
func modelARN(model string) string {
	if len(model) >= 4 && model[:4] == "arn:" {
		return model
	}
	return "arn:aws:bedrock:*::foundation-model/" + model
}
