// Package awssvc implements the managed-service interfaces from
// internal/handlers on top of the AWS SDK: the knowledge engine
// (Bedrock retrieve-and-generate), speech synthesis (Polly), and
// transcription (Transcribe batch jobs staged through the stack bucket).
package awssvc

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/bedrockagentruntime"

	"github.com/voicekb/voicekb/internal/ctxlog"
	"github.com/voicekb/voicekb/internal/handlers"
)

// promptTemplate steers the generation half of retrieve-and-generate toward
// short, conversational answers in the caller's language.
const promptTemplate = `You are a question answering agent. I will provide you with a set of search results. The user will provide you with a question. Your job is to answer the user's question using information from the search results.
Maintain a conversational and educational style. Be concise and provide short answers. Use less than 5 sentences when possible.
Always answer in the same language that the user is asking.

Here are the search results in numbered order:
$search_results$

$output_format_instructions$
`

// bedrockAPI is the slice of the Bedrock agent runtime client this package calls.
type bedrockAPI interface {
	RetrieveAndGenerateWithContext(aws.Context, *bedrockagentruntime.RetrieveAndGenerateInput, ...request.Option) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// AnswererConfig carries the knowledge-base targeting and generation tuning.
type AnswererConfig struct {
	KnowledgeBaseID  string
	ModelARN         string
	MaxOutputTokens  int
	RetrievalResults int
}

// Answerer implements handlers.Answerer against the Bedrock agent runtime.
type Answerer struct {
	client bedrockAPI
	cfg    AnswererConfig
}

// NewAnswerer wires an Answerer over any client satisfying bedrockAPI.
func NewAnswerer(client bedrockAPI, cfg AnswererConfig) *Answerer {
	return &Answerer{client: client, cfg: cfg}
}

// Answer implements handlers.Answerer. A non-empty sessionID continues the
// engine-side conversation; the engine's own session identifier is always
// returned for the next turn.
func (a *Answerer) Answer(ctx context.Context, prompt, sessionID string) (*handlers.Answer, error) {
	logger := ctxlog.FromContext(ctx)

	input := &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &bedrockagentruntime.RetrieveAndGenerateInput_{
			Text: aws.String(prompt),
		},
		RetrieveAndGenerateConfiguration: &bedrockagentruntime.RetrieveAndGenerateConfiguration{
			Type: aws.String(bedrockagentruntime.RetrieveAndGenerateTypeKnowledgeBase),
			KnowledgeBaseConfiguration: &bedrockagentruntime.KnowledgeBaseRetrieveAndGenerateConfiguration{
				KnowledgeBaseId: aws.String(a.cfg.KnowledgeBaseID),
				ModelArn:        aws.String(a.cfg.ModelARN),
				RetrievalConfiguration: &bedrockagentruntime.KnowledgeBaseRetrievalConfiguration{
					VectorSearchConfiguration: &bedrockagentruntime.KnowledgeBaseVectorSearchConfiguration{
						NumberOfResults: aws.Int64(int64(a.cfg.RetrievalResults)),
					},
				},
				GenerationConfiguration: &bedrockagentruntime.GenerationConfiguration{
					InferenceConfig: &bedrockagentruntime.InferenceConfig{
						TextInferenceConfig: &bedrockagentruntime.TextInferenceConfig{
							MaxTokens: aws.Int64(int64(a.cfg.MaxOutputTokens)),
						},
					},
					PromptTemplate: &bedrockagentruntime.PromptTemplate{
						TextPromptTemplate: aws.String(promptTemplate),
					},
				},
			},
		},
	}
	if sessionID != "" {
		input.SessionId = aws.String(sessionID)
	}

	out, err := a.client.RetrieveAndGenerateWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("retrieve and generate: %w", err)
	}
	if out.Output == nil || out.Output.Text == nil {
		return nil, fmt.Errorf("retrieve and generate: response carried no text")
	}
	logger.Debug("Knowledge engine replied.", "session_id", aws.StringValue(out.SessionId))

	return &handlers.Answer{
		Text:      aws.StringValue(out.Output.Text),
		SessionID: aws.StringValue(out.SessionId),
	}, nil
}
