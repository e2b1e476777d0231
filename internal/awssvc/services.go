package awssvc

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go/service/polly"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/transcribeservice"

	"github.com/voicekb/voicekb/internal/handlers"
)

// Config carries everything needed to build the full AWS service set for
// one resolved stack.
type Config struct {
	Region           string
	Bucket           string
	KnowledgeBaseID  string
	ModelARN         string
	MaxOutputTokens  int
	RetrievalResults int
	VoiceID          string
	VoiceEngine      string
	PollInterval     time.Duration
}

// Services bundles the three managed-service implementations serve mode
// hands to the request handlers.
type Services struct {
	Answerer    handlers.Answerer
	Synthesizer handlers.SpeechSynthesizer
	Transcriber handlers.Transcriber
}

// New builds the AWS-backed service set from one shared session.
func New(sess *session.Session, cfg Config) *Services {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	return &Services{
		Answerer: NewAnswerer(bedrockagentruntime.New(sess, awsCfg), AnswererConfig{
			KnowledgeBaseID:  cfg.KnowledgeBaseID,
			ModelARN:         cfg.ModelARN,
			MaxOutputTokens:  cfg.MaxOutputTokens,
			RetrievalResults: cfg.RetrievalResults,
		}),
		Synthesizer: NewSynthesizer(polly.New(sess, awsCfg), SynthesizerConfig{
			VoiceID: cfg.VoiceID,
			Engine:  cfg.VoiceEngine,
		}),
		Transcriber: NewTranscriber(transcribeservice.New(sess, awsCfg), s3.New(sess, awsCfg), TranscriberConfig{
			Bucket:       cfg.Bucket,
			PollInterval: cfg.PollInterval,
		}),
	}
}
