package awssvc

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/polly"
)

// pollyAPI is the slice of the Polly client this package calls.
type pollyAPI interface {
	SynthesizeSpeechWithContext(aws.Context, *polly.SynthesizeSpeechInput, ...request.Option) (*polly.SynthesizeSpeechOutput, error)
}

// SynthesizerConfig selects the voice and engine used for synthesis.
type SynthesizerConfig struct {
	VoiceID string
	Engine  string
}

// Synthesizer implements handlers.SpeechSynthesizer against Polly, producing
// raw 16 kHz PCM.
type Synthesizer struct {
	client pollyAPI
	cfg    SynthesizerConfig
}

// NewSynthesizer wires a Synthesizer over any client satisfying pollyAPI.
func NewSynthesizer(client pollyAPI, cfg SynthesizerConfig) *Synthesizer {
	return &Synthesizer{client: client, cfg: cfg}
}

// Synthesize implements handlers.SpeechSynthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	out, err := s.client.SynthesizeSpeechWithContext(ctx, &polly.SynthesizeSpeechInput{
		Engine:       aws.String(s.cfg.Engine),
		Text:         aws.String(text),
		OutputFormat: aws.String(polly.OutputFormatPcm),
		SampleRate:   aws.String("16000"),
		VoiceId:      aws.String(s.cfg.VoiceID),
		TextType:     aws.String(polly.TextTypeText),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("reading audio stream: %w", err)
	}
	return audio, nil
}
