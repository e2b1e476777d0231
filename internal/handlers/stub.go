package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// StubAnswerer is an offline Answerer for development and tests. It echoes
// the request's session identifier, minting one when the request carries none,
// exactly the continuity contract the managed engine provides.
type StubAnswerer struct {
	// Reply overrides the generated text when set.
	Reply string
}

// Answer implements Answerer.
func (s *StubAnswerer) Answer(_ context.Context, prompt, sessionID string) (*Answer, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	text := s.Reply
	if text == "" {
		text = fmt.Sprintf("Here is what the knowledge base has on %q.", prompt)
	}
	return &Answer{Text: text, SessionID: sessionID}, nil
}

// StubSynthesizer is an offline SpeechSynthesizer producing a short,
// deterministic PCM-shaped byte pattern.
type StubSynthesizer struct{}

// Synthesize implements SpeechSynthesizer.
func (StubSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	// One sample per character keeps the payload proportional to the text.
	out := make([]byte, 0, len(text)*2)
	for i := range text {
		out = append(out, byte(i%64), text[i])
	}
	if len(out) == 0 {
		out = []byte{0, 0}
	}
	return out, nil
}

// StubTranscriber is an offline Transcriber.
type StubTranscriber struct {
	// Transcript overrides the produced text when set.
	Transcript string
}

// Transcribe implements Transcriber.
func (s *StubTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	if s.Transcript != "" {
		return s.Transcript, nil
	}
	return fmt.Sprintf("transcribed %d bytes of audio", len(audio)), nil
}
