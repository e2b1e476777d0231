// Package handlers contains the thin glue behind the gateway's two routes.
// All real work is delegated to the managed-service interfaces declared
// here; the handlers only parse request payloads, orchestrate the calls, and
// shape the documented response bodies.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/voicekb/voicekb/internal/ctxlog"
)

// Answer is the knowledge engine's reply to one query turn.
type Answer struct {
	Text string
	// SessionID is the continuity identifier issued by the engine. Threading
	// it back on the next request continues the same conversation.
	SessionID string
}

// Answerer retrieves from the knowledge base and generates a reply.
type Answerer interface {
	Answer(ctx context.Context, prompt, sessionID string) (*Answer, error)
}

// SpeechSynthesizer turns text into raw audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns raw audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// transcribeSuccessMessage is part of the documented transcribe response shape.
const transcribeSuccessMessage = "Audio processed successfully"

var (
	boldMarks  = regexp.MustCompile(`\*\*`)
	lineBreaks = regexp.MustCompile(`\n+`)
	spaceRuns  = regexp.MustCompile(`\s+`)
)

// cleanText strips markdown bold marks and collapses all whitespace runs,
// so the reply reads naturally when spoken.
func cleanText(s string) string {
	s = boldMarks.ReplaceAllString(s, "")
	s = lineBreaks.ReplaceAllString(s, " ")
	return spaceRuns.ReplaceAllString(s, " ")
}

type queryRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionid"`
}

type queryResponse struct {
	GeneratedResponse string `json:"generated_response"`
	SessionID         string `json:"session_id"`
	AudioData         string `json:"audio_data"`
	ExecutionTime     string `json:"executionTime"`
}

type transcribeRequest struct {
	AudioData string `json:"audioData"`
}

type transcribeResponse struct {
	Transcript    string `json:"transcript"`
	ExecutionTime string `json:"executionTime"`
	Message       string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewQueryHandler returns the handler behind the query route: retrieve and
// generate an answer, clean it for speech, synthesize audio, and report
// per-stage timings in the executionTime string.
func NewQueryHandler(answerer Answerer, synthesizer SpeechSynthesizer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := ctxlog.FromContext(ctx)
		start := time.Now()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}

		answer, err := answerer.Answer(ctx, req.Prompt, req.SessionID)
		if err != nil {
			logger.Error("Knowledge engine query failed.", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		kbElapsed := time.Since(start)

		audio, err := synthesizer.Synthesize(ctx, answer.Text)
		if err != nil {
			logger.Error("Speech synthesis failed.", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		synthElapsed := time.Since(start) - kbElapsed

		total := time.Since(start)
		writeJSON(w, http.StatusOK, queryResponse{
			GeneratedResponse: cleanText(answer.Text),
			SessionID:         answer.SessionID,
			AudioData:         base64.StdEncoding.EncodeToString(audio),
			ExecutionTime: fmt.Sprintf("%.2f seconds. kb: %s, polly: %s",
				total.Seconds(), kbElapsed, synthElapsed),
		})
	})
}

// NewTranscribeHandler returns the handler behind the transcribe route.
func NewTranscribeHandler(transcriber Transcriber) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := ctxlog.FromContext(ctx)
		start := time.Now()

		var req transcribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
		audio, err := base64.StdEncoding.DecodeString(req.AudioData)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "audioData is not valid base64: " + err.Error()})
			return
		}

		transcript, err := transcriber.Transcribe(ctx, audio)
		if err != nil {
			logger.Error("Transcription failed.", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, transcribeResponse{
			Transcript:    transcript,
			ExecutionTime: fmt.Sprintf("%.2f seconds", time.Since(start).Seconds()),
			Message:       transcribeSuccessMessage,
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
