package awssvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/transcribeservice"
	"github.com/google/uuid"

	"github.com/voicekb/voicekb/internal/ctxlog"
)

// defaultPollInterval paces transcription job status checks.
const defaultPollInterval = 2 * time.Second

// transcribeAPI is the slice of the Transcribe client this package calls.
type transcribeAPI interface {
	StartTranscriptionJobWithContext(aws.Context, *transcribeservice.StartTranscriptionJobInput, ...request.Option) (*transcribeservice.StartTranscriptionJobOutput, error)
	GetTranscriptionJobWithContext(aws.Context, *transcribeservice.GetTranscriptionJobInput, ...request.Option) (*transcribeservice.GetTranscriptionJobOutput, error)
}

// s3API is the slice of the S3 client this package calls.
type s3API interface {
	PutObjectWithContext(aws.Context, *s3.PutObjectInput, ...request.Option) (*s3.PutObjectOutput, error)
	GetObjectWithContext(aws.Context, *s3.GetObjectInput, ...request.Option) (*s3.GetObjectOutput, error)
}

// TranscriberConfig names the staging bucket transcription jobs run through.
type TranscriberConfig struct {
	Bucket       string
	PollInterval time.Duration
}

// Transcriber implements handlers.Transcriber with Transcribe batch jobs:
// the audio is staged into the stack bucket, a job is started against it,
// and the transcript JSON the job writes back to the bucket is read out.
type Transcriber struct {
	transcribe transcribeAPI
	storage    s3API
	cfg        TranscriberConfig
}

// NewTranscriber wires a Transcriber over the two service clients.
func NewTranscriber(transcribe transcribeAPI, storage s3API, cfg TranscriberConfig) *Transcriber {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Transcriber{transcribe: transcribe, storage: storage, cfg: cfg}
}

// transcriptDocument is the slice of the job output document we read.
type transcriptDocument struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// Transcribe implements handlers.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	logger := ctxlog.FromContext(ctx)

	jobName := "voicekb-" + uuid.NewString()
	inputKey := "transcribe-input/" + jobName + ".wav"
	outputKey := "transcribe-output/" + jobName + ".json"

	if _, err := t.storage.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.cfg.Bucket),
		Key:    aws.String(inputKey),
		Body:   bytes.NewReader(audio),
	}); err != nil {
		return "", fmt.Errorf("staging audio: %w", err)
	}

	if _, err := t.transcribe.StartTranscriptionJobWithContext(ctx, &transcribeservice.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		IdentifyLanguage:     aws.Bool(true),
		MediaFormat:          aws.String(transcribeservice.MediaFormatWav),
		Media: &transcribeservice.Media{
			MediaFileUri: aws.String(fmt.Sprintf("s3://%s/%s", t.cfg.Bucket, inputKey)),
		},
		OutputBucketName: aws.String(t.cfg.Bucket),
		OutputKey:        aws.String(outputKey),
	}); err != nil {
		return "", fmt.Errorf("starting transcription job: %w", err)
	}
	logger.Debug("Transcription job started.", "job", jobName)

	if err := t.waitForJob(ctx, jobName); err != nil {
		return "", err
	}

	out, err := t.storage.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.cfg.Bucket),
		Key:    aws.String(outputKey),
	})
	if err != nil {
		return "", fmt.Errorf("reading transcript: %w", err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("reading transcript body: %w", err)
	}

	var doc transcriptDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decoding transcript document: %w", err)
	}
	if len(doc.Results.Transcripts) == 0 {
		return "", fmt.Errorf("transcript document carried no transcripts")
	}
	return doc.Results.Transcripts[0].Transcript, nil
}

// waitForJob polls the job until it completes, fails, or the context ends.
func (t *Transcriber) waitForJob(ctx context.Context, jobName string) error {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		out, err := t.transcribe.GetTranscriptionJobWithContext(ctx, &transcribeservice.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return fmt.Errorf("polling transcription job: %w", err)
		}
		switch aws.StringValue(out.TranscriptionJob.TranscriptionJobStatus) {
		case transcribeservice.TranscriptionJobStatusCompleted:
			return nil
		case transcribeservice.TranscriptionJobStatusFailed:
			return fmt.Errorf("transcription job failed: %s", aws.StringValue(out.TranscriptionJob.FailureReason))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
