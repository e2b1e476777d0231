package app

import (
	"context"
	"fmt"
	"os"

	"github.com/voicekb/voicekb/internal/awssvc"
	"github.com/voicekb/voicekb/internal/compose"
	"github.com/voicekb/voicekb/internal/ctxlog"
	"github.com/voicekb/voicekb/internal/gateway"
	"github.com/voicekb/voicekb/internal/handlers"
	"github.com/voicekb/voicekb/internal/provision"
	"github.com/voicekb/voicekb/internal/registry"
	"github.com/voicekb/voicekb/internal/stack"
	"github.com/voicekb/voicekb/internal/synth"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
)

// Run executes the requested command against the composed stack.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	switch a.config.Command {
	case CommandValidate:
		return a.runValidate(ctx)
	case CommandSynth:
		if a.config.Watch {
			return a.watchAndSynth(ctx)
		}
		return a.runSynth(ctx)
	case CommandServe:
		return a.runServe(ctx)
	default:
		return fmt.Errorf("unknown command %q", a.config.Command)
	}
}

// runValidate checks the composed graph and a dry-run render without writing
// anything.
func (a *App) runValidate(ctx context.Context) error {
	g, err := a.builder.Graph()
	if err != nil {
		return fmt.Errorf("stack validation failed: %w", err)
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return fmt.Errorf("stack validation failed: %w", err)
	}
	if _, err := synth.Render(ctx, a.builder); err != nil {
		return fmt.Errorf("stack validation failed: %w", err)
	}

	a.logger.Info("✅ Stack is valid.", "entity_count", len(order))
	fmt.Fprintf(a.outW, "Stack %q is valid: %d entities, %d exports.\n",
		a.builder.Name(), len(order), len(a.builder.Exports()))
	return nil
}

// runSynth renders the template once and writes it to the configured output.
func (a *App) runSynth(ctx context.Context) error {
	t, err := synth.Render(ctx, a.builder)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	var out []byte
	if a.config.Format == "yaml" {
		out, err = t.YAML()
	} else {
		out, err = t.JSON()
	}
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}

	if a.config.OutPath == "" {
		_, err = a.outW.Write(out)
		return err
	}
	if err := os.WriteFile(a.config.OutPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	a.logger.Info("📄 Template written.", "path", a.config.OutPath, "format", a.config.Format)
	return nil
}

// runServe resolves generated identifiers, wires the runtime handlers, and
// serves the gateway's routes until the context ends.
func (a *App) runServe(ctx context.Context) error {
	resolver := provision.NewLocalResolver(a.builder.Name(), a.builder.Region())
	resolved, err := a.builder.Finalize(ctx, resolver)
	if err != nil {
		return fmt.Errorf("failed to resolve stack: %w", err)
	}
	a.logger.Info("Stack resolved for local serving.",
		"knowledge_base_id", resolved.Outputs[compose.ExportKnowledgeBaseID],
		"data_source_id", resolved.Outputs[compose.ExportDataSourceID])

	services := a.buildServices(resolved)

	reg := registry.New()
	if err := reg.Register(compose.QueryFnID, handlers.NewQueryHandler(services.Answerer, services.Synthesizer)); err != nil {
		return err
	}
	if err := reg.Register(compose.TranscribeFnID, handlers.NewTranscribeHandler(services.Transcriber)); err != nil {
		return err
	}
	if err := reg.Validate(ctx, a.builder); err != nil {
		return err
	}

	mux, err := gateway.NewMux(ctx, a.builder, reg)
	if err != nil {
		return err
	}
	return gateway.Serve(ctx, a.config.Port, mux)
}

// buildServices selects the managed-service backends: offline stubs when
// requested, the AWS implementations otherwise.
func (a *App) buildServices(resolved *stack.Resolved) *awssvc.Services {
	if a.config.Stub {
		a.logger.Info("Using offline stub backends.")
		return &awssvc.Services{
			Answerer:    &handlers.StubAnswerer{},
			Synthesizer: handlers.StubSynthesizer{},
			Transcriber: &handlers.StubTranscriber{},
		}
	}

	sess := session.Must(session.NewSession(aws.NewConfig().WithRegion(resolved.Region)))
	return awssvc.New(sess, awssvc.Config{
		Region:           resolved.Region,
		Bucket:           resolved.Outputs[compose.ExportBucketName],
		KnowledgeBaseID:  resolved.Outputs[compose.ExportKnowledgeBaseID],
		ModelARN:         a.definition.Model.GenerationModel,
		MaxOutputTokens:  a.definition.Model.MaxOutputTokens,
		RetrievalResults: a.definition.Model.RetrievalResults,
		VoiceID:          a.definition.Voice.VoiceID,
		VoiceEngine:      a.definition.Voice.Engine,
	})
}
