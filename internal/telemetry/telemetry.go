// Package telemetry installs the process-wide tracer provider. Ended spans
// are reported through slog, so task runs land in the log with their
// duration and outcome.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Output owns the installed tracer provider.
type Output struct {
	provider *sdktrace.TracerProvider
}

// Install creates a tracer provider that logs ended spans and makes it the
// global provider.
func Install() *Output {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(logSpanProcessor{}))
	otel.SetTracerProvider(provider)
	return &Output{provider: provider}
}

// Close flushes and shuts the provider down. Spans started afterwards are
// dropped.
func (o *Output) Close(ctx context.Context) error {
	if o == nil || o.provider == nil {
		return nil
	}
	return o.provider.Shutdown(ctx)
}

// logSpanProcessor writes one record per ended span: debug for normal
// completion, warn for spans ended with an error status.
type logSpanProcessor struct{}

func (logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	args := []any{"span", s.Name(), "elapsed", s.EndTime().Sub(s.StartTime())}
	for _, kv := range s.Attributes() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}
	if st := s.Status(); st.Code == codes.Error {
		slog.Warn("Span failed.", append(args, "err", st.Description)...)
		return
	}
	slog.Debug("Span ended.", args...)
}

func (logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (logSpanProcessor) ForceFlush(context.Context) error { return nil }
