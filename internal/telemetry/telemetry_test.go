package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestInstall_LogsEndedSpans(t *testing.T) {
	logs := captureLogs(t)
	prev := otel.GetTracerProvider()
	out := Install()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tracer := otel.Tracer("sidegen/test")
	_, ok := tracer.Start(context.Background(), "task.load")
	ok.SetAttributes(attribute.String("sidegen.task.state", "Succeeded"))
	ok.End()

	_, failed := tracer.Start(context.Background(), "task.generate")
	failed.RecordError(errors.New("boom"))
	failed.SetStatus(codes.Error, "boom")
	failed.End()

	if err := out.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := logs.String()
	for _, want := range []string{
		`level=DEBUG msg="Span ended." span=task.load`,
		"sidegen.task.state=Succeeded",
		`level=WARN msg="Span failed." span=task.generate`,
		"err=boom",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("log missing %q:\n%s", want, got)
		}
	}
}

func TestClose_Nil(t *testing.T) {
	var out *Output
	if err := out.Close(context.Background()); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}
