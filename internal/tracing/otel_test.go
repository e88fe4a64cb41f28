package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewWriterExporter(&buf)
	if err != nil {
		t.Fatalf("NewWriterExporter: %v", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "conversation.turn")
	RecordError(span, errors.New("model unavailable"))
	span.End()

	out := buf.String()
	if !strings.Contains(out, "conversation.turn") {
		t.Errorf("span name missing from export: %s", out)
	}
	if !strings.Contains(out, "model unavailable") {
		t.Errorf("recorded error missing from export: %s", out)
	}
}
