package tracing

import (
	"context"
	"testing"
)

func TestStartSpan_ReturnsUsableSpan(t *testing.T) {
	provider := NewProvider("test-service")
	SetGlobal(provider)
	defer SetGlobal(NewProvider("volodyslav-scheduler"))

	ctx, span := StartSpan(context.Background(), "test-tracer", "unit-test-span")
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	if !span.SpanContext().IsValid() {
		t.Error("expected a valid span context from a configured provider")
	}
	span.End()
}
