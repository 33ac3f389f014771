package tracing

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), nil, Options{ServiceName: "workspace"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown failed: %v", err)
	}
}

func TestSamplerDescription(t *testing.T) {
	if got := sampler(0).Description(); got == sampler(0.25).Description() {
		t.Fatalf("ratio sampler should differ from always-on, got %q", got)
	}
}
