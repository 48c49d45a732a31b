package reqctx

import (
	"context"
	"testing"
)

func TestWith_AssignsID(t *testing.T) {
	ctx, call := With(context.Background(), "https://example.com")

	if call.ID == "" || call.ID == "unknown" {
		t.Fatalf("Expected generated ID, got %q", call.ID)
	}
	if got := From(ctx); got != call {
		t.Error("From should return the call stored by With")
	}
	if call.URL != "https://example.com" {
		t.Errorf("Unexpected URL %q", call.URL)
	}
}

func TestWith_NestedKeepsID(t *testing.T) {
	ctx, outer := With(context.Background(), "a")
	_, inner := With(ctx, "b")

	if inner.ID != outer.ID {
		t.Errorf("Expected nested call to share ID %s, got %s", outer.ID, inner.ID)
	}
	if inner.URL != "b" {
		t.Errorf("Expected inner URL b, got %s", inner.URL)
	}
}

func TestFrom_Missing(t *testing.T) {
	if got := From(context.Background()).ID; got != "unknown" {
		t.Errorf("Expected unknown, got %s", got)
	}
	if Logger(context.Background()) == nil {
		t.Error("Logger should never be nil")
	}
}
