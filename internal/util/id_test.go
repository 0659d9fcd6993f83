package util

import (
	"strings"
	"testing"
)

func TestNewIDIsPrefixedAndSortable(t *testing.T) {
	first := NewID("evt")
	second := NewID("evt")

	if !strings.HasPrefix(first, "evt_") {
		t.Fatalf("expected evt_ prefix, got %s", first)
	}
	if len(strings.TrimPrefix(first, "evt_")) != 26 {
		t.Fatalf("expected 26 character ulid, got %s", first)
	}
	if first >= second {
		t.Fatalf("expected monotonic ids, got %s then %s", first, second)
	}
	if strings.Contains(NewID(""), "_") {
		t.Fatalf("expected bare id without prefix")
	}
}
