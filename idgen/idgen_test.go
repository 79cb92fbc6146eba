package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d in %q", len(id), id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestDefault_HasChangePrefix(t *testing.T) {
	id := Default()
	if !strings.HasPrefix(id, "chg_") {
		t.Fatalf("Default: expected prefix chg_, got %q", id)
	}
	if len(id) != 4+36 {
		t.Fatalf("Default: expected length 40, got %d", len(id))
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("evt-")
	if got := gen(); got != "evt-1" {
		t.Fatalf("first: got %q, want evt-1", got)
	}
	if got := gen(); got != "evt-2" {
		t.Fatalf("second: got %q, want evt-2", got)
	}
}
