package clock

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerator(t *testing.T) {
	gen := UUIDGenerator{}
	first := gen.New()
	second := gen.New()

	if first == second {
		t.Error("Expected distinct ids")
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Errorf("Expected a valid uuid, got %q: %v", first, err)
	}
}

func TestRealClock(t *testing.T) {
	if (RealClock{}).Now().IsZero() {
		t.Error("Expected a non-zero time")
	}
}
