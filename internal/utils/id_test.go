package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestIDGenerator(t *testing.T) {
	t.Run("UUID", func(t *testing.T) {
		gen, err := IDGenerator("")
		if err != nil {
			t.Fatal(err)
		}
		id := gen()
		u, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("uuid.Parse(%q) = %v", id, err)
		}
		if u.Version() != 4 {
			t.Errorf("Version() = %d, want 4", u.Version())
		}
		if gen() == id {
			t.Error("generated the same id twice")
		}
	})
	t.Run("KSID", func(t *testing.T) {
		gen, err := IDGenerator(IDFormatKSID)
		if err != nil {
			t.Fatal(err)
		}
		a, b := gen(), gen()
		if a == "" || a == b {
			t.Errorf("ids = %q, %q", a, b)
		}
	})
	t.Run("Unknown", func(t *testing.T) {
		if _, err := IDGenerator("serial"); err == nil {
			t.Error("expected error")
		}
	})
}
