package app

import (
	"testing"
)

func TestPointer_RoundTrip(t *testing.T) {
	p := NewPointer(t.TempDir())

	if got := p.Read(); got != "" {
		t.Fatalf("Read before any write = %q, want empty", got)
	}
	if err := p.Write("1740000000000-abcd1234"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := p.Read(); got != "1740000000000-abcd1234" {
		t.Fatalf("Read = %q, want written value", got)
	}

	// Every switch overwrites the single value.
	if err := p.Write("other-session"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := p.Read(); got != "other-session" {
		t.Fatalf("Read after overwrite = %q, want %q", got, "other-session")
	}
}
