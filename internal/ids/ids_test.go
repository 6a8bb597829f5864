package ids

import (
	"testing"
	"time"
)

func TestNewIsSortable(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewAt(base)
	b := NewAt(base.Add(time.Millisecond))
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("unexpected ulid length: %q %q", a, b)
	}
	if a >= b {
		t.Fatalf("expected %s < %s", a, b)
	}
}
