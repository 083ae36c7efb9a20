package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
	if id[14] != '7' {
		t.Fatalf("UUIDv7: version nibble = %c, want 7", id[14])
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		time.Sleep(time.Microsecond)
		next := gen()
		if next <= prev {
			t.Fatalf("UUIDv7 not monotonic: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestRunLabel(t *testing.T) {
	ts := time.Date(2026, 4, 18, 9, 30, 12, 0, time.UTC)
	if got := RunLabel(ts); got != "R-260418-093012" {
		t.Fatalf("RunLabel: got %q", got)
	}
}

func TestStamp(t *testing.T) {
	ts := time.Date(2026, 4, 18, 9, 30, 12, 123456000, time.UTC)
	if got := Stamp(ts); got != "20260418_093012_123456" {
		t.Fatalf("Stamp: got %q", got)
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(id)
	if err != nil || got != id {
		t.Fatalf("Parse(%q) = %q, %v", id, got, err)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse: expected error for invalid input")
	}
}
