package hashing

import "testing"

func TestContent_TrimsBeforeHashing(t *testing.T) {
	a := Content("some chunk text")
	b := Content("  some chunk text \n")
	if a != b {
		t.Errorf("trimmed variants should hash identically: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestContent_DistinctText(t *testing.T) {
	if Content("alpha") == Content("beta") {
		t.Error("different text should not collide")
	}
}

func TestPathID_Stable(t *testing.T) {
	a := PathID("/books/intro.pdf")
	b := PathID("/books/./intro.pdf")
	if a != b {
		t.Errorf("cleaned paths should share an ID: %s vs %s", a, b)
	}
	if PathID("/books/intro.pdf") == PathID("/books/other.pdf") {
		t.Error("different paths should not collide")
	}
}
