package extract

import "testing"

func TestPages_RejectsNonPDF(t *testing.T) {
	if _, err := Pages([]byte("not a pdf at all")); err == nil {
		t.Error("expected an error for non-PDF bytes")
	}
}

func TestPages_RejectsEmptyInput(t *testing.T) {
	if _, err := Pages(nil); err == nil {
		t.Error("expected an error for empty input")
	}
}
