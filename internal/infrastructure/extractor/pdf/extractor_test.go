package pdf

import (
	"context"
	"testing"
)

func TestExtractRejectsNonPDF(t *testing.T) {
	if _, err := New().Extract(context.Background(), []byte("not a pdf at all")); err == nil {
		t.Fatalf("expected error for non-pdf input")
	}
}
