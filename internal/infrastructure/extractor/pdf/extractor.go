package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls the text layer out of PDF files. Scanned PDFs without a
// text layer yield an empty string.
type Extractor struct{}

func New() Extractor { return Extractor{} }

func (Extractor) Extensions() []string { return []string{".pdf"} }

func (Extractor) Extract(_ context.Context, data []byte) (text string, err error) {
	// the parser panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(raw), nil
}
