package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// Format extracts text from one family of file types.
type Format interface {
	Extensions() []string
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry dispatches on the lowercase file extension.
type Registry struct {
	formats map[string]Format
}

func NewRegistry(formats ...Format) *Registry {
	r := &Registry{formats: make(map[string]Format)}
	for _, f := range formats {
		for _, ext := range f.Extensions() {
			r.formats[strings.ToLower(ext)] = f
		}
	}
	return r
}

func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, ok := r.formats[ext]
	if !ok {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract text", fmt.Errorf("no extractor for %q", ext))
	}
	text, err := format.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}
	return text, nil
}

// Extensions lists every registered extension in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.formats))
	for ext := range r.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
