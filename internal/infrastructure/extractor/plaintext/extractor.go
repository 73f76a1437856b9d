package plaintext

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// Text reads UTF-8 text and markdown files as-is.
type Text struct{}

func NewText() Text { return Text{} }

func (Text) Extensions() []string { return []string{".txt", ".md"} }

func (Text) Extract(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "read text", errors.New("file is not valid UTF-8"))
	}
	return string(data), nil
}
