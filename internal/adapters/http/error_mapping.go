package httpadapter

import (
	"net/http"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
