package httpadapter

import (
	"net/http"

	"github.com/kirillkom/clipindex/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSearchInFlight):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
