package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/clipindex/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "proxy status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("proxy %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("proxy %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func classifyProxyError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{Retry: false, CountsAsFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Verdict{Retry: true, CountsAsFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return resilience.Verdict{Retry: true, CountsAsFailure: true}
		default:
			return resilience.Verdict{Retry: false, CountsAsFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retry: true, CountsAsFailure: true}
	}
	return resilience.Verdict{Retry: false, CountsAsFailure: true}
}
