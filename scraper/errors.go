package scraper

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrPollTimeout means the poll retry budget was exhausted before the
// upstream job reached a terminal state.
var ErrPollTimeout = errors.New("poll retry budget exhausted")

// UpstreamJobError means the scraping service explicitly reported the job
// failed. Non-retryable.
type UpstreamJobError struct {
	ExternalID string
	Status     string
}

func (e *UpstreamJobError) Error() string {
	return fmt.Sprintf("upstream job %s reported %s", e.ExternalID, e.Status)
}

// IsTransient classifies transport-level failures worth a cooldown and
// another attempt: connection resets, refusals, timeouts, truncated reads.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	return false
}
