package scraper

import (
	"context"
	"fmt"
	"log"

	"serpwatch/extract"
)

// ResultSource is the slice of the scraping service the poller needs.
type ResultSource interface {
	JobStatus(ctx context.Context, externalID string) (string, error)
	ParsedResult(ctx context.Context, externalID string) ([]byte, error)
	RawResult(ctx context.Context, externalID string) ([]byte, error)
}

// Poller repeatedly queries the job-status endpoint until the upstream
// job reaches a terminal state or the retry budget runs out.
type Poller struct {
	source ResultSource
	policy RetryPolicy
}

func NewPoller(source ResultSource, policy RetryPolicy) *Poller {
	return &Poller{source: source, policy: policy}
}

// AwaitResult polls until the job completes, fails, or the budget is
// exhausted. On completion it prefers the parsed representation and
// degrades to the raw one when the service has not finished its own
// post-processing.
func (p *Poller) AwaitResult(ctx context.Context, externalID string) (*ResultPayload, error) {
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		status, err := p.source.JobStatus(ctx, externalID)
		if err != nil {
			if attempt == p.policy.MaxAttempts {
				return nil, fmt.Errorf("job %s status: %w", externalID, err)
			}
			// transient transport errors get the elongated cooldown but
			// still burn an attempt
			if err := Sleep(ctx, p.policy.Cooldown(err)); err != nil {
				return nil, err
			}
			continue
		}

		switch status {
		case StatusCompleted, StatusDone:
			return p.fetchPayload(ctx, externalID)
		case StatusFailed:
			return nil, &UpstreamJobError{ExternalID: externalID, Status: status}
		}

		if attempt < p.policy.MaxAttempts {
			if err := Sleep(ctx, p.policy.Delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("job %s after %d attempts: %w", externalID, p.policy.MaxAttempts, ErrPollTimeout)
}

func (p *Poller) fetchPayload(ctx context.Context, externalID string) (*ResultPayload, error) {
	parsed, err := p.source.ParsedResult(ctx, externalID)
	if err == nil {
		return &ResultPayload{
			Body:   parsed,
			Kind:   extract.DetectKind(parsed),
			Parsed: true,
		}, nil
	}

	// service finished the fetch but not its own post-processing
	log.Printf("Parsed result unavailable for %s, falling back to raw: %v", externalID, err)

	raw, err := p.source.RawResult(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("raw result for %s: %w", externalID, err)
	}

	return &ResultPayload{
		Body: raw,
		Kind: extract.DetectKind(raw),
	}, nil
}
