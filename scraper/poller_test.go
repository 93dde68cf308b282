package scraper

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"serpwatch/models"
)

// fakeSource scripts the status sequence the poller observes. Once the
// script runs out the last entry repeats.
type fakeSource struct {
	statuses    []string
	statusErrs  []error
	statusCalls int

	parsed    []byte
	parsedErr error
	raw       []byte
	rawErr    error

	parsedCalls int
	rawCalls    int
}

func (f *fakeSource) JobStatus(ctx context.Context, externalID string) (string, error) {
	i := f.statusCalls
	f.statusCalls++
	if i < len(f.statusErrs) && f.statusErrs[i] != nil {
		return "", f.statusErrs[i]
	}
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func (f *fakeSource) ParsedResult(ctx context.Context, externalID string) ([]byte, error) {
	f.parsedCalls++
	return f.parsed, f.parsedErr
}

func (f *fakeSource) RawResult(ctx context.Context, externalID string) ([]byte, error) {
	f.rawCalls++
	return f.raw, f.rawErr
}

func testPolicy(maxAttempts int) RetryPolicy {
	return DefaultPolicy(maxAttempts, time.Millisecond)
}

func TestAwaitResult_CompletedWithParsed(t *testing.T) {
	source := &fakeSource{
		statuses: []string{StatusPending, StatusProcessing, StatusCompleted},
		parsed:   []byte(`{"ads": []}`),
	}
	poller := NewPoller(source, testPolicy(10))

	payload, err := poller.AwaitResult(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if !payload.Parsed {
		t.Fatalf("expected parsed payload")
	}
	if payload.Kind != models.PayloadJSON {
		t.Fatalf("expected JSON kind, got %s", payload.Kind)
	}
	if source.statusCalls != 3 {
		t.Fatalf("expected 3 status calls, got %d", source.statusCalls)
	}
	if source.rawCalls != 0 {
		t.Fatalf("raw result should not be fetched when parsed succeeds")
	}
}

func TestAwaitResult_DegradesToRaw(t *testing.T) {
	source := &fakeSource{
		statuses:  []string{StatusDone},
		parsedErr: fmt.Errorf("parsed result fetch failed 404: not ready"),
		raw:       []byte("<html><body></body></html>"),
	}
	poller := NewPoller(source, testPolicy(5))

	payload, err := poller.AwaitResult(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("await failed: %v", err)
	}
	if payload.Parsed {
		t.Fatalf("expected raw payload after degradation")
	}
	if payload.Kind != models.PayloadHTML {
		t.Fatalf("expected HTML kind, got %s", payload.Kind)
	}
	if source.parsedCalls != 1 || source.rawCalls != 1 {
		t.Fatalf("expected one parsed and one raw fetch, got %d/%d", source.parsedCalls, source.rawCalls)
	}
}

func TestAwaitResult_Timeout(t *testing.T) {
	source := &fakeSource{statuses: []string{StatusProcessing}}
	poller := NewPoller(source, testPolicy(3))

	_, err := poller.AwaitResult(context.Background(), "job-3")
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if source.statusCalls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", source.statusCalls)
	}
}

func TestAwaitResult_UpstreamFailed(t *testing.T) {
	source := &fakeSource{statuses: []string{StatusFailed}}
	poller := NewPoller(source, testPolicy(10))

	_, err := poller.AwaitResult(context.Background(), "job-4")

	var upstream *UpstreamJobError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamJobError, got %v", err)
	}
	if upstream.ExternalID != "job-4" {
		t.Fatalf("unexpected external id %s", upstream.ExternalID)
	}
	if source.statusCalls != 1 {
		t.Fatalf("failed status must not be retried, got %d calls", source.statusCalls)
	}
	if source.parsedCalls != 0 || source.rawCalls != 0 {
		t.Fatalf("no result fetch after upstream failure")
	}
}

func TestAwaitResult_TransientErrorsBurnAttempts(t *testing.T) {
	reset := fmt.Errorf("read tcp: %w", syscall.ECONNRESET)
	source := &fakeSource{
		statuses:   []string{StatusProcessing},
		statusErrs: []error{reset, reset},
	}
	poller := NewPoller(source, testPolicy(2))

	_, err := poller.AwaitResult(context.Background(), "job-5")
	if err == nil {
		t.Fatalf("expected error after budget exhausted")
	}
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Fatalf("expected final attempt's error, got %v", err)
	}
	if source.statusCalls != 2 {
		t.Fatalf("transient failures must count against the budget, got %d calls", source.statusCalls)
	}
}

func TestAwaitResult_ContextCancelled(t *testing.T) {
	source := &fakeSource{statuses: []string{StatusProcessing}}
	poller := NewPoller(source, DefaultPolicy(100, 50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := poller.AwaitResult(ctx, "job-6")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
