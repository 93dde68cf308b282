package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("bad request"), false},
		{syscall.ECONNRESET, true},
		{fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{syscall.EPIPE, true},
		{io.EOF, true},
		{io.ErrUnexpectedEOF, true},
	}

	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Fatalf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestCooldown(t *testing.T) {
	policy := DefaultPolicy(5, 10*time.Millisecond)

	if d := policy.Cooldown(syscall.ECONNRESET); d != 30*time.Millisecond {
		t.Fatalf("transient cooldown = %v, want 30ms", d)
	}
	if d := policy.Cooldown(errors.New("permanent")); d != 10*time.Millisecond {
		t.Fatalf("non-transient cooldown = %v, want 10ms", d)
	}
}

func TestDo_RecoversFromTransientFailures(t *testing.T) {
	policy := DefaultPolicy(3, time.Millisecond)

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return syscall.ECONNRESET
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	policy := DefaultPolicy(5, time.Millisecond)

	permanent := errors.New("bad credentials")
	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d calls", calls)
	}
}
