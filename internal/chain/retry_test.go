package chain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultDelaySchedule(t *testing.T) {
	p := DefaultRetryPolicy()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second, // capped
		10 * time.Second,
	}
	for k, expected := range want {
		if got := p.Delay(k); got != expected {
			t.Errorf("Delay(%d): expected %v, got %v", k, expected, got)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"read tcp 10.0.0.1:443: ECONNRESET", true},
		{"dial tcp 127.0.0.1:7545: ECONNREFUSED", true},
		{"post failed: ETIMEDOUT", true},
		{"lookup rpc.example.org: ENOTFOUND", true},
		{"Network Error: gateway unavailable", true},
		{"connection error: provider endpoint unhealthy", true},
		{"socket hang up", true},
		{"request timeout after 30s", true},
		{"nonce too low: next nonce 42", true},
		{"replacement fee too low", true},
		{"execution reverted: achievement not active", false},
		{"invalid title", false},
		{"insufficient funds for gas", false},
	}

	for _, tt := range tests {
		if got := IsTransient(errors.New(tt.msg)); got != tt.want {
			t.Errorf("IsTransient(%q): expected %v, got %v", tt.msg, tt.want, got)
		}
	}

	if IsTransient(nil) {
		t.Error("IsTransient(nil): expected false")
	}
}

func TestRunWithRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	retries := 0

	result, err := RunWithRetry(context.Background(), fastPolicy(), "grantAchievement", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("ECONNRESET")
		}
		return "0xdeadbeef", nil
	}, func() { retries++ })

	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if result != "0xdeadbeef" {
		t.Errorf("expected result from final attempt, got %q", result)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if retries != 2 {
		t.Errorf("expected 2 retries recorded, got %d", retries)
	}
}

func TestRunWithRetryFatalPropagatesImmediately(t *testing.T) {
	attempts := 0
	fatal := errors.New("invalid title")

	start := time.Now()
	_, err := RunWithRetry(context.Background(), fastPolicy(), "addAchievement", func() (string, error) {
		attempts++
		return "", fatal
	}, nil)

	if !errors.Is(err, fatal) {
		t.Fatalf("expected underlying error propagated verbatim, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a fatal error, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected no backoff delay for a fatal error, took %v", elapsed)
	}
}

func TestRunWithRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	underlying := errors.New("socket hang up")

	_, err := RunWithRetry(context.Background(), fastPolicy(), "redeemPerk", func() (int, error) {
		attempts++
		return 0, underlying
	}, nil)

	if attempts != 3 {
		t.Errorf("expected exactly MaxAttempts attempts, got %d", attempts)
	}
	if err == nil {
		t.Fatal("expected composite error after exhaustion")
	}
	if !strings.Contains(err.Error(), "redeemPerk failed after 3 attempts") {
		t.Errorf("expected composite error naming operation and attempt count, got %v", err)
	}
	if !errors.Is(err, underlying) {
		t.Errorf("expected composite error to wrap the last underlying error")
	}
}

func TestRunWithRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := fastPolicy()
	policy.InitialDelay = time.Hour // force the sleep to depend on ctx

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := RunWithRetry(ctx, policy, "getTotalSupply", func() (int, error) {
		attempts++
		return 0, errors.New("ETIMEDOUT")
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation surfaced, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected cancellation during first backoff, got %d attempts", attempts)
	}
}
