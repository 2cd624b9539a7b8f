package e2ekit

import (
	"errors"
	"strings"
	"testing"
)

func TestRunWithRetryPassesFirstAttempt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Retries = 2

	calls := 0
	err := RunWithRetry(t, cfg, nil, nil, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestRunWithRetryRecoversFlakyTest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Retries = 1

	rec := NewRecorder(cfg, t.Name())
	calls := 0
	err := RunWithRetry(t, cfg, rec, nil, func() error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}

	trace := rec.Trace()
	if trace.CustomMetrics["flaky_test"] != true {
		t.Error("recovered test must be marked flaky")
	}
	if trace.CustomMetrics["successful_attempt"] != 2 {
		t.Errorf("unexpected successful_attempt: %v", trace.CustomMetrics["successful_attempt"])
	}
}

func TestRunWithRetryExhaustsAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Retries = 0

	cause := errors.New("element not found")
	calls := 0
	err := RunWithRetry(t, cfg, nil, nil, func() error {
		calls++
		return cause
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("retries disabled must mean exactly 1 attempt, got %d", calls)
	}
	if !errors.Is(err, cause) {
		t.Errorf("last error must be wrapped: %v", err)
	}
	if !strings.Contains(err.Error(), "after 1 attempts") {
		t.Errorf("error should name the attempt count: %v", err)
	}
}
