package e2ekit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// RunWithRetry executes a test body up to cfg.Retries+1 times, with
// quadratic backoff between attempts. This is the only retry layer in the
// kit: locator actions and assertions below it never retry on their own.
// A failure screenshot is captured for each failed attempt (browserCtx is
// resolved lazily since the session usually exists only once the body has
// run), and a test that passes on a later attempt is marked flaky in the
// trace.
func RunWithRetry(t *testing.T, cfg *Config, rec *Recorder, browserCtx func() context.Context, testFunc func() error) error {
	t.Helper()

	attempts := cfg.Retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempts > 1 {
			t.Logf("🔄 Attempt %d/%d", attempt, attempts)
		}

		if err := testFunc(); err != nil {
			lastErr = err
			t.Logf("❌ Attempt %d failed: %v", attempt, err)
			if rec != nil && browserCtx != nil {
				if ctx := browserCtx(); ctx != nil {
					rec.CaptureFailureScreenshot(ctx, t, fmt.Sprintf("attempt-%d", attempt))
				}
			}

			if attempt < attempts {
				wait := time.Duration(attempt*attempt) * time.Second
				t.Logf("⏰ Waiting %v before retry...", wait)
				time.Sleep(wait)
			}
			continue
		}

		if attempt > 1 {
			t.Logf("✅ Passed on attempt %d (flaky test detected)", attempt)
			if rec != nil {
				rec.SetMetric("flaky_test", true)
				rec.SetMetric("successful_attempt", attempt)
			}
		}
		return nil
	}

	return fmt.Errorf("test failed after %d attempts, last error: %w", attempts, lastErr)
}
