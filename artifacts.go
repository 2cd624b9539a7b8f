package e2ekit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/chromedp/chromedp"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ActionRecord is one timed browser interaction in a test's trace.
type ActionRecord struct {
	Action    string        `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// TestTrace is everything recorded for one test: the action trace, counters
// and custom metrics. Written as a JSON artifact when tracing is enabled.
type TestTrace struct {
	TestName        string         `json:"test_name"`
	Project         string         `json:"project,omitempty"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	Duration        time.Duration  `json:"duration"`
	Actions         []ActionRecord `json:"actions"`
	ScreenshotCount int            `json:"screenshot_count"`
	ErrorCount      int            `json:"error_count"`
	CustomMetrics   map[string]any `json:"custom_metrics,omitempty"`
	Success         bool           `json:"success"`
	FailureReason   string         `json:"failure_reason,omitempty"`
}

// Recorder collects the trace and failure artifacts for one test.
type Recorder struct {
	cfg *Config

	mu    sync.Mutex
	trace TestTrace
}

// NewRecorder creates a recorder for the named test and makes sure the
// artifact directories exist.
func NewRecorder(cfg *Config, testName string) *Recorder {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fmt.Printf("Warning: failed to create artifacts directory %s: %v\n", cfg.OutputDir, err)
	}
	if cfg.ScreenshotsEnabled {
		if err := os.MkdirAll(cfg.ScreenshotsDir, 0o755); err != nil {
			fmt.Printf("Warning: failed to create screenshots directory %s: %v\n", cfg.ScreenshotsDir, err)
		}
	}

	return &Recorder{
		cfg: cfg,
		trace: TestTrace{
			TestName:      testName,
			Project:       cfg.Project,
			StartTime:     time.Now(),
			Actions:       make([]ActionRecord, 0),
			CustomMetrics: make(map[string]any),
		},
	}
}

// RecordAction appends one timed browser interaction to the trace.
func (r *Recorder) RecordAction(action string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := ActionRecord{
		Action:    action,
		Timestamp: time.Now(),
		Duration:  duration,
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
		r.trace.ErrorCount++
	}
	r.trace.Actions = append(r.trace.Actions, rec)
}

// SetMetric stores a custom metric value.
func (r *Recorder) SetMetric(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.CustomMetrics[key] = value
}

// CaptureScreenshot takes a screenshot with the given name. A no-op unless
// screenshots are enabled in the config.
func (r *Recorder) CaptureScreenshot(ctx context.Context, name string) error {
	if !r.cfg.ScreenshotsEnabled {
		return nil
	}

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("%s-%s-%s.png", slugify(r.trace.TestName), slugify(name), timestamp)
	path := filepath.Join(r.cfg.ScreenshotsDir, filename)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}

	r.trace.ScreenshotCount++
	return nil
}

// CaptureFailureScreenshot captures a screenshot on test failure, logging
// instead of failing if the capture itself goes wrong.
func (r *Recorder) CaptureFailureScreenshot(ctx context.Context, t testing.TB, reason string) {
	t.Helper()
	if err := r.CaptureScreenshot(ctx, "failure"); err != nil {
		t.Logf("⚠️ Failed to capture failure screenshot: %v", err)
	} else if r.cfg.ScreenshotsEnabled {
		t.Logf("📸 Failure screenshot captured for: %s", reason)
	}
}

// Finish closes the trace and writes it to the artifacts directory when
// tracing is enabled.
func (r *Recorder) Finish(t testing.TB, success bool, failureReason string) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace.EndTime = time.Now()
	r.trace.Duration = r.trace.EndTime.Sub(r.trace.StartTime)
	r.trace.Success = success
	r.trace.FailureReason = failureReason

	if r.cfg.TraceEnabled {
		path := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("trace-%s.json", slugify(r.trace.TestName)))
		if data, err := json.MarshalIndent(r.trace, "", "  "); err == nil {
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Logf("⚠️ Failed to write trace file %s: %v", path, err)
			}
		} else {
			t.Logf("⚠️ Failed to marshal trace: %v", err)
		}
	}

	statusIcon := "✅"
	if !success {
		statusIcon = "❌"
	}
	t.Logf("%s %s (duration: %v, actions: %d, screenshots: %d, errors: %d)",
		statusIcon, r.trace.TestName, r.trace.Duration,
		len(r.trace.Actions), r.trace.ScreenshotCount, r.trace.ErrorCount)
}

// Trace returns a copy of the trace collected so far.
func (r *Recorder) Trace() TestTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := r.trace
	copied.Actions = append([]ActionRecord(nil), r.trace.Actions...)
	return copied
}

// slugTransformer strips diacritics: decompose, drop combining marks,
// recompose.
var slugTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// slugify turns a test name into a filesystem-safe artifact name.
func slugify(name string) string {
	if folded, _, err := transform.String(slugTransformer, name); err == nil {
		name = folded
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '/' || r == ' ' || r == '_' || r == '-' || r == '.':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
