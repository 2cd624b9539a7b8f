package e2ekit

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

// Well-known fixture names registered by RegisterBrowserFixtures. Suites
// build their own page-object fixtures on top of these.
const (
	FixtureLauncher = "launcher"
	FixtureSession  = "session"
	FixturePage     = "page"
)

// Suite bundles the pieces a test package needs: the config, the fixture
// registry, and the run report fed to the configured reporters. Create one
// per test package and route TestMain through Suite.Main.
type Suite struct {
	Config   *Config
	Fixtures *Registry

	mu     sync.Mutex
	report RunReport
}

// NewSuite creates a suite around a loaded config.
func NewSuite(cfg *Config) *Suite {
	return &Suite{
		Config:   cfg,
		Fixtures: NewRegistry(cfg),
		report:   RunReport{StartTime: time.Now()},
	}
}

// RegisterBrowserFixtures wires the standard browser stack: a per-worker
// launcher, and a per-test session and page. Page-object fixtures declare
// FixturePage as their dependency.
func (s *Suite) RegisterBrowserFixtures() {
	s.Fixtures.MustRegister(Definition{
		Name:  FixtureLauncher,
		Scope: ScopeWorker,
		Build: func(fc *FixtureContext) (any, error) {
			l := NewLauncher(fc.Config())
			fc.OnCleanup(l.Close)
			return l, nil
		},
	})
	s.Fixtures.MustRegister(Definition{
		Name: FixtureSession,
		Deps: []string{FixtureLauncher},
		Build: func(fc *FixtureContext) (any, error) {
			v, err := fc.Get(FixtureLauncher)
			if err != nil {
				return nil, err
			}
			sess, err := v.(*Launcher).NewSession()
			if err != nil {
				return nil, err
			}
			fc.OnCleanup(sess.Close)
			return sess, nil
		},
	})
	s.Fixtures.MustRegister(Definition{
		Name: FixturePage,
		Deps: []string{FixtureSession},
		Build: func(fc *FixtureContext) (any, error) {
			v, err := fc.Get(FixtureSession)
			if err != nil {
				return nil, err
			}
			return NewPage(v.(*Session)), nil
		},
	})
}

// Main runs the package's tests, shuts down worker fixtures, and writes the
// configured reports. Use from TestMain:
//
//	func TestMain(m *testing.M) { os.Exit(suite.Main(m)) }
func (s *Suite) Main(m *testing.M) int {
	code := s.Fixtures.Main(m)

	s.mu.Lock()
	s.report.EndTime = time.Now()
	report := s.report
	s.mu.Unlock()

	reporters, err := NewReporters(s.Config)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
		return code
	}
	for _, rep := range reporters {
		if err := rep.Write(&report); err != nil {
			fmt.Printf("Warning: failed to write report: %v\n", err)
		}
	}
	return code
}

// Report returns a copy of the results collected so far.
func (s *Suite) Report() RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := s.report
	copied.Results = append([]TestResult(nil), s.report.Results...)
	return copied
}

func (s *Suite) appendResult(res TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Results = append(s.report.Results, res)
}

// sessionContext returns the browsing context of the test's session fixture
// if one has been constructed, for failure artifact capture. It never
// triggers construction.
func (s *Suite) sessionContext(ts *TestScope) context.Context {
	if v, ok := ts.state.peek(FixtureSession); ok {
		if sess, ok := v.(*Session); ok {
			return sess.ctx
		}
	}
	return nil
}

// bodyTB is the testing handle Suite.Run hands to test bodies through
// TestScope.T. It collects failures instead of failing the real test, so
// a failed assertion flows through the retry and reporting layers like
// any error the body returns. Log, Helper and Skip pass through to the
// real test.
type bodyTB struct {
	testing.TB

	mu     sync.Mutex
	failed bool
	msgs   []string
}

func (b *bodyTB) record(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed = true
	if msg != "" {
		b.msgs = append(b.msgs, msg)
	}
}

func (b *bodyTB) Error(args ...any)                 { b.record(fmt.Sprint(args...)) }
func (b *bodyTB) Errorf(format string, args ...any) { b.record(fmt.Sprintf(format, args...)) }
func (b *bodyTB) Fail()                             { b.record("") }

func (b *bodyTB) Fatal(args ...any) {
	b.record(fmt.Sprint(args...))
	runtime.Goexit()
}

func (b *bodyTB) Fatalf(format string, args ...any) {
	b.record(fmt.Sprintf(format, args...))
	runtime.Goexit()
}

func (b *bodyTB) FailNow() {
	b.record("")
	runtime.Goexit()
}

func (b *bodyTB) Failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

func (b *bodyTB) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.failed {
		return nil
	}
	if len(b.msgs) == 0 {
		return errors.New("test body failed")
	}
	return errors.New(strings.Join(b.msgs, "; "))
}

// runBody executes fn once with failures raised through ts.T() converted
// into the returned error. The body runs on its own goroutine because a
// fatal assertion exits the goroutine that raised it.
func (s *Suite) runBody(t *testing.T, ts *TestScope, fn func(ts *TestScope) error) error {
	tb := &bodyTB{TB: t}
	ts.tb = tb
	defer func() { ts.tb = nil }()

	var ret error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				ret = fmt.Errorf("test body panicked: %v", r)
			}
		}()
		ret = fn(ts)
	}()
	<-done

	if ret != nil {
		return ret
	}
	return tb.err()
}

// Run executes one test body with the full policy stack: a fresh fixture
// scope, action recording, configured retries, and failure artifacts
// (screenshot plus sanitized DOM snapshot). The body reports failures by
// returning an error or through ts.T() assertions, never by failing the
// *testing.T directly, so it stays retryable.
func (s *Suite) Run(t *testing.T, fn func(ts *TestScope) error) {
	t.Helper()

	ts := s.Fixtures.NewTestScope(t)
	rec := NewRecorder(s.Config, t.Name())
	start := time.Now()

	// A body that skips never returns; record the skip from a cleanup.
	recorded := false
	t.Cleanup(func() {
		if !recorded && t.Skipped() {
			s.appendResult(TestResult{
				Name:     t.Name(),
				Project:  s.Config.Project,
				Skipped:  true,
				Duration: time.Since(start),
			})
		}
	})

	err := RunWithRetry(t, s.Config, rec,
		func() context.Context { return s.sessionContext(ts) },
		func() error { return s.runBody(t, ts, fn) },
	)

	// A body that skipped exited its goroutine without failing; stop the
	// test here and let the cleanup above record the skip.
	if err == nil && t.Skipped() {
		t.SkipNow()
		return
	}

	res := TestResult{
		Name:     t.Name(),
		Project:  s.Config.Project,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		if ctx := s.sessionContext(ts); ctx != nil {
			if path, serr := CaptureDOMSnapshot(ctx, s.Config, t.Name()); serr == nil {
				t.Logf("📄 DOM snapshot saved: %s", path)
			}
		}
		rec.Finish(t, false, err.Error())
		recorded = true
		s.appendResult(res)
		t.Fatalf("test failed: %v", err)
		return
	}

	res.Passed = true
	rec.Finish(t, true, "")
	recorded = true
	s.appendResult(res)
}
