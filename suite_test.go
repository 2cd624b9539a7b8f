package e2ekit

import (
	"strings"
	"testing"
)

func newSuiteForTest(t *testing.T) *Suite {
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	return NewSuite(cfg)
}

func TestSuiteRunRecordsPass(t *testing.T) {
	suite := newSuiteForTest(t)

	bodyRan := false
	t.Run("inner", func(t *testing.T) {
		suite.Run(t, func(ts *TestScope) error {
			bodyRan = true
			return nil
		})
	})

	if !bodyRan {
		t.Fatal("body did not run")
	}
	report := suite.Report()
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	res := report.Results[0]
	if !res.Passed || res.Skipped {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Name != "TestSuiteRunRecordsPass/inner" {
		t.Errorf("unexpected test name: %s", res.Name)
	}
}

func TestSuiteRunRecordsSkip(t *testing.T) {
	suite := newSuiteForTest(t)

	t.Run("inner", func(t *testing.T) {
		suite.Run(t, func(ts *TestScope) error {
			t.Skip("browser not available")
			return nil
		})
	})

	report := suite.Report()
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if !report.Results[0].Skipped {
		t.Errorf("expected a skipped result: %+v", report.Results[0])
	}
	if !report.OK() {
		t.Error("a skipped test must not fail the run")
	}
}

func TestSuiteRunProvidesFixtures(t *testing.T) {
	suite := newSuiteForTest(t)
	suite.Fixtures.MustRegister(Definition{
		Name: "greeting",
		Build: func(fc *FixtureContext) (any, error) {
			return "hello", nil
		},
	})

	t.Run("inner", func(t *testing.T) {
		suite.Run(t, func(ts *TestScope) error {
			if got := Fixture[string](ts, "greeting"); got != "hello" {
				t.Errorf("unexpected fixture value: %q", got)
			}
			return nil
		})
	})
}

func TestSuiteRunRetriesFailedAssertion(t *testing.T) {
	suite := newSuiteForTest(t)
	suite.Config.Retries = 1

	// A fatal assertion on the scope handle must behave like a returned
	// error: the attempt is retried and the recovery lands in the report.
	attempts := 0
	t.Run("inner", func(t *testing.T) {
		suite.Run(t, func(ts *TestScope) error {
			attempts++
			if attempts == 1 {
				ts.T().Fatalf("expect testid=%q: visible: condition not met", "hero-heading")
			}
			return nil
		})
	})

	if attempts != 2 {
		t.Fatalf("expected the failed attempt to be retried, got %d attempts", attempts)
	}
	report := suite.Report()
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if !report.Results[0].Passed {
		t.Errorf("recovered test must be reported as passed: %+v", report.Results[0])
	}
}

func TestRunBodyConvertsAssertionFailure(t *testing.T) {
	suite := newSuiteForTest(t)
	ts := suite.Fixtures.NewTestScope(t)

	err := suite.runBody(t, ts, func(ts *TestScope) error {
		ts.T().Fatalf("expect text=%q: condition not met within 100ms", "Checkout")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "condition not met") {
		t.Fatalf("expected the assertion failure as an error, got %v", err)
	}
	if t.Failed() {
		t.Fatal("the real test must not be marked failed by the body handle")
	}
	if ts.T() != testing.TB(t) {
		t.Error("the scope handle must revert to the test's own T after the body")
	}
}

func TestRunBodyCollectsNonFatalFailures(t *testing.T) {
	suite := newSuiteForTest(t)
	ts := suite.Fixtures.NewTestScope(t)

	err := suite.runBody(t, ts, func(ts *TestScope) error {
		ts.T().Errorf("first check failed")
		ts.T().Errorf("second check failed")
		return nil
	})
	if err == nil {
		t.Fatal("expected non-fatal failures to surface as an error")
	}
	for _, want := range []string{"first check failed", "second check failed"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q is missing %q", err, want)
		}
	}
}

func TestSuiteRunHandsOutBodyHandle(t *testing.T) {
	suite := newSuiteForTest(t)

	t.Run("inner", func(t *testing.T) {
		suite.Run(t, func(ts *TestScope) error {
			if _, ok := ts.T().(*bodyTB); !ok {
				t.Errorf("expected a suite-managed handle, got %T", ts.T())
			}
			return nil
		})
	})
}

func TestRegisterBrowserFixturesWiring(t *testing.T) {
	suite := newSuiteForTest(t)
	suite.RegisterBrowserFixtures()

	// Registration alone must not launch anything; it only declares the
	// dependency chain.
	for _, name := range []string{FixtureLauncher, FixtureSession, FixturePage} {
		if _, ok := suite.Fixtures.defs[name]; !ok {
			t.Errorf("fixture %q not registered", name)
		}
	}
	if suite.Fixtures.defs[FixtureSession].Deps[0] != FixtureLauncher {
		t.Error("session must depend on the launcher")
	}
	if suite.Fixtures.defs[FixturePage].Deps[0] != FixtureSession {
		t.Error("page must depend on the session")
	}
	if suite.Fixtures.defs[FixtureLauncher].Scope != ScopeWorker {
		t.Error("launcher must be worker scoped")
	}
}
