package e2ekit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Headless {
		t.Error("expected headless by default")
	}
	if cfg.ActionTimeout != DefaultActionTimeout {
		t.Errorf("expected action timeout %v, got %v", DefaultActionTimeout, cfg.ActionTimeout)
	}
	if cfg.TestTimeout != DefaultTestTimeout {
		t.Errorf("expected test timeout %v, got %v", DefaultTestTimeout, cfg.TestTimeout)
	}
	if cfg.Retries != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.Retries)
	}
	if cfg.Workers != 1 {
		t.Errorf("expected 1 worker by default, got %d", cfg.Workers)
	}
	if len(cfg.Reporters) != 1 || cfg.Reporters[0].Name != "console" {
		t.Errorf("expected the console reporter by default, got %v", cfg.Reporters)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "e2ekit.yaml")
	content := `base_url: http://localhost:9999
retries: 2
workers: 4
screenshots: true
reporters:
  - name: console
  - name: junit
    options:
      path: out/junit.xml
projects:
  - name: mobile
    viewport_width: 390
    viewport_height: 844
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	if cfg.BaseURL != "http://localhost:9999" {
		t.Errorf("unexpected base URL: %s", cfg.BaseURL)
	}
	if cfg.Retries != 2 || cfg.Workers != 4 {
		t.Errorf("unexpected retries/workers: %d/%d", cfg.Retries, cfg.Workers)
	}
	if !cfg.ScreenshotsEnabled {
		t.Error("expected screenshots enabled")
	}
	if len(cfg.Reporters) != 2 || cfg.Reporters[1].Options["path"] != "out/junit.xml" {
		t.Errorf("unexpected reporters: %v", cfg.Reporters)
	}
	if p, ok := cfg.ProjectByName("mobile"); !ok || p.ViewportWidth != 390 {
		t.Errorf("unexpected project lookup: %v %v", p, ok)
	}
	// Defaults survive where the file is silent.
	if cfg.ActionTimeout != DefaultActionTimeout {
		t.Errorf("expected default action timeout, got %v", cfg.ActionTimeout)
	}
	if cfg.ScreenshotsDir != cfg.OutputDir+"/screenshots" {
		t.Errorf("unexpected screenshots dir: %s", cfg.ScreenshotsDir)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config file should not be an error: %v", err)
	}
	if cfg.BaseURL == "" {
		t.Error("expected default base URL")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("E2E_BASE_URL", "http://example.test:1234")
	t.Setenv("E2E_HEADLESS", "false")
	t.Setenv("E2E_RETRIES", "3")
	t.Setenv("E2E_ACTION_TIMEOUT", "30")
	t.Setenv("E2E_TEST_TIMEOUT", "2m")
	t.Setenv("E2E_FEATURES", "search, checkout")

	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	if cfg.BaseURL != "http://example.test:1234" {
		t.Errorf("unexpected base URL: %s", cfg.BaseURL)
	}
	if cfg.Headless {
		t.Error("expected headless off")
	}
	if cfg.Retries != 3 {
		t.Errorf("unexpected retries: %d", cfg.Retries)
	}
	if cfg.ActionTimeout != 30*time.Second {
		t.Errorf("bare seconds should parse, got %v", cfg.ActionTimeout)
	}
	if cfg.TestTimeout != 2*time.Minute {
		t.Errorf("duration syntax should parse, got %v", cfg.TestTimeout)
	}
	if !cfg.HasFeature("search") || !cfg.HasFeature("checkout") || cfg.HasFeature("other") {
		t.Errorf("unexpected features: %v", cfg.Features)
	}
}

func TestCIOverridesApplyOnlyOnCI(t *testing.T) {
	t.Setenv("CI_RETRIES", "5")

	t.Setenv("CI", "")
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retries != 0 {
		t.Errorf("CI_RETRIES must be ignored off CI, got %d", cfg.Retries)
	}

	t.Setenv("CI", "true")
	cfg, err = LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retries != 5 {
		t.Errorf("expected CI_RETRIES to apply on CI, got %d", cfg.Retries)
	}
}

func TestParseTimeout(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"45", 45 * time.Second, false},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := parseTimeout(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseTimeout(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTimeout(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseTimeout(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestForProject(t *testing.T) {
	headed := false
	cfg := DefaultConfig()
	cfg.Projects = []Project{
		{Name: "staging", BaseURL: "https://staging.example.com", Headless: &headed, ActionTimeout: 10 * time.Second},
	}

	t.Run("applies overrides to a copy", func(t *testing.T) {
		derived, err := cfg.ForProject("staging")
		if err != nil {
			t.Fatal(err)
		}
		if derived.BaseURL != "https://staging.example.com" {
			t.Errorf("unexpected base URL: %s", derived.BaseURL)
		}
		if derived.Headless {
			t.Error("expected headless override")
		}
		if derived.ActionTimeout != 10*time.Second {
			t.Errorf("unexpected action timeout: %v", derived.ActionTimeout)
		}
		if cfg.BaseURL == derived.BaseURL {
			t.Error("receiver must not be modified")
		}
	})

	t.Run("empty name is the identity", func(t *testing.T) {
		derived, err := cfg.ForProject("")
		if err != nil {
			t.Fatal(err)
		}
		if derived.BaseURL != cfg.BaseURL {
			t.Errorf("unexpected base URL: %s", derived.BaseURL)
		}
	})

	t.Run("unknown project errors", func(t *testing.T) {
		if _, err := cfg.ForProject("nope"); err == nil {
			t.Error("expected error for unknown project")
		}
	})
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "not a url"
	cfg.Workers = 0
	cfg.Reporters = []ReporterConfig{{Name: "teamcity"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	multi, ok := err.(MultiError)
	if !ok {
		t.Fatalf("expected MultiError, got %T", err)
	}
	if len(multi) < 3 {
		t.Errorf("expected all violations reported together, got %v", multi)
	}
	if !strings.Contains(multi.Error(), "valid URL") {
		t.Errorf("unexpected message: %s", multi.Error())
	}
}
