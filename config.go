package e2ekit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default name of the suite config file,
	// looked up in the working directory.
	ConfigFileName = "e2ekit.yaml"

	// DefaultActionTimeout bounds every locator interaction and web-first
	// assertion.
	DefaultActionTimeout = 5 * time.Second

	// DefaultTestTimeout bounds a whole test, including retries.
	DefaultTestTimeout = 60 * time.Second
)

// ReporterConfig selects one reporter by name with optional per-reporter
// options (e.g. the output file for the junit reporter).
type ReporterConfig struct {
	Name    string            `yaml:"name" validate:"required,oneof=console json junit html"`
	Options map[string]string `yaml:"options,omitempty"`
}

// Project is a named browser/device profile. Any non-zero field overrides
// the corresponding global option for sessions created under this project.
type Project struct {
	Name           string        `yaml:"name" validate:"required"`
	BaseURL        string        `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Headless       *bool         `yaml:"headless,omitempty"`
	ViewportWidth  int           `yaml:"viewport_width,omitempty" validate:"omitempty,min=1"`
	ViewportHeight int           `yaml:"viewport_height,omitempty" validate:"omitempty,min=1"`
	UserAgent      string        `yaml:"user_agent,omitempty"`
	ActionTimeout  time.Duration `yaml:"action_timeout,omitempty"`
	TestTimeout    time.Duration `yaml:"test_timeout,omitempty"`
}

// Credentials holds the test account used by login fixtures. Values come
// from E2E_USERNAME / E2E_PASSWORD and are never written to artifacts.
type Credentials struct {
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Config is the explicit configuration object for a suite. It is loaded once
// per process and passed by reference to whatever constructs sessions and
// fixtures; there is no ambient global state.
type Config struct {
	BaseURL         string        `yaml:"base_url" validate:"required,url"`
	APIBaseURL      string        `yaml:"api_base_url,omitempty" validate:"omitempty,url"`
	Headless        bool          `yaml:"headless"`
	ChromePath      string        `yaml:"chrome_path,omitempty"`
	RemoteChromeURL string        `yaml:"remote_chrome_url,omitempty" validate:"omitempty,url"`
	OutputDir       string        `yaml:"output_dir" validate:"required"`
	ScreenshotsDir  string        `yaml:"screenshots_dir,omitempty"`
	ActionTimeout   time.Duration `yaml:"action_timeout" validate:"required"`
	TestTimeout     time.Duration `yaml:"test_timeout" validate:"required"`
	Retries         int           `yaml:"retries" validate:"min=0"`
	Workers         int           `yaml:"workers" validate:"min=1"`

	TraceEnabled       bool `yaml:"trace"`
	ScreenshotsEnabled bool `yaml:"screenshots"`

	Reporters []ReporterConfig `yaml:"reporters,omitempty" validate:"dive"`
	Projects  []Project        `yaml:"projects,omitempty" validate:"dive"`

	// Project selects one named profile for this run; empty means the
	// global options apply unmodified.
	Project string `yaml:"project,omitempty"`

	Credentials Credentials `yaml:"credentials,omitempty"`
	Features    []string    `yaml:"features,omitempty"`
}

var validate = validator.New()

// DefaultConfig returns a Config with working defaults for a local run.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "http://localhost:8080",
		Headless:           true,
		OutputDir:          "test-artifacts",
		ActionTimeout:      DefaultActionTimeout,
		TestTimeout:        DefaultTestTimeout,
		Retries:            0,
		Workers:            1,
		ScreenshotsEnabled: false,
		Reporters:          []ReporterConfig{{Name: "console"}},
	}
}

// LoadConfig builds the effective configuration. Precedence, lowest first:
// built-in defaults, the e2ekit.yaml file (if present), the .env file, the
// .env.local file, then real environment variables.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigFileName)
}

// LoadConfigFile is LoadConfig with an explicit YAML file path. A missing
// file is not an error; everything else is.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Config file is optional; env vars alone are enough.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	fileVars, err := LoadDotEnv(".")
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(func(key string) (string, bool) {
		v, ok := fileVars[key]
		return v, ok
	})
	cfg.applyEnv(os.LookupEnv)

	if cfg.ScreenshotsDir == "" {
		cfg.ScreenshotsDir = cfg.OutputDir + "/screenshots"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays recognized variables from the given lookup function.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if d, err := parseTimeout(v); err == nil {
				*dst = d
			}
		}
	}

	setString("E2E_BASE_URL", &c.BaseURL)
	setString("E2E_API_BASE_URL", &c.APIBaseURL)
	setBool("E2E_HEADLESS", &c.Headless)
	setString("E2E_BROWSER", &c.ChromePath)
	setString("CHROME_BIN", &c.ChromePath)
	setString("E2E_CHROME_URL", &c.RemoteChromeURL)
	setString("E2E_ARTIFACTS", &c.OutputDir)
	setDuration("E2E_ACTION_TIMEOUT", &c.ActionTimeout)
	setDuration("E2E_TEST_TIMEOUT", &c.TestTimeout)
	setInt("E2E_RETRIES", &c.Retries)
	setInt("E2E_WORKERS", &c.Workers)
	setBool("E2E_TRACE", &c.TraceEnabled)
	setBool("E2E_SCREENSHOTS", &c.ScreenshotsEnabled)
	setString("E2E_PROJECT", &c.Project)
	setString("E2E_USERNAME", &c.Credentials.Username)
	setString("E2E_PASSWORD", &c.Credentials.Password)

	if v, ok := lookup("E2E_FEATURES"); ok && v != "" {
		c.Features = nil
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				c.Features = append(c.Features, f)
			}
		}
	}

	// CI overrides apply last within one layer so a pipeline can raise
	// retries/parallelism without touching the committed config.
	if ci, ok := lookup("CI"); ok && (ci == "true" || ci == "1") {
		setInt("CI_RETRIES", &c.Retries)
		setInt("CI_WORKERS", &c.Workers)
	}
}

// parseTimeout accepts Go duration syntax ("30s") or a bare number of
// seconds ("30").
func parseTimeout(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout value %q", v)
	}
	return time.Duration(n) * time.Second, nil
}

// Validate checks the configuration and returns a MultiError describing
// every violated field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ValidationToMultiError(err)
	}
	return nil
}

// HasFeature reports whether a feature flag is enabled for this run.
func (c *Config) HasFeature(name string) bool {
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}

// ProjectByName looks up a named browser/device profile.
func (c *Config) ProjectByName(name string) (Project, bool) {
	for _, p := range c.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// ForProject returns a copy of the config with one project's overrides
// applied. The receiver is not modified.
func (c *Config) ForProject(name string) (*Config, error) {
	if name == "" {
		copied := *c
		return &copied, nil
	}
	p, ok := c.ProjectByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown project %q", name)
	}
	copied := *c
	copied.Project = p.Name
	if p.BaseURL != "" {
		copied.BaseURL = p.BaseURL
	}
	if p.Headless != nil {
		copied.Headless = *p.Headless
	}
	if p.ActionTimeout > 0 {
		copied.ActionTimeout = p.ActionTimeout
	}
	if p.TestTimeout > 0 {
		copied.TestTimeout = p.TestTimeout
	}
	return &copied, nil
}

// FieldError describes a single invalid config field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) Error() string {
	return f.Message
}

// MultiError is a collection of field errors (implements error interface)
type MultiError []FieldError

func (m MultiError) Error() string {
	if len(m) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidationToMultiError converts go-playground/validator errors to MultiError
func ValidationToMultiError(err error) MultiError {
	var fieldErrors MultiError

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return append(fieldErrors, FieldError{Field: "config", Message: err.Error()})
	}

	for _, e := range validationErrs {
		fieldName := strings.ToLower(e.Field())

		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", e.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", e.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
		default:
			message = fmt.Sprintf("%s is invalid (%s)", e.Field(), e.Tag())
		}

		fieldErrors = append(fieldErrors, FieldError{Field: fieldName, Message: message})
	}

	return fieldErrors
}
