package e2ekit

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
)

// TestResult is the outcome of one test as seen by the reporters.
type TestResult struct {
	Name       string        `json:"name"`
	Project    string        `json:"project,omitempty"`
	Passed     bool          `json:"passed"`
	Skipped    bool          `json:"skipped,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Duration   time.Duration `json:"duration"`
	Errors     []string      `json:"errors,omitempty"`
}

// RunReport aggregates the results of one worker's run.
type RunReport struct {
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Results   []TestResult `json:"results"`
}

// OK reports whether every non-skipped test passed.
func (r *RunReport) OK() bool {
	for _, res := range r.Results {
		if !res.Skipped && !res.Passed {
			return false
		}
	}
	return true
}

// Counts returns the number of passed, failed and skipped tests.
func (r *RunReport) Counts() (passed, failed, skipped int) {
	for _, res := range r.Results {
		switch {
		case res.Skipped:
			skipped++
		case res.Passed:
			passed++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}

// Reporter writes a finished run report somewhere: the terminal, a file, CI.
type Reporter interface {
	Write(report *RunReport) error
}

// NewReporters instantiates the reporters selected in the config. Unknown
// names are an error so a typo in CI config fails loudly.
func NewReporters(cfg *Config) ([]Reporter, error) {
	var reporters []Reporter
	for _, rc := range cfg.Reporters {
		switch rc.Name {
		case "console":
			reporters = append(reporters, &ConsoleReporter{Out: os.Stdout})
		case "json":
			reporters = append(reporters, &JSONReporter{Path: reporterPath(cfg, rc, "report.json")})
		case "junit":
			reporters = append(reporters, &JUnitReporter{Path: reporterPath(cfg, rc, "junit.xml")})
		case "html":
			reporters = append(reporters, &HTMLReporter{Path: reporterPath(cfg, rc, "report.html")})
		default:
			return nil, fmt.Errorf("unknown reporter %q", rc.Name)
		}
	}
	return reporters, nil
}

func reporterPath(cfg *Config, rc ReporterConfig, fallback string) string {
	if p, ok := rc.Options["path"]; ok && p != "" {
		return p
	}
	return filepath.Join(cfg.OutputDir, fallback)
}

var (
	consolePassColor = color.New(color.FgGreen)
	consoleFailColor = color.New(color.FgRed)
	consoleSkipColor = color.New(color.Faint, color.FgBlue)
	consoleErrColor  = color.New(color.FgYellow)
)

// ConsoleReporter prints a colorized per-test summary.
type ConsoleReporter struct {
	Out io.Writer
}

func (c *ConsoleReporter) Write(report *RunReport) error {
	for _, res := range report.Results {
		switch {
		case res.Skipped:
			_, _ = consoleSkipColor.Fprintf(c.Out, "  SKIP  %s (%s)\n", res.Name, res.SkipReason)
		case res.Passed:
			_, _ = consolePassColor.Fprintf(c.Out, "  PASS  %s (%v)\n", res.Name, res.Duration.Round(time.Millisecond))
		default:
			_, _ = consoleFailColor.Fprintf(c.Out, "  FAIL  %s (%v)\n", res.Name, res.Duration.Round(time.Millisecond))
			for _, e := range res.Errors {
				_, _ = consoleErrColor.Fprintf(c.Out, "        %s\n", e)
			}
		}
	}

	passed, failed, skipped := report.Counts()
	if report.OK() {
		_, _ = consolePassColor.Fprintf(c.Out, "All tests passed (%d passed, %d skipped)\n", passed, skipped)
	} else {
		_, _ = consoleFailColor.Fprintf(c.Out, "FAILED (%d passed, %d failed, %d skipped)\n", passed, failed, skipped)
	}
	return nil
}

// JSONReporter writes the raw run report as JSON.
type JSONReporter struct {
	Path string
}

func (j *JSONReporter) Write(report *RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(j.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	return nil
}

// JUnit XML schema - see https://github.com/jstemmer/go-junit-report

type jUnitXMLDocument struct {
	XMLName xml.Name          `xml:"testsuites"`
	Suites  []jUnitXMLSuite   `xml:"testsuite"`
}

type jUnitXMLSuite struct {
	XMLName   xml.Name           `xml:"testsuite"`
	Tests     int                `xml:"tests,attr"`
	Failures  int                `xml:"failures,attr"`
	Time      string             `xml:"time,attr"`
	Name      string             `xml:"name,attr"`
	TestCases []jUnitXMLTestCase `xml:"testcase"`
}

type jUnitXMLTestCase struct {
	XMLName     xml.Name             `xml:"testcase"`
	Classname   string               `xml:"classname,attr"`
	Name        string               `xml:"name,attr"`
	Time        string               `xml:"time,attr"`
	SkipMessage *jUnitXMLSkipMessage `xml:"skipped,omitempty"`
	Failure     *jUnitXMLFailure     `xml:"failure,omitempty"`
}

type jUnitXMLSkipMessage struct {
	Message string `xml:"message,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// JUnitReporter writes the run report in JUnit XML form for CI ingestion.
type JUnitReporter struct {
	Path string
}

func (j *JUnitReporter) Write(report *RunReport) error {
	suite := jUnitXMLSuite{
		Name: "e2ekit",
		Time: fmt.Sprintf("%.3f", report.EndTime.Sub(report.StartTime).Seconds()),
	}
	for _, res := range report.Results {
		tc := jUnitXMLTestCase{
			Classname: res.Project,
			Name:      res.Name,
			Time:      fmt.Sprintf("%.3f", res.Duration.Seconds()),
		}
		if tc.Classname == "" {
			tc.Classname = "default"
		}
		switch {
		case res.Skipped:
			tc.SkipMessage = &jUnitXMLSkipMessage{Message: res.SkipReason}
		case !res.Passed:
			suite.Failures++
			msg := "test failed"
			if len(res.Errors) > 0 {
				msg = res.Errors[0]
			}
			var contents bytes.Buffer
			for _, e := range res.Errors {
				contents.WriteString(e)
				contents.WriteString("\n")
			}
			tc.Failure = &jUnitXMLFailure{Message: msg, Type: "failure", Contents: contents.String()}
		}
		suite.Tests++
		suite.TestCases = append(suite.TestCases, tc)
	}

	doc := jUnitXMLDocument{Suites: []jUnitXMLSuite{suite}}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JUnit report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(j.Path, append([]byte(xml.Header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write JUnit report: %w", err)
	}
	return nil
}

// HTMLReporter renders a standalone HTML report, minified before writing.
type HTMLReporter struct {
	Path string
}

var htmlReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>E2E Test Report</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 0.5rem; text-align: left; }
.pass { color: #080; }
.fail { color: #b00; }
.skip { color: #888; }
pre { margin: 0; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>E2E Test Report</h1>
<p>{{ .Passed }} passed, {{ .Failed }} failed, {{ .Skipped }} skipped — {{ .Duration }}</p>
<table>
<tr><th>Test</th><th>Project</th><th>Status</th><th>Duration</th><th>Errors</th></tr>
{{ range .Results }}
<tr>
<td>{{ .Name }}</td>
<td>{{ .Project }}</td>
{{ if .Skipped }}<td class="skip">skipped</td>{{ else if .Passed }}<td class="pass">passed</td>{{ else }}<td class="fail">failed</td>{{ end }}
<td>{{ .Duration }}</td>
<td>{{ range .Errors }}<pre>{{ . }}</pre>{{ end }}</td>
</tr>
{{ end }}
</table>
</body>
</html>`))

func (h *HTMLReporter) Write(report *RunReport) error {
	passed, failed, skipped := report.Counts()
	data := struct {
		Passed, Failed, Skipped int
		Duration                time.Duration
		Results                 []TestResult
	}{
		Passed:   passed,
		Failed:   failed,
		Skipped:  skipped,
		Duration: report.EndTime.Sub(report.StartTime).Round(time.Millisecond),
		Results:  report.Results,
	}

	var buf bytes.Buffer
	if err := htmlReportTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}

	m := minify.New()
	m.AddFunc("text/html", minhtml.Minify)
	var out bytes.Buffer
	if err := m.Minify("text/html", &out, &buf); err != nil {
		return fmt.Errorf("failed to minify HTML report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(h.Path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}
