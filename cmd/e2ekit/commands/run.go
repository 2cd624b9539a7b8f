// Package commands implements the e2ekit CLI subcommands. Test execution is
// delegated to go test; these commands only translate flags into the
// environment the suite config reads.
package commands

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/fatih/color"

	"github.com/uilab/e2ekit/internal/testkit"
)

// ExitError carries the test engine's exit code through to main, so the
// CLI's exit status is exactly the engine's.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

type runParams struct {
	headed  bool
	trace   bool
	grep    string
	project string
	list    bool
	short   bool
	pkg     string
	workers int
}

func (p *runParams) read(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.BoolVar(&p.headed, "headed", false, "run with a visible browser")
	fs.BoolVar(&p.trace, "trace", false, "record execution traces")
	fs.StringVar(&p.grep, "grep", "", "regex pattern to select tests to run")
	fs.StringVar(&p.project, "project", "", "restrict the run to one project profile")
	fs.BoolVar(&p.list, "list", false, "list tests without executing them")
	fs.BoolVar(&p.short, "short", false, "skip browser-dependent tests")
	fs.StringVar(&p.pkg, "pkg", "./...", "test packages to run")
	fs.IntVar(&p.workers, "workers", 0, "number of parallel test processes")
	return fs.Parse(args)
}

// Run executes the suite via go test, translating flags into E2E_*
// environment variables.
func Run(args []string) error {
	var params runParams
	if err := params.read(args); err != nil {
		return err
	}

	goArgs := []string{"test", params.pkg, "-count=1", "-v"}
	if params.list {
		pattern := params.grep
		if pattern == "" {
			pattern = ".*"
		}
		goArgs = append(goArgs, "-list", pattern)
	} else if params.grep != "" {
		goArgs = append(goArgs, "-run", params.grep)
	}
	if params.short {
		goArgs = append(goArgs, "-short")
	}
	if params.workers > 0 {
		goArgs = append(goArgs, "-p", strconv.Itoa(params.workers))
	}

	env := os.Environ()
	if params.headed {
		env = append(env, "E2E_HEADLESS=false")
	}
	if params.trace {
		env = append(env, "E2E_TRACE=1")
	}
	if params.project != "" {
		env = append(env, "E2E_PROJECT="+params.project)
	}
	if params.workers > 0 {
		env = append(env, "E2E_WORKERS="+strconv.Itoa(params.workers))
	}

	if !params.list {
		withBrowser, stop, err := ensureBrowser(env)
		if err != nil {
			return err
		}
		defer stop()
		env = withBrowser
	}

	return runGoTest(goArgs, env)
}

// ensureBrowser makes sure the test processes will find a browser. When
// neither a local Chrome nor a remote endpoint is configured, it starts
// the dockerized headless-shell and points E2E_CHROME_URL at it. The
// returned stop function tears the container down after the run; it is a
// no-op when nothing was started.
func ensureBrowser(env []string) ([]string, func(), error) {
	noop := func() {}
	if os.Getenv("E2E_CHROME_URL") != "" || os.Getenv("CHROME_BIN") != "" || testkit.ChromeAvailable() {
		return env, noop, nil
	}
	if !testkit.DockerAvailable() {
		// Browser tests will skip themselves; everything else still runs.
		return env, noop, nil
	}

	// Host networking on Linux pins the container to its own 9222;
	// elsewhere the debug port is mapped and can be any free one.
	port := 9222
	if runtime.GOOS != "linux" {
		var err error
		if port, err = testkit.GetFreePort(); err != nil {
			return env, noop, err
		}
	}
	cmd, chromeURL, err := testkit.StartHeadlessShell(port)
	if err != nil {
		return env, noop, fmt.Errorf("failed to start dockerized browser: %w", err)
	}
	color.Cyan("Started chromedp/headless-shell at %s", chromeURL)

	stop := func() {
		if err := testkit.StopHeadlessShell(cmd, port); err != nil {
			color.Yellow("Warning: %v", err)
		}
	}
	return append(env, "E2E_CHROME_URL="+chromeURL), stop, nil
}

// runGoTest execs the engine with stdio passed through, converting its exit
// status into an ExitError.
func runGoTest(goArgs []string, env []string) error {
	cmd := exec.Command("go", goArgs...)
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run go test: %w", err)
	}
	return nil
}
