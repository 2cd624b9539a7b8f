package commands

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
)

// Debug runs one test under the dlv step debugger with a visible browser.
func Debug(args []string) error {
	fs := flag.NewFlagSet("debug", flag.ContinueOnError)
	pkg := fs.String("pkg", "./...", "test package containing the test")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: e2ekit debug [-pkg <pattern>] <test name>")
	}
	testName := fs.Arg(0)

	if _, err := exec.LookPath("dlv"); err != nil {
		return fmt.Errorf("dlv not found in PATH (install with: go install github.com/go-delve/delve/cmd/dlv@latest)")
	}

	cmd := exec.Command("dlv", "test", *pkg, "--", "-test.run", testName, "-test.v")
	cmd.Env = append(os.Environ(), "E2E_HEADLESS=false")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run dlv: %w", err)
	}
	return nil
}
