package commands

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/uilab/e2ekit"
)

// Report opens the HTML report from the last run in the default browser.
func Report(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	path := fs.String("path", "", "report file to open (default: <output_dir>/report.html)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reportPath := *path
	if reportPath == "" {
		cfg, err := e2ekit.LoadConfig()
		if err != nil {
			return err
		}
		reportPath = filepath.Join(cfg.OutputDir, "report.html")
	}

	if _, err := os.Stat(reportPath); err != nil {
		return fmt.Errorf("no report found at %s (run the suite with an html reporter first)", reportPath)
	}

	var opener string
	switch runtime.GOOS {
	case "darwin":
		opener = "open"
	case "windows":
		opener = "rundll32"
	default:
		opener = "xdg-open"
	}

	args = []string{reportPath}
	if opener == "rundll32" {
		args = []string{"url.dll,FileProtocolHandler", reportPath}
	}
	if err := exec.Command(opener, args...).Start(); err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	fmt.Printf("Opening %s\n", reportPath)
	return nil
}
