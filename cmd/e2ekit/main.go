package main

import (
	"fmt"
	"os"

	"github.com/uilab/e2ekit/cmd/e2ekit/commands"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error

	switch command {
	case "run":
		err = commands.Run(args)
	case "report":
		err = commands.Report(args)
	case "ui":
		err = commands.UI(args)
	case "debug":
		err = commands.Debug(args)
	case "record":
		err = commands.Record(args)
	case "version", "--version", "-v":
		fmt.Printf("e2ekit %s (%s)\n", version, commit)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		var exit commands.ExitError
		if ok := asExitError(err, &exit); ok {
			// The test engine already printed its output; forward its code.
			os.Exit(exit.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func asExitError(err error, out *commands.ExitError) bool {
	e, ok := err.(commands.ExitError)
	if ok {
		*out = e
	}
	return ok
}

func printUsage() {
	fmt.Println(`e2ekit - browser end-to-end test kit

Usage:
  e2ekit run [flags]       run the test suite (delegates to go test)
  e2ekit report            open the last HTML report
  e2ekit ui                pick and run a test interactively
  e2ekit debug <test>      run one test under the dlv debugger
  e2ekit record <url>      suggest locators for clicked elements
  e2ekit version           print version information

Run flags:
  -headed                  run with a visible browser
  -trace                   record execution traces
  -grep <pattern>          run only tests matching the pattern
  -project <name>          restrict the run to one project profile
  -list                    list tests without executing them
  -pkg <pattern>           test packages to run (default ./...)
  -workers <n>             number of parallel test processes`)
}
