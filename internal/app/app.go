package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "run", "run-once":
		return runOrchestrator(args[1:])
	case "sweep":
		return runSweep(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "submit":
		return runSubmit(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "normalize":
		return runNormalize(args[1:])
	case "roster":
		return runRoster(args[1:])
	case "signals", "queue":
		return runSignals(args[1:])
	case "runs":
		return runRuns(args[1:])
	case "serve":
		return runServe(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "bdradar CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  bdradar <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  run        Run every configured collector, then sweep")
	fmt.Fprintln(os.Stderr, "  run-once   Alias for run")
	fmt.Fprintln(os.Stderr, "  sweep      Carry forward and rescore open signals")
	fmt.Fprintln(os.Stderr, "  dedup      Merge signals describing the same deal")
	fmt.Fprintln(os.Stderr, "  submit     Submit candidate events from a feed file")
	fmt.Fprintln(os.Stderr, "  validate   Validate feed files against the candidate event schema")
	fmt.Fprintln(os.Stderr, "  normalize  Show how company names normalize")
	fmt.Fprintln(os.Stderr, "  roster     Import past-client or exclusion rosters from CSV")
	fmt.Fprintln(os.Stderr, "  signals    List the ranked signal queue")
	fmt.Fprintln(os.Stderr, "  runs       List recent agent runs")
	fmt.Fprintln(os.Stderr, "  serve      Start Echo API server")
	fmt.Fprintln(os.Stderr, "  hash-token Print the bcrypt hash of an API token read from stdin")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"bdradar <command> -h\" for command-specific flags.")
}
