package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/bdradar/internal/cli"
	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/signal"
)

func runSignals(args []string) int {
	fs := flag.NewFlagSet("signals", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	status := fs.String("status", "", "Only signals with this status (default: every open signal)")
	kind := fs.String("kind", "", "Only signals of this kind")
	limit := fs.Int("limit", 50, "Maximum signals to list (1-500)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *limit < 1 || *limit > 500 {
		fmt.Fprintln(os.Stderr, "--limit must be between 1 and 500")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	filter := db.QueueFilter{Limit: *limit}
	if strings.TrimSpace(*status) != "" {
		parsed, err := signal.ParseStatus(*status)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --status: %v\n", err)
			return 2
		}
		filter.Status = string(parsed)
	}
	if strings.TrimSpace(*kind) != "" {
		parsed, err := signal.ParseKind(*kind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --kind: %v\n", err)
			return 2
		}
		filter.Kind = string(parsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sess, err := openSession(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer sess.Close()

	rows, err := sess.pool.ListQueue(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query signals: %v\n", err)
		return 1
	}

	headers := []string{"score", "company", "kind", "status", "days", "warmth", "summary", "signal_uuid"}
	return render(outputFormat, rows, headers, func() [][]string {
		out := make([][]string, 0, len(rows))
		for _, row := range rows {
			out = append(out, []string{
				strconv.Itoa(row.PriorityScore),
				truncateForTable(row.CompanyName, 36),
				row.Kind,
				row.Status,
				strconv.Itoa(row.DaysInQueue),
				row.CompanyWarmth,
				truncateForTable(row.Summary, 60),
				row.SignalUUID,
			})
		}
		return out
	})
}

func runRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	name := fs.String("name", "", "Only runs with this name (orchestrator, sweep, transaction_dedup, submit or a collector)")
	limit := fs.Int("limit", 20, "Maximum runs to list")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sess, err := openSession(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer sess.Close()

	runs, err := sess.pool.ListAgentRuns(ctx, *name, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query runs: %v\n", err)
		return 1
	}

	headers := []string{"name", "status", "started_at", "finished_at", "signals", "error"}
	return render(outputFormat, runs, headers, func() [][]string {
		out := make([][]string, 0, len(runs))
		for _, run := range runs {
			out = append(out, []string{
				run.Name,
				run.Status,
				formatUTCTimestamp(run.StartedAt),
				formatUTCTimestampPtr(run.FinishedAt),
				strconv.Itoa(run.SignalsProduced),
				truncateForTable(pointerStringOrEmpty(run.ErrorMessage), 60),
			})
		}
		return out
	})
}
