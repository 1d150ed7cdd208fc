package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"horse.fit/bdradar/internal/cli"
	"horse.fit/bdradar/internal/collector/feed"
	"horse.fit/bdradar/internal/signal"
)

func runSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	file := fs.String("file", "-", "Feed file with candidate events (JSON array or NDJSON); - reads stdin")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	raw, err := readInput(strings.TrimSpace(*file))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read events: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sess, err := openSession(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer sess.Close()

	var candidates []signal.Candidate
	decoded, err := feed.Decode(ctx, raw, sess.logger, func(c signal.Candidate) error {
		candidates = append(candidates, c)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode events: %v\n", err)
		return 1
	}

	ops := newOperations(sess.pool, sess.cfg.DedupKindList(), sess.logger)
	admissions, stats, err := ops.Submit(ctx, candidates)
	if err != nil {
		sess.logger.Error().Err(err).Int("events", len(candidates)).Msg("submit failed")
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"admissions": admissions, "stats": stats, "invalid_events": decoded.Invalid}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(admissions))
	for i, a := range admissions {
		outcome := "admitted"
		if !a.Admitted {
			outcome = string(a.Reason)
		}
		rows = append(rows, []string{
			truncateForTable(candidates[i].RawCompanyName, 40),
			string(candidates[i].Kind),
			outcome,
			fmt.Sprintf("%d", a.Score),
			a.SignalUUID,
		})
	}
	if err := writeTable([]string{"company", "kind", "outcome", "score", "signal_uuid"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render admissions: %v\n", err)
		return 1
	}
	fmt.Printf(
		"\nsubmit seen=%d admitted=%d duplicate=%d excluded=%d unresolvable=%d invalid=%d\n",
		stats.Seen,
		stats.Admitted,
		stats.Duplicate,
		stats.Excluded,
		stats.Unresolvable,
		stats.Invalid+decoded.Invalid,
	)
	return 0
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
