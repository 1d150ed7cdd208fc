package app

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/cli"
	"horse.fit/bdradar/internal/collector/feed"
	"horse.fit/bdradar/internal/config"
	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/orchestrate"
)

func runOrchestrator(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall run timeout")
	feedDir := fs.String("feed-dir", "", "Feed directory (overrides BDR_FEED_DIR)")
	concurrency := fs.Int("concurrency", 0, "Concurrent collectors (overrides BDR_COLLECTOR_CONCURRENCY)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *concurrency < 0 {
		fmt.Fprintln(os.Stderr, "--concurrency must be >= 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel := interruptibleContext(*timeout)
	defer cancel()

	sess, err := openSession(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer sess.Close()

	dir := strings.TrimSpace(*feedDir)
	if dir == "" {
		dir = sess.cfg.FeedDir
	}
	collectors, err := buildCollectors(sess.cfg, dir, sess.logger)
	if err != nil {
		sess.logger.Error().Err(err).Msg("failed to build collectors")
		fmt.Fprintf(os.Stderr, "Failed to build collectors: %v\n", err)
		return 1
	}
	if len(collectors) == 0 {
		sess.logger.Warn().Msg("no collectors configured; the run only sweeps")
	}

	opts := orchestrate.Options{
		Concurrency: sess.cfg.CollectorConcurrency,
		Timeout:     sess.cfg.CollectorTimeout,
	}
	if *concurrency > 0 {
		opts.Concurrency = *concurrency
	}

	report, runErr := orchestrate.New(sess.pool, collectors, opts, sess.logger).Run(ctx)
	if runErr != nil && report.RunUUID == "" {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", runErr)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else if err := printRunReport(report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render run report: %v\n", err)
		return 1
	}

	if runErr != nil || report.Status != db.RunStatusCompleted {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", runErr)
		return 1
	}
	return 0
}

// buildCollectors assembles file collectors from dir and HTTP collectors from
// the configured feed URLs.
func buildCollectors(cfg *config.Config, dir string, logger zerolog.Logger) ([]orchestrate.Collector, error) {
	var collectors []orchestrate.Collector

	if strings.TrimSpace(dir) != "" {
		files, err := feed.FromDir(dir, logger)
		if err != nil {
			return nil, err
		}
		for _, c := range files {
			collectors = append(collectors, c)
		}
	}

	httpOpts := feed.HTTPOptions{Timeout: cfg.FeedRequestTimeout}
	for _, c := range feed.FromURLMap(cfg.FeedURLMap(), httpOpts, logger) {
		collectors = append(collectors, c)
	}
	return collectors, nil
}

func printRunReport(report orchestrate.RunReport) error {
	rows := make([][]string, 0, len(report.Collectors))
	for _, c := range report.Collectors {
		rows = append(rows, []string{
			c.Name,
			c.Status,
			fmt.Sprintf("%d", c.Stats.Seen),
			fmt.Sprintf("%d", c.Stats.Admitted),
			fmt.Sprintf("%d", c.Stats.Duplicate),
			fmt.Sprintf("%d", c.Stats.Excluded),
			fmt.Sprintf("%d", c.Stats.Unresolvable+c.Stats.Invalid),
			truncateForTable(c.Error, 60),
		})
	}
	if err := writeTable([]string{"collector", "status", "seen", "admitted", "duplicate", "excluded", "rejected", "error"}, rows); err != nil {
		return err
	}

	fmt.Printf("\nrun=%s status=%s signals_produced=%d\n", report.RunUUID, report.Status, report.SignalsProduced)
	if report.Sweep != nil {
		fmt.Printf("sweep carried_forward=%d recomputed=%d updated=%d repaired=%d\n",
			report.Sweep.CarriedForward,
			report.Sweep.Recomputed,
			report.Sweep.Updated,
			report.Sweep.Repaired,
		)
	}
	if report.SweepError != "" {
		fmt.Printf("sweep error: %s\n", report.SweepError)
	}
	return nil
}
