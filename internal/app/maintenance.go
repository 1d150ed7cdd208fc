package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/bdradar/internal/cli"
	"horse.fit/bdradar/internal/config"
)

func runSweep(args []string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sess, err := openSession(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer sess.Close()

	ops := newOperations(sess.pool, sess.cfg.DedupKindList(), sess.logger)
	result, err := ops.Sweep(ctx)
	if err != nil {
		sess.logger.Error().Err(err).Msg("sweep failed")
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"sweep carried_forward=%d recomputed=%d updated=%d repaired=%d\n",
		result.CarriedForward,
		result.Recomputed,
		result.Updated,
		result.Repaired,
	)
	return 0
}

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Report merges without deleting anything")
	kinds := fs.String("kinds", "", "Comma-separated signal kinds (overrides BDR_DEDUP_KINDS)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if code, ok := parseFlags(fs, args); !ok {
		return code
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

	dedupKinds := sess.cfg.DedupKindList()
	if *kinds != "" {
		override := config.Config{DedupKinds: *kinds}
		dedupKinds = override.DedupKindList()
	}

	ops := newOperations(sess.pool, dedupKinds, sess.logger)
	result, err := ops.Dedup(ctx, *dryRun)
	if err != nil {
		sess.logger.Error().Err(err).Bool("dry_run", *dryRun).Msg("dedup failed")
		fmt.Fprintf(os.Stderr, "Dedup failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(result.Decisions))
	for _, d := range result.Decisions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", d.Keep),
			fmt.Sprintf("%d", d.Drop),
			string(d.Pass),
			string(d.Reason),
		})
	}
	if len(rows) > 0 {
		if err := writeTable([]string{"keep", "drop", "pass", "reason"}, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render decisions: %v\n", err)
			return 1
		}
		fmt.Println()
	}

	fmt.Printf(
		"dedup examined=%d deleted=%d pair_merges=%d cluster_merges=%d dry_run=%t\n",
		result.Examined,
		result.Deleted,
		result.PairMerges,
		result.ClusterMerges,
		result.DryRun,
	)
	return 0
}
