package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/cli"
	"horse.fit/bdradar/internal/config"
	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/logging"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

// session is the state every database-backed command starts from.
type session struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
}

func (s *session) Close() {
	if s != nil && s.pool != nil {
		_ = s.pool.Close()
	}
}

// openSession loads the env file and config, then connects and migrates the
// database. A missing env file only warns; the process environment may
// already carry everything.
func openSession(ctx context.Context, envLoader *cli.EnvLoader) (*session, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database unavailable")
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &session{cfg: cfg, logger: logger, pool: pool}, nil
}

// interruptibleContext is cancelled on SIGINT or SIGTERM, and after timeout
// when timeout is positive.
func interruptibleContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	timed, cancel := context.WithTimeout(ctx, timeout)
	return timed, func() {
		cancel()
		stop()
	}
}

// parseFlags parses args into fs. When ok is false the command should exit
// with code: 0 for -h, 2 for a usage error.
func parseFlags(fs *flag.FlagSet, args []string) (code int, ok bool) {
	err := fs.Parse(args)
	switch {
	case err == nil:
		return 0, true
	case errors.Is(err, flag.ErrHelp):
		return 0, false
	default:
		return 2, false
	}
}

// render prints value as indented JSON, or as a table built by rows, and
// returns the command's exit code.
func render(format string, value any, headers []string, rows func() [][]string) int {
	if format == outputFormatJSON {
		if err := printJSON(value); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	if err := writeTable(headers, rows()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func parseOutputFormat(raw, fallback string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		format = strings.ToLower(strings.TrimSpace(fallback))
	}
	if format != outputFormatTable && format != outputFormatJSON {
		return "", fmt.Errorf("--format must be %s or %s, got %q", outputFormatTable, outputFormatJSON, raw)
	}
	return format, nil
}

// truncateForTable shortens value to at most width runes, marking the cut
// with "..." when there is room for it.
func truncateForTable(value string, width int) string {
	runes := []rune(strings.TrimSpace(value))
	if width <= 0 || len(runes) <= width {
		return string(runes)
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func formatUTCTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatUTCTimestampPtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatUTCTimestamp(*value)
}

func pointerStringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func printJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	for _, cells := range append([][]string{headers}, rows...) {
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
