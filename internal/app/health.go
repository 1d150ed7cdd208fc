package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/bdradar/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Database ping timeout")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sess, err := openSession(ctx, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer sess.Close()

	if err := sess.pool.Ping(ctx); err != nil {
		sess.logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}

	sess.logger.Info().
		Dur("timeout", *timeout).
		Str("dialect", sess.pool.Dialect()).
		Msg("database health check passed")
	fmt.Println("ok: database ping successful")
	return 0
}
