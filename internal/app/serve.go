package app

import (
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/bdradar/internal/cli"
	"horse.fit/bdradar/internal/httpapi"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Interface the API binds to")
	port := fs.Int("port", 8090, "API port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "Request read timeout")
	writeTimeout := fs.Duration("write-timeout", 2*time.Minute, "Response write timeout; sweeps run inside it")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Time allowed to drain requests on SIGTERM")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintf(os.Stderr, "--port %d is outside 1..65535\n", *port)
		return 2
	}

	ctx, cancel := interruptibleContext(0)
	defer cancel()

	sess, err := openSession(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer sess.Close()

	ops := newOperations(sess.pool, sess.cfg.DedupKindList(), sess.logger)
	srv := httpapi.NewServer(sess.pool, ops, sess.logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		TokenHash:       sess.cfg.APITokenHash,
	})

	if sess.cfg.APITokenHash == "" {
		sess.logger.Warn().Msg("BDR_API_TOKEN_HASH is not set; write routes are open")
	}

	if err := srv.Start(ctx); err != nil {
		sess.logger.Error().Err(err).Msg("api server exited")
		fmt.Fprintf(os.Stderr, "Serve failed: %v\n", err)
		return 1
	}
	return 0
}
