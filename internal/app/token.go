package app

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"horse.fit/bdradar/internal/auth"
)

func runHashToken(args []string) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	cost := fs.Int("cost", auth.DefaultBcryptCost, "bcrypt cost")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		fmt.Fprintln(os.Stderr, "expected the token on stdin")
		return 2
	}

	hash, err := auth.HashTokenWithCost(scanner.Text(), *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
