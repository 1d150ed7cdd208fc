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
	"horse.fit/bdradar/internal/intake"
	"horse.fit/bdradar/internal/orgname"
)

type normalizedName struct {
	Input      string   `json:"input"`
	Normalized string   `json:"normalized"`
	Key        string   `json:"key"`
	Display    string   `json:"display"`
	Keywords   []string `json:"keywords"`
	PastClient string   `json:"past_client,omitempty"`
	Boost      int      `json:"boost,omitempty"`
	Excluded   bool     `json:"excluded,omitempty"`
}

func runNormalize(args []string) int {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	check := fs.Bool("check-rosters", false, "Also match each name against the stored rosters")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout when checking rosters")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "normalize expects at least one company name")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	names := make([]normalizedName, 0, fs.NArg())
	for _, raw := range fs.Args() {
		names = append(names, describeName(raw))
	}

	if *check {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		sess, err := openSession(ctx, envLoader)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer sess.Close()

		rosters, err := intake.LoadRosters(ctx, sess.pool)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load rosters: %v\n", err)
			return 1
		}
		for i := range names {
			if match, ok := rosters.PastClients.Lookup(names[i].Input); ok {
				names[i].PastClient = fmt.Sprintf("%s (rank %d, %s)", match.Name, match.Rank, match.Method)
				names[i].Boost = match.Boost
			}
			names[i].Excluded = rosters.Exclusions.IsExcluded(names[i].Input)
		}
	}

	headers := []string{"input", "normalized", "key", "display", "keywords"}
	if *check {
		headers = append(headers, "past_client", "boost", "excluded")
	}
	return render(outputFormat, names, headers, func() [][]string {
		out := make([][]string, 0, len(names))
		for _, n := range names {
			row := []string{
				truncateForTable(n.Input, 48),
				n.Normalized,
				n.Key,
				n.Display,
				strings.Join(n.Keywords, ","),
			}
			if *check {
				row = append(row, n.PastClient, strconv.Itoa(n.Boost), strconv.FormatBool(n.Excluded))
			}
			out = append(out, row)
		}
		return out
	})
}

func describeName(raw string) normalizedName {
	return normalizedName{
		Input:      strings.TrimSpace(raw),
		Normalized: orgname.Normalize(raw),
		Key:        orgname.Key(raw),
		Display:    orgname.Display(raw),
		Keywords:   orgname.Keywords(raw),
	}
}
