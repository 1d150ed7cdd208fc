package app

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/bdradar/internal/cli"
	"horse.fit/bdradar/internal/globaltime"
)

const (
	rosterPastClients = "past-clients"
	rosterExclusions  = "exclusions"
)

type pastClientRow struct {
	Name   string
	Rank   int
	Active bool
}

type exclusionRow struct {
	Name   string
	Reason string
}

func runRoster(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: bdradar roster import --type past-clients|exclusions --file roster.csv")
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "import":
		return runRosterImport(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown roster command: %s\n", args[0])
		return 2
	}
}

func runRosterImport(args []string) int {
	fs := flag.NewFlagSet("roster import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	rosterType := fs.String("type", rosterPastClients, "Roster type: past-clients or exclusions")
	file := fs.String("file", "", "CSV file (past-clients: name,rank[,active]; exclusions: name[,reason])")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	kind := strings.ToLower(strings.TrimSpace(*rosterType))
	if kind != rosterPastClients && kind != rosterExclusions {
		fmt.Fprintln(os.Stderr, "--type must be past-clients or exclusions")
		return 2
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	f, err := os.Open(strings.TrimSpace(*file))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open roster: %v\n", err)
		return 1
	}
	defer f.Close()

	var (
		pastClients []pastClientRow
		exclusions  []exclusionRow
	)
	if kind == rosterPastClients {
		pastClients, err = parsePastClientCSV(f)
	} else {
		exclusions, err = parseExclusionCSV(f)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid roster: %v\n", err)
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

	imported := 0
	for _, row := range pastClients {
		if err := sess.pool.UpsertPastClient(ctx, row.Name, row.Rank, row.Active); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to import %q: %v\n", row.Name, err)
			return 1
		}
		imported++
	}
	checkedAt := globaltime.UTC()
	for _, row := range exclusions {
		if err := sess.pool.UpsertExcludedCompany(ctx, row.Name, row.Reason, checkedAt); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to import %q: %v\n", row.Name, err)
			return 1
		}
		imported++
	}

	sess.logger.Info().Str("type", kind).Int("imported", imported).Msg("roster imported")
	fmt.Printf("roster type=%s imported=%d\n", kind, imported)
	return 0
}

func parsePastClientCSV(r io.Reader) ([]pastClientRow, error) {
	records, err := readRosterCSV(r)
	if err != nil {
		return nil, err
	}

	rows := make([]pastClientRow, 0, len(records))
	for i, record := range records {
		n := i + 1
		if len(record) < 2 {
			return nil, fmt.Errorf("record %d: expected name,rank", n)
		}
		rank, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || rank < 1 {
			return nil, fmt.Errorf("record %d: rank must be a positive integer", n)
		}
		active := true
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			active, err = strconv.ParseBool(strings.TrimSpace(record[2]))
			if err != nil {
				return nil, fmt.Errorf("record %d: active must be a boolean", n)
			}
		}
		rows = append(rows, pastClientRow{Name: record[0], Rank: rank, Active: active})
	}
	return rows, nil
}

func parseExclusionCSV(r io.Reader) ([]exclusionRow, error) {
	records, err := readRosterCSV(r)
	if err != nil {
		return nil, err
	}

	rows := make([]exclusionRow, 0, len(records))
	for _, record := range records {
		row := exclusionRow{Name: record[0]}
		if len(record) > 1 {
			row.Reason = strings.TrimSpace(record[1])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readRosterCSV returns the data records with names trimmed. A first record
// whose first cell is "name" is treated as a header. Blank names are skipped.
func readRosterCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(all) > 0 && len(all[0]) > 0 && strings.EqualFold(strings.TrimSpace(all[0][0]), "name") {
		all = all[1:]
	}

	records := make([][]string, 0, len(all))
	for _, record := range all {
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}
		record[0] = strings.TrimSpace(record[0])
		records = append(records, record)
	}
	return records, nil
}
