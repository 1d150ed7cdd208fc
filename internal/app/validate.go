package app

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/bdradar/internal/collector/feed"
	eventschema "horse.fit/bdradar/schema"
)

type validateResult struct {
	Files   int
	Events  int
	Valid   int
	Invalid int
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dir := fs.String("dir", "testdata/feeds", "Directory containing feed files (.json, .ndjson, .jsonl)")

	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	root := strings.TrimSpace(*dir)
	result, err := validateFeedDir(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"validate files=%d events=%d valid=%d invalid=%d dir=%s\n",
		result.Files,
		result.Events,
		result.Valid,
		result.Invalid,
		root,
	)

	if result.Files == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no feed files found under %s\n", root)
		return 1
	}
	if result.Invalid > 0 {
		return 1
	}
	return 0
}

func validateFeedDir(root string) (validateResult, error) {
	files, err := feed.CollectFeedFiles(root)
	if err != nil {
		return validateResult{}, err
	}

	result := validateResult{}
	for _, path := range files {
		result.Files++

		raw, err := os.ReadFile(path)
		if err != nil {
			result.Invalid++
			fmt.Fprintf(os.Stderr, "INVALID %s: read failed: %v\n", path, err)
			continue
		}

		payloads, err := feed.SplitEvents(raw)
		if err != nil {
			result.Invalid++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			continue
		}

		for i, payload := range payloads {
			result.Events++
			if _, err := eventschema.ValidateCandidateEvent(payload); err != nil {
				result.Invalid++
				fmt.Fprintf(os.Stderr, "INVALID %s[%d]: %v\n", path, i, err)
				continue
			}
			result.Valid++
		}
	}
	return result, nil
}
