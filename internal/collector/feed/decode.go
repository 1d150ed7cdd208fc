// Package feed turns JSON event feeds (local files or HTTP endpoints) into
// signal candidates for the orchestrator.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/signal"
	eventschema "horse.fit/bdradar/schema"
)

// DecodeStats counts what a single feed body produced.
type DecodeStats struct {
	Events  int
	Emitted int
	Invalid int
}

// SplitEvents breaks a feed body holding either a JSON array of events or a
// stream of JSON objects (NDJSON) into raw event payloads. A malformed body
// yields no events.
func SplitEvents(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		return items, nil
	}

	var items []json.RawMessage
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	for {
		var item json.RawMessage
		err := decoder.Decode(&item)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode event stream at event %d: %w", len(items), err)
		}
		items = append(items, item)
	}
}

// Decode validates every event of a feed body and emits the valid ones.
// Invalid events are logged and skipped; an error from emit stops decoding.
func Decode(ctx context.Context, raw []byte, logger zerolog.Logger, emit func(signal.Candidate) error) (DecodeStats, error) {
	stats := DecodeStats{}
	payloads, err := SplitEvents(raw)
	if err != nil {
		return stats, err
	}

	for i, payload := range payloads {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Events++
		candidate, err := eventschema.ValidateCandidateEvent(payload)
		if err != nil {
			stats.Invalid++
			logger.Warn().Err(err).Int("event_index", i).Msg("skipping invalid feed event")
			continue
		}
		if err := emit(*candidate); err != nil {
			return stats, err
		}
		stats.Emitted++
	}
	return stats, nil
}
