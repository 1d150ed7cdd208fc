package eventschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/bdradar/internal/signal"
)

//go:embed candidate_event.schema.json
var candidateEventSchemaJSON string

// CandidateEvent is the wire form of a collector event.
type CandidateEvent struct {
	Company        string         `json:"company"`
	Kind           string         `json:"kind"`
	DedupKey       string         `json:"dedup_key"`
	Cadence        string         `json:"cadence,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	Detail         map[string]any `json:"detail,omitempty"`
	ActivePostings *int           `json:"active_postings,omitempty"`
	SourceURL      *string        `json:"source_url,omitempty"`
}

const candidateEventSchemaName = "candidate_event.schema.json"

var candidateEventSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(candidateEventSchemaName, strings.NewReader(candidateEventSchemaJSON)); err != nil {
		return nil, fmt.Errorf("register %s: %w", candidateEventSchemaName, err)
	}
	return compiler.Compile(candidateEventSchemaName)
})

// ValidateCandidateEvent checks payload against the candidate-event schema
// and returns the candidate it describes. Unknown fields, trailing content
// and malformed source URLs are rejected.
func ValidateCandidateEvent(payload json.RawMessage) (*signal.Candidate, error) {
	schema, err := candidateEventSchema()
	if err != nil {
		return nil, fmt.Errorf("load candidate event schema: %w", err)
	}

	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("event does not match schema: %w", err)
	}

	var event CandidateEvent
	if err := json.Unmarshal(bytes.TrimSpace(payload), &event); err != nil {
		return nil, fmt.Errorf("map event fields: %w", err)
	}
	return toCandidate(&event)
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("payload is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("payload contains trailing content")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("payload contains trailing content")
	}
	return value, nil
}

func toCandidate(event *CandidateEvent) (*signal.Candidate, error) {
	if event == nil {
		return nil, errors.New("payload is nil")
	}

	company := strings.TrimSpace(event.Company)
	if company == "" {
		return nil, errors.New("company must not be empty")
	}
	dedupKey := strings.TrimSpace(event.DedupKey)
	if dedupKey == "" {
		return nil, errors.New("dedup_key must not be empty")
	}
	kind, err := signal.ParseKind(event.Kind)
	if err != nil {
		return nil, err
	}
	cadence, err := signal.ParseCadence(event.Cadence)
	if err != nil {
		return nil, err
	}

	detail := signal.Detail(event.Detail).Clone()
	if event.SourceURL != nil {
		if sourceURL := strings.TrimSpace(*event.SourceURL); sourceURL != "" && detail.String(signal.DetailSourceURL) == "" {
			detail[signal.DetailSourceURL] = sourceURL
		}
	}
	if len(detail) == 0 {
		detail = nil
	}

	return &signal.Candidate{
		RawCompanyName: company,
		Kind:           kind,
		DedupKey:       dedupKey,
		Cadence:        cadence,
		Summary:        strings.TrimSpace(event.Summary),
		Detail:         detail,
		ActivePostings: event.ActivePostings,
	}, nil
}
