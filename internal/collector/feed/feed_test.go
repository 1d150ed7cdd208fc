package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/signal"
)

const arrayFeed = `[
  {"company":"Acme Therapeutics, Inc.","kind":"new_ind","dedup_key":"ind-1"},
  {"company":"Acme","kind":"rumor","dedup_key":"bad-1"},
  {"company":"Beta Biosciences","kind":"transaction","dedup_key":"8k-1","detail":{"counterparty":"Gamma Pharma"}}
]`

const streamFeed = `{"company":"Delta Labs","kind":"funding","dedup_key":"f-1"}
{"company":"Epsilon Bio","kind":"partnership","dedup_key":"p-1"}

{"company":"Zeta Health","kind":"stale-posting","dedup_key":"s-1","active_postings":3}
`

func collectAll(t *testing.T, c interface {
	Collect(context.Context, func(signal.Candidate) error) error
}) []signal.Candidate {
	t.Helper()
	var got []signal.Candidate
	err := c.Collect(context.Background(), func(candidate signal.Candidate) error {
		got = append(got, candidate)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected collect error: %v", err)
	}
	return got
}

func TestDecodeArraySkipsInvalidEvents(t *testing.T) {
	var got []signal.Candidate
	stats, err := Decode(context.Background(), []byte(arrayFeed), zerolog.Nop(), func(c signal.Candidate) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if stats.Events != 3 || stats.Emitted != 2 || stats.Invalid != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got[1].Kind != signal.KindTransaction || got[1].Detail.Counterparty() != "Gamma Pharma" {
		t.Fatalf("unexpected second candidate: %+v", got[1])
	}
}

func TestDecodeStream(t *testing.T) {
	var got []signal.Candidate
	stats, err := Decode(context.Background(), []byte(streamFeed), zerolog.Nop(), func(c signal.Candidate) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if stats.Emitted != 3 {
		t.Fatalf("unexpected emitted count: got %d want 3", stats.Emitted)
	}
	if got[2].Kind != signal.KindStalePosting {
		t.Fatalf("unexpected kind: got %q want %q", got[2].Kind, signal.KindStalePosting)
	}
	if got[2].ActivePostings == nil || *got[2].ActivePostings != 3 {
		t.Fatalf("unexpected active postings: %v", got[2].ActivePostings)
	}
}

func TestDecodeMalformedStream(t *testing.T) {
	raw := `{"company":"Delta Labs","kind":"funding","dedup_key":"f-1"}
{"company": nope}`
	stats, err := Decode(context.Background(), []byte(raw), zerolog.Nop(), func(signal.Candidate) error { return nil })
	if err == nil {
		t.Fatalf("expected malformed stream error")
	}
	if stats.Emitted != 0 {
		t.Fatalf("expected nothing emitted from a malformed body, got %d", stats.Emitted)
	}
}

func TestDecodeStopsOnEmitError(t *testing.T) {
	stop := errors.New("stop")
	stats, err := Decode(context.Background(), []byte(streamFeed), zerolog.Nop(), func(signal.Candidate) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("unexpected error: got %v want %v", err, stop)
	}
	if stats.Events != 1 {
		t.Fatalf("expected decode to stop after first event, got %d", stats.Events)
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	stats, err := Decode(context.Background(), []byte("  \n"), zerolog.Nop(), func(signal.Candidate) error {
		t.Fatalf("emit must not be called")
		return nil
	})
	if err != nil || stats.Events != 0 {
		t.Fatalf("unexpected result: stats=%+v err=%v", stats, err)
	}
}

func TestFromDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sec", "8k.json"), arrayFeed)
	writeFile(t, filepath.Join(dir, "awards.ndjson"), streamFeed)
	writeFile(t, filepath.Join(dir, "README.md"), "not a feed")
	writeFile(t, filepath.Join(dir, ".hidden", "skip.json"), arrayFeed)

	collectors, err := FromDir(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected FromDir error: %v", err)
	}
	if len(collectors) != 2 {
		t.Fatalf("unexpected collector count: got %d want 2", len(collectors))
	}

	names := []string{collectors[0].Name(), collectors[1].Name()}
	if names[0] != "awards" || names[1] != "sec/8k" {
		t.Fatalf("unexpected collector names: %v", names)
	}

	if got := collectAll(t, collectors[1]); len(got) != 2 {
		t.Fatalf("unexpected candidate count: got %d want 2", len(got))
	}
}

func TestFromDirMissing(t *testing.T) {
	if _, err := FromDir(filepath.Join(t.TempDir(), "missing"), zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestFileCollectorMissingFile(t *testing.T) {
	c := NewFileCollector("", filepath.Join(t.TempDir(), "gone.json"), zerolog.Nop())
	err := c.Collect(context.Background(), func(signal.Candidate) error { return nil })
	if err == nil {
		t.Fatalf("expected read error")
	}
	if !strings.HasSuffix(c.Name(), "gone") {
		t.Fatalf("unexpected derived name: %q", c.Name())
	}
}

func TestHTTPCollector(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(streamFeed))
	}))
	defer server.Close()

	collector := NewHTTPCollector("awards", server.URL, HTTPOptions{}, zerolog.Nop())
	got := collectAll(t, collector)
	if len(got) != 3 {
		t.Fatalf("unexpected candidate count: got %d want 3", len(got))
	}
	if gotUserAgent != defaultUserAgent {
		t.Fatalf("unexpected user agent: got %q want %q", gotUserAgent, defaultUserAgent)
	}
}

func TestHTTPCollectorStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	collector := NewHTTPCollector("broken", server.URL, HTTPOptions{}, zerolog.Nop())
	err := collector.Collect(context.Background(), func(signal.Candidate) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestHTTPCollectorTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	collector := NewHTTPCollector("slow", server.URL, HTTPOptions{Timeout: 50 * time.Millisecond}, zerolog.Nop())
	err := collector.Collect(context.Background(), func(signal.Candidate) error { return nil })
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestFromURLMapOrdersByName(t *testing.T) {
	collectors := FromURLMap(map[string]string{
		"sec":    "https://sec.example/feed",
		"awards": "https://awards.example/feed",
	}, HTTPOptions{}, zerolog.Nop())

	if len(collectors) != 2 {
		t.Fatalf("unexpected collector count: %d", len(collectors))
	}
	if collectors[0].Name() != "awards" || collectors[1].URL() != "https://sec.example/feed" {
		t.Fatalf("unexpected collectors: %s %s", collectors[0].Name(), collectors[1].URL())
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}
