package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/bdradar/internal/signal"
)

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultBodyByteLimit  = 16 * 1024 * 1024

	defaultUserAgent = "bdradar-feed/1.0"
)

// HTTPOptions controls how HTTP feeds are fetched.
type HTTPOptions struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// HTTPCollector fetches one feed URL per run and emits its events.
type HTTPCollector struct {
	name      string
	url       string
	timeout   time.Duration
	bodyLimit int64
	userAgent string
	client    *http.Client
	logger    zerolog.Logger
}

func NewHTTPCollector(name, url string, opts HTTPOptions, logger zerolog.Logger) *HTTPCollector {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	name = strings.TrimSpace(name)
	return &HTTPCollector{
		name:      name,
		url:       strings.TrimSpace(url),
		timeout:   timeout,
		bodyLimit: bodyLimit,
		userAgent: userAgent,
		client:    client,
		logger:    logger.With().Str("collector", name).Logger(),
	}
}

func (c *HTTPCollector) Name() string { return c.name }

func (c *HTTPCollector) URL() string { return c.url }

func (c *HTTPCollector) Collect(ctx context.Context, emit func(signal.Candidate) error) error {
	if c.url == "" {
		return fmt.Errorf("feed url is required")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, application/x-ndjson;q=0.9, */*;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.bodyLimit))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	stats, err := Decode(ctx, body, c.logger, emit)
	if err != nil {
		return err
	}

	c.logger.Debug().
		Int("events", stats.Events).
		Int("emitted", stats.Emitted).
		Int("invalid", stats.Invalid).
		Msg("feed url collected")
	return nil
}

// FromURLMap builds one HTTPCollector per name=url entry, ordered by name.
func FromURLMap(urls map[string]string, opts HTTPOptions, logger zerolog.Logger) []*HTTPCollector {
	names := make([]string, 0, len(urls))
	for name := range urls {
		names = append(names, name)
	}
	sort.Strings(names)

	collectors := make([]*HTTPCollector, 0, len(names))
	for _, name := range names {
		collectors = append(collectors, NewHTTPCollector(name, urls[name], opts, logger))
	}
	return collectors
}
