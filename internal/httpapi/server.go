package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/bdradar/internal/db"
	"horse.fit/bdradar/internal/dedup"
	"horse.fit/bdradar/internal/intake"
	"horse.fit/bdradar/internal/orchestrate"
	"horse.fit/bdradar/internal/signal"
)

const maxEventBodyBytes = "8M"

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// TokenHash is the bcrypt hash guarding write routes; empty disables it.
	TokenHash string
}

// Store is the read side the API serves from.
type Store interface {
	Ping(ctx context.Context) error
	CountCompanies(ctx context.Context) (int64, error)
	SignalStatusCounts(ctx context.Context) (map[string]int64, error)
	SignalKindCounts(ctx context.Context) (map[string]int64, error)
	ListQueue(ctx context.Context, filter db.QueueFilter) ([]db.SignalRecord, error)
	GetSignalByUUID(ctx context.Context, signalUUID string) (db.SignalRecord, error)
	ListAgentRuns(ctx context.Context, name string, limit int) ([]db.AgentRun, error)
	SetCompanyWarmth(ctx context.Context, companyUUID, warmth string) (db.Company, error)
}

// Operations are the write paths the API triggers.
type Operations interface {
	Submit(ctx context.Context, candidates []signal.Candidate) ([]intake.Admission, intake.RunStats, error)
	Sweep(ctx context.Context) (orchestrate.SweepResult, error)
	Dedup(ctx context.Context, dryRun bool) (dedup.Result, error)
}

type Server struct {
	store  Store
	ops    Operations
	logger zerolog.Logger
	opts   Options
}

func NewServer(store Store, ops Operations, logger zerolog.Logger, opts Options) *Server {
	return &Server{
		store:  store,
		ops:    ops,
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

func (o Options) withDefaults() Options {
	o.Host = strings.TrimSpace(o.Host)
	if o.Host == "" {
		o.Host = "0.0.0.0"
	}
	if o.Port <= 0 {
		o.Port = 8090
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Minute
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
	o.TokenHash = strings.TrimSpace(o.TokenHash)
	return o
}

// Handler builds the echo router with every route and middleware attached.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:     true,
		LogURI:        true,
		LogMethod:     true,
		LogLatency:    true,
		LogRemoteIP:   true,
		LogRequestID:  true,
		LogError:      true,
		LogValuesFunc: s.logRequest,
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/signals", s.handleSignals)
	api.GET("/signals/:signal_uuid", s.handleSignalDetail)
	api.GET("/runs", s.handleRuns)

	requireToken := s.requireToken()
	api.POST("/events", s.handleEvents, requireToken, middleware.BodyLimit(maxEventBodyBytes))
	api.POST("/sweep", s.handleSweep, requireToken)
	api.POST("/dedup", s.handleDedup, requireToken)
	api.PUT("/companies/:company_uuid/warmth", s.handlePutWarmth, requireToken)

	return e
}

func (s *Server) logRequest(_ echo.Context, v middleware.RequestLoggerValues) error {
	event := s.logger.Info()
	if v.Error != nil {
		event = s.logger.Warn().Err(v.Error)
	}
	if v.Status >= http.StatusInternalServerError {
		event = s.logger.Error().Err(v.Error)
	}
	event.
		Str("request_id", v.RequestID).
		Str("method", v.Method).
		Str("uri", v.URI).
		Int("status", v.Status).
		Dur("latency", v.Latency).
		Str("remote_ip", v.RemoteIP).
		Msg("api request")
	return nil
}

// Start serves until ctx is cancelled, then drains in-flight requests for at
// most ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil || s.ops == nil {
		return errors.New("server is not initialized")
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.logger.Info().Str("addr", addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("drain api server: %w", err)
		}
		s.logger.Info().Msg("api stopped")
		return nil
	})
	return group.Wait()
}

// httpErrorHandler answers router errors (unknown routes, body limits,
// panics) in the same envelope the handlers use.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code >= http.StatusInternalServerError {
		_ = internalError(c, "Internal server error")
		return
	}
	message, _ := he.Message.(string)
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(he.Code)
	}
	_ = fail(c, he.Code, message, nil)
}
