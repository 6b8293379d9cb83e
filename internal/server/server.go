// Package server exposes the tracker's local JSON API: analytics, stored
// activity, live account passthrough, transaction CRUD and a manual sync
// trigger.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/analytics"
	"github.com/rickgao/kalshi-tracker/internal/api"
	"github.com/rickgao/kalshi-tracker/internal/ingest"
	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// Analytics is the read-side engine. *analytics.Engine satisfies it.
type Analytics interface {
	Summary(ctx context.Context, p analytics.Period) (analytics.Summary, error)
	DailyPnL(ctx context.Context, p analytics.Period) ([]analytics.DailyPnL, error)
	CumulativePnL(ctx context.Context, p analytics.Period) ([]analytics.CumulativePoint, error)
	WinRate(ctx context.Context, p analytics.Period) (analytics.WinRate, error)
	MarketBreakdown(ctx context.Context, p analytics.Period) ([]analytics.MarketStat, error)
	ROI(ctx context.Context) (analytics.ROI, error)
	PortfolioHistory(ctx context.Context, p analytics.Period) ([]model.PortfolioSnapshot, error)
	TransactionSummary(ctx context.Context) (analytics.TransactionSummary, error)
}

// Live reads the account directly from the venue. *api.Client satisfies it.
type Live interface {
	GetBalance(ctx context.Context) (*api.BalanceResponse, error)
	GetAllPositions(ctx context.Context) ([]model.Position, error)
	GetMarket(ctx context.Context, ticker string) (*api.APIMarket, error)
}

// Syncer triggers ingestion. *ingest.Syncer satisfies it.
type Syncer interface {
	Sync(ctx context.Context) (ingest.Report, error)
}

// Observer records request metrics. route is the matched mux pattern.
type Observer interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
}

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	MetricsPath string // empty disables /metrics
}

// Deps are the components the handlers read from.
type Deps struct {
	Store    store.Store
	Engine   Analytics
	Live     Live    // nil disables live passthrough endpoints
	Syncer   Syncer  // nil disables POST /api/sync
	Metrics  http.Handler
	Observer Observer
}

// Server is the local HTTP API.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Server with all routes registered.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, logger: logger, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/portfolio/summary", s.handleSummary)
	mux.HandleFunc("GET /api/portfolio/history", s.handleHistory)
	mux.HandleFunc("GET /api/portfolio/balance", s.handleBalance)
	mux.HandleFunc("GET /api/portfolio/positions", s.handlePositions)

	mux.HandleFunc("GET /api/markets/{ticker}", s.handleMarket)

	mux.HandleFunc("GET /api/trades/fills", s.handleFills)
	mux.HandleFunc("GET /api/trades/settlements", s.handleSettlements)
	mux.HandleFunc("GET /api/trades/recent", s.handleRecent)

	mux.HandleFunc("GET /api/analytics/daily-pnl", s.handleDailyPnL)
	mux.HandleFunc("GET /api/analytics/cumulative-pnl", s.handleCumulativePnL)
	mux.HandleFunc("GET /api/analytics/win-rate", s.handleWinRate)
	mux.HandleFunc("GET /api/analytics/market-breakdown", s.handleMarketBreakdown)
	mux.HandleFunc("GET /api/analytics/roi", s.handleROI)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/summary", s.handleTransactionSummary)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /api/sync", s.handleSync)

	if cfg.MetricsPath != "" && deps.Metrics != nil {
		mux.Handle("GET "+cfg.MetricsPath, deps.Metrics)
	}

	var h http.Handler = mux
	h = observeMiddleware(deps.Observer)(h)
	h = loggingMiddleware(logger)(h)
	h = requestIDMiddleware(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute, // POST /api/sync can run a full sweep
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server: listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured port. It blocks until the
// server fails or is shut down.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
