package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"saldo/internal/cache"
	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles what the API exposes.
type Services struct {
	Ledger     *services.LedgerService
	Accounts   *services.AccountService
	Categories *services.CategoryService
	Goals      *services.GoalService
	Store      Pinger
}

type Options struct {
	RateLimitPerMinute int
	SummaryCacheSize   int
	SummaryCacheTTL    time.Duration
}

type Server struct {
	http.Server

	ledger     *services.LedgerService
	accounts   *services.AccountService
	categories *services.CategoryService
	goals      *services.GoalService
	store      Pinger

	summaries   *cache.Summaries
	cacheMgr    *cache.Manager
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	logger      *log.Logger
	startedAt   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.SummaryCacheSize <= 0 {
		opts.SummaryCacheSize = 256
	}
	if opts.SummaryCacheTTL <= 0 {
		opts.SummaryCacheTTL = 30 * time.Second
	}

	logger := log.Default(log.ComponentHTTP)
	ips := security.NewIPExtractor()

	s := &Server{
		ledger:      svc.Ledger,
		accounts:    svc.Accounts,
		categories:  svc.Categories,
		goals:       svc.Goals,
		store:       svc.Store,
		summaries:   cache.NewSummaries(opts.SummaryCacheSize, opts.SummaryCacheTTL),
		cacheMgr:    cache.NewManager(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:      trace.NewMiddleware(logger, ips.ExtractClientIP),
		logger:      logger,
		startedAt:   time.Now(),
	}
	s.cacheMgr.Register(s.summaries)
	s.cacheMgr.StartCleanup(opts.SummaryCacheTTL * 4)

	mux := http.NewServeMux()
	s.routes(mux)

	limited := s.rateLimiter.Middleware(ips.ExtractClientIP, isWrite, s.handleRateLimited)(mux)
	secured := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(limited)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(secured),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PATCH /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/accounts/{id}/balance", s.handleAccountBalance)
	mux.HandleFunc("GET /api/accounts/{id}/transactions", s.handleAccountTransactions)
	mux.HandleFunc("GET /api/accounts/{id}/categories/summary", s.handleCategorySummary)
	mux.HandleFunc("POST /api/accounts/{id}/categories/regenerate", s.handleRegenerateCategories)
	mux.HandleFunc("GET /api/accounts/{id}/categories/transactions", s.handleCategorizedTransactions)
	mux.HandleFunc("GET /api/accounts/{id}/goals/summary", s.handleGoalSummary)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /api/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("PATCH /api/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("POST /api/goals/{id}/allocate", s.handleAllocate)
	mux.HandleFunc("POST /api/goals/{id}/withdraw", s.handleWithdraw)

	mux.HandleFunc("/api/", s.handleNotFound)
}

func isWrite(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return strings.HasPrefix(r.URL.Path, "/api/")
	default:
		return false
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Body(errorBody{Error: "rate limit exceeded, retry later", Kind: "rate_limited"}).
		Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Status(http.StatusNotFound).
		Body(errorBody{Error: "no route for " + r.Method + " " + r.URL.Path, Kind: "not_found"}).
		Write(w)
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Close releases background routines without draining connections.
func (s *Server) Close() error {
	s.cacheMgr.Stop()
	s.rateLimiter.Stop()
	return s.Server.Close()
}
