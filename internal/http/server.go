package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"walletlens/internal/cache"
	"walletlens/internal/core"
	"walletlens/internal/log"
	"walletlens/internal/middleware/ratelimit"
	"walletlens/internal/middleware/security"
	"walletlens/internal/middleware/trace"
	"walletlens/internal/receipt"
	"walletlens/internal/services"
)

// Services are the application components the API exposes. Notifications
// and Ready are optional.
type Services struct {
	Transactions  *services.TransactionService
	Budgets       *services.BudgetService
	Reminders     *services.ReminderService
	Evaluator     *services.BudgetEvaluator
	Aggregator    *services.Aggregator
	Dashboard     *services.Dashboard
	Receipts      receipt.Parser
	Notifications http.Handler
	Ready         func(ctx context.Context) error
}

// Options tunes the server
type Options struct {
	Logger            *log.Logger
	RateLimitRPM      int
	ReminderLookahead time.Duration
	AllowedOrigins    []string
	TrustedProxies    []string
	SummaryCacheTTL   time.Duration
	Now               func() time.Time
}

type Server struct {
	http.Server
	svc    Services
	logger *log.Logger

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	// Range summaries keyed by range; purged on every transaction change
	summaryCache *cache.LRUCache[core.Summary]
	caches       *cache.Manager

	lookahead time.Duration
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReminderLookahead <= 0 {
		opts.ReminderLookahead = 90 * 24 * time.Hour
	}
	if opts.SummaryCacheTTL <= 0 {
		opts.SummaryCacheTTL = 5 * time.Minute
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		svc:          svc,
		logger:       logger,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM, MutationsOnly: true}),
		tracer:       trace.NewMiddleware(logger, detector.ClientIP),
		detector:     detector,
		summaryCache: cache.NewLRUCache[core.Summary](100, opts.SummaryCacheTTL),
		caches:       cache.NewManager(),
		lookahead:    opts.ReminderLookahead,
		now:          opts.Now,
	}
	s.caches.Register(s.summaryCache)
	s.caches.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived; stays outside the request timeout
		if s.svc.Notifications != nil {
			r.Get("/ws/notifications", s.svc.Notifications.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", s.handleListTransactions)
				r.Post("/", s.handleCreateTransaction)
				r.Get("/{id}", s.handleGetTransaction)
				r.Put("/{id}", s.handleUpdateTransaction)
				r.Delete("/{id}", s.handleDeleteTransaction)
			})

			r.Get("/summary", s.handleSummary)
			r.Get("/overview", s.handleOverview)
			r.Get("/chart", s.handleChart)
			r.Get("/widget", s.handleWidget)

			r.Route("/budgets", func(r chi.Router) {
				r.Get("/", s.handleListBudgets)
				r.Post("/", s.handleCreateBudget)
				r.Get("/status", s.handleBudgetStatus)
				r.Get("/{id}", s.handleGetBudget)
				r.Put("/{id}", s.handleUpdateBudget)
				r.Post("/{id}/deactivate", s.handleDeactivateBudget)
			})

			r.Route("/reminders", func(r chi.Router) {
				r.Get("/", s.handleListReminders)
				r.Post("/", s.handleCreateReminder)
				r.Get("/upcoming", s.handleUpcomingReminders)
				r.Get("/{id}", s.handleGetReminder)
				r.Put("/{id}", s.handleUpdateReminder)
				r.Delete("/{id}", s.handleDeleteReminder)
				r.Post("/{id}/complete", s.handleCompleteReminder)
			})

			r.Post("/receipts/parse", s.handleParseReceipt)
		})
	})

	return r
}

// TransactionChanged drops cached range summaries
func (s *Server) TransactionChanged(context.Context, services.TransactionChange) error {
	s.summaryCache.Purge()
	return nil
}

// Shutdown gracefully shuts down the server and its cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		if err := s.caches.Wait(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// respondError logs unexpected failures and writes the mapped response
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, msg, op string, err error) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), msg, err, op, nil)
	}
	resp.Write(w)
}

// badInput answers a request whose parameters could not be parsed
func badInput(w http.ResponseWriter, err error) {
	if isValidationError(err) {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	BadRequestError(err.Error()).Write(w)
}
