package http

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"risparmi/internal/core"
	applog "risparmi/internal/log"
	"risparmi/internal/metrics"
	"risparmi/internal/middleware/ratelimit"
	"risparmi/internal/middleware/security"
	"risparmi/internal/middleware/trace"
	"risparmi/internal/services"
	appweb "risparmi/web"
)

// PlanRunner runs the upload → adjust → CSV pipeline.
type PlanRunner interface {
	Run(ctx context.Context, filename string, r io.Reader, goal int, excluded string) (services.Result, error)
	Strategy() core.Strategy
}

// HistoryReader reads recorded plans.
type HistoryReader interface {
	Get(ctx context.Context, id string) (core.Plan, error)
	List(ctx context.Context, limit int) ([]core.Plan, error)
	Ping(ctx context.Context) error
}

// Options configures NewServer. Plans is required.
type Options struct {
	Plans   PlanRunner
	History HistoryReader
	Metrics *metrics.Registry
	Logger  *slog.Logger

	// Model is shown on the upload page; empty for the local strategy.
	Model          string
	RateLimitRPM   int
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	mux       *http.ServeMux

	plans          PlanRunner
	history        HistoryReader
	metrics        *metrics.Registry
	logger         *applog.Logger
	model          string
	maxUploadBytes int64
	started        time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:              mux,
		plans:            opts.Plans,
		history:          opts.History,
		metrics:          opts.Metrics,
		logger:           applog.FromSlog(logger, applog.ComponentHTTP),
		model:            opts.Model,
		maxUploadBytes:   opts.MaxUploadBytes,
		started:          time.Now(),
		securityDetector: security.NewDetector(),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("/calculate_expenses", security.NoStore(http.HandlerFunc(s.handleCalculate)))
	mux.HandleFunc("GET /plans", s.handleListPlans)
	mux.Handle("GET /plans/{id}/csv", security.NoStore(http.HandlerFunc(s.handlePlanCSV)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Outermost first: logger, trace, headers, rate limit, timeout.
	var observer trace.Observer
	if s.metrics != nil {
		observer = s.metrics
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, s.routeOf, observer)

	var handler http.Handler = mux
	handler = http.TimeoutHandler(handler, opts.RequestTimeout, `{"error":"request timed out"}`)
	if opts.RateLimitRPM > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM})
		handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(handler)
	}
	handler = s.withSuspiciousRequestLogging(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = applog.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// routeOf returns the matched route pattern, keeping metric labels bounded.
func (s *Server) routeOf(r *http.Request) string {
	if _, pattern := s.mux.Handler(r); pattern != "" {
		return pattern
	}
	return "unmatched"
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

func (s *Server) withSuspiciousRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
