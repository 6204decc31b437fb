// Package http serves the ledger dashboard, record intake and the
// import/export endpoints.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
	appweb "ledger/web"
)

const defaultMaxUpload = 10 << 20

type Config struct {
	Addr   string
	Logger *log.Logger
	// Ready reports whether the backing store is reachable. Nil means always ready.
	Ready          func(ctx context.Context) error
	RateLimit      ratelimit.Config
	MaxUploadBytes int64
}

type Server struct {
	http.Server
	ledger    *services.LedgerService
	templates *template.Template
	ready     func(ctx context.Context) error
	logger    *log.Logger
	events    *log.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	now       func() time.Time
	started   time.Time
	maxUpload int64

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(cfg Config, ledger *services.LedgerService) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	detector := security.NewDetector()
	s := &Server{
		ledger:    ledger,
		templates: t,
		ready:     cfg.Ready,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		detector:  detector,
		tracer:    trace.NewMiddleware(logger, detector.ClientIP),
		now:       time.Now,
		started:   time.Now(),
		maxUpload: maxUpload,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/panel", s.handlePanel)
	mux.HandleFunc("GET /records", s.handleListRecords)
	mux.HandleFunc("POST /records", s.handleCreateRecord)
	mux.Handle("GET /export", security.NoStore(http.HandlerFunc(s.handleExport)))
	mux.Handle("GET /export.xlsx", security.NoStore(http.HandlerFunc(s.handleExportXLSX)))
	mux.HandleFunc("POST /import", s.handleImport)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.Handle("GET /chart.png", security.NoStore(http.HandlerFunc(s.handleChart)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssets(3600)(static))

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ClientIP, http.MethodPost)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = detector.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
