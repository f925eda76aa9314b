// Package server renders the CropCure pages and the JSON endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/cors"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"cropcure/internal/cache"
	"cropcure/internal/config"
	"cropcure/internal/diagnosis"
	"cropcure/internal/embeds"
	"cropcure/internal/health"
	"cropcure/internal/logging"
	"cropcure/internal/metrics"
	"cropcure/internal/version"
	"cropcure/internal/workflow"
)

const sessionName = "cropcure-session"

// Backend is the classification service as the pages use it
type Backend interface {
	workflow.Classifier
	workflow.ContactSubmitter
	health.Prober
}

// Server represents the HTTP server
type Server struct {
	config       *config.Config
	templates    map[string]*template.Template
	sessionStore *sessions.CookieStore
	metrics      *metrics.Metrics
	monitor      *health.Monitor
	versionInfo  version.Info

	backend        Backend
	classification *workflow.Classification
	contact        *workflow.Contact

	visits   *cache.Cache[*visit]
	analyses singleflight.Group
	limiter  *rate.Limiter

	httpServer *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records page and backend metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMonitor shows the backend health reported by mon
func WithMonitor(mon *health.Monitor) Option {
	return func(s *Server) { s.monitor = mon }
}

// New creates a new server instance
func New(cfg *config.Config, backend Backend, opts ...Option) (*Server, error) {
	authKey, encKey, err := sessionKeys(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive session keys: %w", err)
	}

	s := &Server{
		config:       cfg,
		templates:    make(map[string]*template.Template),
		sessionStore: sessions.NewCookieStore(authKey, encKey),
		versionInfo:  version.Get(),
		backend:      backend,
		visits:       cache.New[*visit](cfg.VisitTTL, time.Minute),
		limiter:      rate.NewLimiter(contactLimit(cfg.ContactRate), cfg.ContactBurst),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.VisitTTL.Seconds()),
		HttpOnly: true,
		Secure:   false, // the client is usually served over plain HTTP on a LAN
		SameSite: http.SameSiteLaxMode,
	}

	s.classification = workflow.NewClassification(backend, s.metrics)
	s.contact = workflow.NewContact(backend, s.metrics)

	if err := s.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	handler, err := s.Handler()
	if err != nil {
		return nil, err
	}
	addr := cfg.ListenAddr
	if addr == "" {
		addr = config.DefaultListenAddr
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler builds the route table
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	staticFS, err := embeds.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /about", s.handleAbout)
	mux.HandleFunc("GET /contact", s.handleContact)
	mux.HandleFunc("POST /contact", s.handleContactSubmit)

	mux.HandleFunc("GET /classify", s.handleClassify)
	mux.HandleFunc("POST /classify/select", s.handleSelect)
	mux.HandleFunc("POST /classify/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /classify/reset", s.handleReset)
	mux.HandleFunc("GET /classify/image", s.handleSelectedImage)

	// Script clients call these cross-origin
	api := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	mux.Handle("GET /api/health", api.Handler(http.HandlerFunc(s.handleAPIHealth)))
	mux.Handle("POST /api/diagnose", api.Handler(http.HandlerFunc(s.handleAPIDiagnose)))
	mux.Handle("OPTIONS /api/", api.Handler(http.NotFoundHandler()))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return recoverMiddleware(requestLogger(mux)), nil
}

// Start listens on the configured address until Shutdown is called
func (s *Server) Start() error {
	logging.Infof("Starting server on %s (backend %s)", s.httpServer.Addr, s.config.APIURL)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// contactLimit treats a non-positive rate as unlimited
func contactLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

func (s *Server) healthStatus() health.Status {
	if s.monitor == nil {
		return health.Status{}
	}
	return s.monitor.Status()
}

func (s *Server) diseases() []diagnosis.Presentation {
	cat := diagnosis.DefaultCatalog()
	out := make([]diagnosis.Presentation, 0, len(diagnosis.Known))
	for _, d := range diagnosis.Known {
		out = append(out, cat.Lookup(d))
	}
	return out
}
