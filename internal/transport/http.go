package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/clmcore/internal/diff"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
)

// ContractService defines the contract operations exposed over REST.
type ContractService interface {
	Create(ctx context.Context, tenantID string, req contract.CreateRequest) (*contract.Contract, error)
	Get(ctx context.Context, tenantID, id string) (*contract.Contract, error)
	Transition(ctx context.Context, tenantID string, req contract.TransitionRequest) (*contract.Result, error)
	CreateVersion(ctx context.Context, tenantID string, req contract.CreateVersionRequest) (*contract.Result, error)
	UpdateDraftVersion(ctx context.Context, tenantID string, req contract.UpdateDraftRequest) (*contract.Result, error)
	AdvanceSigning(ctx context.Context, tenantID, contractID, actorID string) (*contract.Result, error)
	AddRenewalFeedback(ctx context.Context, tenantID string, req contract.FeedbackRequest) (*contract.Result, error)
	LifetimeValue(ctx context.Context, tenantID, id string) (*contract.LifetimeValue, error)
	DiffVersions(ctx context.Context, tenantID, id string, from, to int) ([]diff.Edit, error)
}

// ActivityService defines the audit trail queries exposed over REST.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Config wires the REST server.
type Config struct {
	Contracts ContractService
	Activity  ActivityService
	// Auth resolves the tenant of each /contracts request. Nil leaves the
	// tenant unset and every request is rejected.
	Auth func(http.Handler) http.Handler
	// MCP, when set, is mounted at /mcp outside the REST auth chain.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server holds the REST handlers.
type Server struct {
	contracts ContractService
	activity  ActivityService
	logger    *slog.Logger
}

// NewServer creates an HTTP router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{contracts: cfg.Contracts, activity: cfg.Activity, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(srv.requestLogger)

	r.Get("/health", srv.handleHealth)
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.Use(actorMiddleware)

		r.Post("/diff", srv.handleDiffText)
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", srv.handleCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.handleGet)
				r.Post("/transitions", srv.handleTransition)
				r.Post("/versions", srv.handleCreateVersion)
				r.Get("/versions/diff", srv.handleDiffVersions)
				r.Put("/versions/{versionID}", srv.handleUpdateDraft)
				r.Post("/signing", srv.handleAdvanceSigning)
				r.Post("/renewal/feedback", srv.handleRenewalFeedback)
				r.Get("/lifetime-value", srv.handleLifetimeValue)
				r.Get("/activity", srv.handleActivity)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// fail writes err as a JSON error response. Internal errors are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, code, message)
}
