// @title Atelier API
// @version 1.0.0
// @description Creative production platform
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name atelier_session

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/billing"
	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/observability/logger"
	"github.com/atelierhq/atelier/internal/organization"
	"github.com/atelierhq/atelier/internal/project"
	"github.com/atelierhq/atelier/internal/revision"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 1 << 20

// Authenticator resolves a request credential into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*identity.Identity, error)
}

// ProjectService is the project lifecycle surface exposed over HTTP.
type ProjectService interface {
	Create(ctx context.Context, actor *identity.Identity, in project.CreateInput) (*project.Project, error)
	AdminSetStatus(ctx context.Context, actor *identity.Identity, projectID string, target project.Status) (*project.Project, error)
	Approve(ctx context.Context, actor *identity.Identity, projectID string) (*project.Project, error)
	Get(ctx context.Context, actor *identity.Identity, projectID string) (*project.Project, error)
	List(ctx context.Context, actor *identity.Identity, filter project.ListFilter) ([]*project.Project, error)
	AddComment(ctx context.Context, actor *identity.Identity, projectID, content string) (*project.Comment, error)
}

// RevisionService handles client revision requests.
type RevisionService interface {
	RequestRevision(ctx context.Context, actor *identity.Identity, req revision.Request) (*project.Project, *project.Comment, error)
}

// OrganizationService is the organization administration surface.
type OrganizationService interface {
	Create(ctx context.Context, actor *identity.Identity, name string, plan organization.Plan) (*organization.Organization, error)
	Get(ctx context.Context, actor *identity.Identity, id string) (*organization.Organization, error)
	UpdateBilling(ctx context.Context, actor *identity.Identity, id string, u organization.BillingUpdate) (*organization.Organization, error)
	AddMember(ctx context.Context, actor *identity.Identity, orgID, userID string) (*organization.Member, error)
}

// BillingSync applies payment provider events.
type BillingSync interface {
	HandleEvent(ctx context.Context, ev billing.Event) (billing.SyncResult, error)
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	auth          Authenticator
	projects      ProjectService
	revisions     RevisionService
	organizations OrganizationService
	billing       BillingSync
	auditLogger   audit.Logger
	config        Config
}

// Config holds transport configuration
type Config struct {
	SessionCookieName string
	WebhookSecret     string
	WebhookHeader     string
	RequestTimeout    time.Duration
}

// Services groups the core services the handlers call.
type Services struct {
	Auth          Authenticator
	Projects      ProjectService
	Revisions     RevisionService
	Organizations OrganizationService
	Billing       BillingSync
	AuditLogger   audit.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, cfg Config) *Handler {
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "atelier_session"
	}
	if cfg.WebhookHeader == "" {
		cfg.WebhookHeader = "X-Webhook-Token"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if svc.AuditLogger == nil {
		svc.AuditLogger = audit.NewSlogLogger()
	}
	return &Handler{
		auth:          svc.Auth,
		projects:      svc.Projects,
		revisions:     svc.Revisions,
		organizations: svc.Organizations,
		billing:       svc.Billing,
		auditLogger:   svc.AuditLogger,
		config:        cfg,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.config.RequestTimeout))

	r.Get("/health", h.HealthCheck)

	// Provider callbacks authenticate with the shared webhook secret, not a
	// user identity, and are not rate limited: redeliveries must get through.
	r.Post("/webhooks/payments", h.PaymentWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(rateLimiter))
		r.Use(h.AuthMiddleware)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.CreateProject)
			r.Get("/", h.ListProjects)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.GetProject)
				r.Post("/status", h.SetProjectStatus)
				r.Post("/approve", h.ApproveProject)
				r.Post("/revisions", h.RequestRevision)
				r.Post("/comments", h.AddComment)
			})
		})

		r.Route("/organizations", func(r chi.Router) {
			r.Post("/", h.CreateOrganization)
			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", h.GetOrganization)
				r.Put("/billing", h.UpdateOrganizationBilling)
				r.Post("/members", h.AddOrganizationMember)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "atelier",
	})
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondAppError maps an error kind to its status code. Messages of
// unclassified errors never reach the client.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			logger.Error(err),
			logger.ErrorKind(string(kind)),
			logger.Path(r.URL.Path),
		)
	} else if kind == apperr.KindForbidden {
		slog.WarnContext(r.Context(), "request forbidden",
			logger.Path(r.URL.Path),
			logger.UserID(GetUserID(r.Context())),
		)
	}

	respondJSON(w, status, map[string]string{
		"error": apperr.Message(err),
		"code":  string(kind),
	})
}

func getIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
