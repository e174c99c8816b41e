package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	"github.com/budgetdesk/budgetdesk/internal/budgets"
	"github.com/budgetdesk/budgetdesk/internal/chat"
	"github.com/budgetdesk/budgetdesk/internal/employees"
	"github.com/budgetdesk/budgetdesk/internal/observability"
	"github.com/budgetdesk/budgetdesk/internal/platform/httpx"
	"github.com/budgetdesk/budgetdesk/internal/procurement"
	"github.com/budgetdesk/budgetdesk/internal/shared"
	"github.com/budgetdesk/budgetdesk/jobs"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	ChatHandler        *chat.Handler
	AOPHandler         *aop.Handler
	BudgetHandler      *budgets.Handler
	EmployeeHandler    *employees.Handler
	ProcurementHandler *procurement.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	// Readiness lists the stores checked by /readyz, keyed by name.
	Readiness map[string]Pinger
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(params.Logger, params.Readiness))

	if params.SessionManager != nil {
		if params.ChatHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(shared.SessionMiddleware(params.SessionManager, params.Logger))
				params.ChatHandler.MountRoutes(r)
			})
		}
		// The JSON API shares the chat session; it opens once the passphrase is accepted.
		r.Group(func(r chi.Router) {
			r.Use(shared.SessionMiddleware(params.SessionManager, params.Logger))
			r.Use(requireAuthenticated(params.Logger))
			if params.AOPHandler != nil {
				params.AOPHandler.MountRoutes(r)
			}
			if params.BudgetHandler != nil {
				params.BudgetHandler.MountRoutes(r)
			}
			if params.EmployeeHandler != nil {
				params.EmployeeHandler.MountRoutes(r)
			}
			if params.ProcurementHandler != nil {
				params.ProcurementHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				params.JobHandler.MountRoutes(r)
			}
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

func readiness(logger *slog.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		out := make(map[string]string, len(checks))
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", slog.String("check", name), slog.Any("error", err))
				out[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			out[name] = "ok"
		}
		httpx.JSON(w, status, out)
	}
}
