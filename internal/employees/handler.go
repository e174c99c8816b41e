package employees

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/budgetdesk/budgetdesk/internal/platform/httpx"
)

// Handler exposes employee endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers employee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/employees/{ldap}/organization", h.organization)
	r.Patch("/employees/{ldap}", h.assignManager)
}

// managerRequest re-parents an employee. An empty manager detaches it from the tree.
type managerRequest struct {
	Manager *string `json:"manager" validate:"required"`
}

func (h *Handler) organization(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.GetOrganizationHierarchy(r.Context(), chi.URLParam(r, "ldap"))
	if err != nil {
		h.fail(w, "organization hierarchy", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) assignManager(w http.ResponseWriter, r *http.Request) {
	var req managerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ldap := chi.URLParam(r, "ldap")
	if err := h.service.AssignManager(r.Context(), ldap, strings.TrimSpace(*req.Manager)); err != nil {
		h.fail(w, "assign manager", err)
		return
	}
	emp, err := h.service.GetActive(r.Context(), ldap)
	if err != nil {
		h.fail(w, "assign manager", err)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
