package budgets

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/platform/httpx"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// Handler exposes budget endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers budget routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/budgets", h.list)
	r.Post("/budgets", h.create)
	r.Get("/budgets/{budgetID}", h.get)
	r.Patch("/budgets/{budgetID}", h.updateState)
	r.Get("/budgets/summary/{ldap}", h.summary)
}

type createRequest struct {
	AOPID        int64           `json:"aop_id" validate:"required,gt=0"`
	Amount       decimal.Decimal `json:"amount"`
	Project      string          `json:"project" validate:"required,max=100"`
	Description  string          `json:"description" validate:"max=255"`
	EmployeeLDAP string          `json:"employee_ldap" validate:"required,max=50"`
}

type stateRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("aop")
	aopID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || aopID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: query parameter aop must be a positive integer", shared.ErrMalformed))
		return
	}
	items, err := h.service.ListBudgets(r.Context(), aopID)
	if err != nil {
		h.fail(w, "list budgets", err)
		return
	}
	if items == nil {
		items = []Budget{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.CreateBudget(r.Context(), CreateInput{
		AOPID:        req.AOPID,
		Amount:       req.Amount,
		Project:      req.Project,
		Description:  req.Description,
		EmployeeLDAP: req.EmployeeLDAP,
	})
	if err != nil {
		h.fail(w, "create budget", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBudget(r.Context(), chi.URLParam(r, "budgetID"))
	if err != nil {
		h.fail(w, "get budget", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) updateState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	b, err := h.service.UpdateBudgetState(r.Context(), chi.URLParam(r, "budgetID"), *req.Active)
	if err != nil {
		h.fail(w, "update budget state", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetOrganizationBudgetSummary(r.Context(), chi.URLParam(r, "ldap"))
	if err != nil {
		h.fail(w, "budget summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
