package aop

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

// Handler exposes AOP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers AOP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/aop", h.list)
	r.Get("/aop/active", h.active)
	r.Post("/aop", h.create)
	r.Get("/aop/{id}", h.get)
	r.Patch("/aop/{id}", h.updateState)
	r.Get("/aop/{id}/details", h.listDetails)
	r.Post("/aop/{id}/details", h.addDetail)
	r.Get("/aop/{id}/reconcile", h.reconcile)
}

type createRequest struct {
	Name   string          `json:"name" validate:"required,max=100"`
	Amount decimal.Decimal `json:"amount"`
}

type stateRequest struct {
	State string `json:"state" validate:"required,oneof=draft active eol"`
}

type detailRequest struct {
	CostCenterID int64           `json:"cost_center_id" validate:"required,gt=0"`
	Amount       decimal.Decimal `json:"amount"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAOPs(r.Context())
	if err != nil {
		h.fail(w, "list aops", err)
		return
	}
	if items == nil {
		items = []AOP{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.GetActiveAOP(r.Context())
	if err != nil {
		h.fail(w, "get active aop", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.CreateAOP(r.Context(), req.Name, req.Amount)
	if err != nil {
		h.fail(w, "create aop", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, plan)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.GetAOP(r.Context(), id)
	if err != nil {
		h.fail(w, "get aop", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) updateState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req stateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	plan, err := h.service.UpdateAOPState(r.Context(), id, State(req.State))
	if err != nil {
		h.fail(w, "update aop state", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) listDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	details, err := h.service.ListDetails(r.Context(), id)
	if err != nil {
		h.fail(w, "list aop details", err)
		return
	}
	if details == nil {
		details = []Detail{}
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) addDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req detailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, plan, err := h.service.AddAOPDetail(r.Context(), id, req.CostCenterID, req.Amount)
	if err != nil {
		h.fail(w, "add aop detail", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"detail": detail, "aop": plan})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.ReconcileAOP(r.Context(), id)
	if err != nil {
		h.fail(w, "reconcile aop", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid AOP id %q", shared.ErrMalformed, raw)
	}
	return id, nil
}
