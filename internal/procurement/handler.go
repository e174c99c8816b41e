package procurement

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/platform/httpx"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/procurement", func(r chi.Router) {
		r.Post("/purchase-requests", h.createPR)
		r.Post("/purchase-orders", h.createPO)
		r.Post("/receipts", h.createReceipt)
		r.Get("/budgets/{budgetID}", h.ledger)
	})
}

type prRequest struct {
	BudgetID      string          `json:"budget_id" validate:"required,max=50"`
	RequestorLDAP string          `json:"requestor_ldap" validate:"required,max=50"`
	Amount        decimal.Decimal `json:"amount"`
	RequestDate   time.Time       `json:"request_date"`
	Reference     string          `json:"reference" validate:"max=50"`
}

type poRequest struct {
	BudgetID      string          `json:"budget_id" validate:"required,max=50"`
	RequestorLDAP string          `json:"requestor_ldap" validate:"required,max=50"`
	PONumber      string          `json:"po_number" validate:"required,max=50"`
	LineNumber    int             `json:"po_line_number" validate:"required,gt=0"`
	PurchaseItem  string          `json:"purchase_item" validate:"required,max=255"`
	Amount        decimal.Decimal `json:"amount"`
	OrderDate     time.Time       `json:"order_date"`
}

type receiptRequest struct {
	PONumber    string    `json:"po_number" validate:"required,max=50"`
	LineNumber  int       `json:"po_line_number" validate:"required,gt=0"`
	ReceiptDate time.Time `json:"receipt_date"`
}

func (h *Handler) createPR(w http.ResponseWriter, r *http.Request) {
	var req prRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	pr, totals, err := h.service.RecordPurchaseRequest(r.Context(), PRInput{
		BudgetID:      req.BudgetID,
		RequestorLDAP: req.RequestorLDAP,
		Amount:        req.Amount,
		RequestDate:   req.RequestDate,
		Reference:     req.Reference,
	})
	if err != nil {
		h.fail(w, "record purchase request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"purchase_request": pr, "budget": totals})
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var req poRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, totals, err := h.service.RecordPurchaseOrder(r.Context(), POInput{
		BudgetID:      req.BudgetID,
		RequestorLDAP: req.RequestorLDAP,
		PONumber:      req.PONumber,
		LineNumber:    req.LineNumber,
		PurchaseItem:  req.PurchaseItem,
		Amount:        req.Amount,
		OrderDate:     req.OrderDate,
	})
	if err != nil {
		h.fail(w, "record purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"purchase_order": po, "budget": totals})
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rc, totals, err := h.service.RecordReceipt(r.Context(), ReceiptInput{
		PONumber:    req.PONumber,
		LineNumber:  req.LineNumber,
		ReceiptDate: req.ReceiptDate,
	})
	if err != nil {
		h.fail(w, "record receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"receipt": rc, "budget": totals})
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.service.GetLedger(r.Context(), chi.URLParam(r, "budgetID"))
	if err != nil {
		h.fail(w, "procurement ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
