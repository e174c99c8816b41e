package procurement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// PurchaseRequest records a request for spend against a budget.
type PurchaseRequest struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	BudgetID      string          `json:"budget_id"`
	RequestorLDAP string          `json:"requestor_ldap"`
	Amount        decimal.Decimal `json:"amount"`
	RequestDate   time.Time       `json:"request_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PurchaseOrder is one line of an order, identified by number and line.
type PurchaseOrder struct {
	ID            int64           `json:"id"`
	PONumber      string          `json:"po_number"`
	LineNumber    int             `json:"po_line_number"`
	BudgetID      string          `json:"budget_id"`
	RequestorLDAP string          `json:"requestor_ldap"`
	PurchaseItem  string          `json:"purchase_item"`
	Amount        decimal.Decimal `json:"amount"`
	OrderDate     time.Time       `json:"order_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Receipt records delivery against a purchase order line.
type Receipt struct {
	ID           int64     `json:"id"`
	PONumber     string    `json:"po_number"`
	LineNumber   int       `json:"po_line_number"`
	PurchaseItem string    `json:"purchase_item"`
	ReceiptDate  time.Time `json:"receipt_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// BudgetRef is the slice of a budget row procurement needs.
type BudgetRef struct {
	BudgetID string
	IsActive bool
}

// BudgetTotals holds the running totals of a budget after an update.
type BudgetTotals struct {
	BudgetID      string          `json:"budget_id"`
	Amount        decimal.Decimal `json:"amount"`
	PRAmount      decimal.Decimal `json:"pr_amount"`
	POAmount      decimal.Decimal `json:"po_amount"`
	ReceiptAmount decimal.Decimal `json:"receipt_amount"`
}

// Ledger lists procurement activity of one budget.
type Ledger struct {
	Totals   BudgetTotals      `json:"totals"`
	Requests []PurchaseRequest `json:"purchase_requests"`
	Orders   []PurchaseOrder   `json:"purchase_orders"`
}

var (
	// ErrBudgetNotFound indicates the referenced budget does not exist.
	ErrBudgetNotFound = fmt.Errorf("budget %w", shared.ErrNotFound)
	// ErrBudgetInactive blocks spend against a deactivated budget.
	ErrBudgetInactive = fmt.Errorf("%w: budget is inactive", shared.ErrRuleViolation)
	// ErrLineNotFound indicates no purchase order line matches.
	ErrLineNotFound = fmt.Errorf("purchase order line %w", shared.ErrNotFound)
	// ErrDuplicateLine indicates the order number and line are taken.
	ErrDuplicateLine = fmt.Errorf("%w: purchase order line already exists", shared.ErrConflict)
	// ErrDuplicateReference indicates the purchase request reference is taken.
	ErrDuplicateReference = fmt.Errorf("%w: purchase request reference already exists", shared.ErrConflict)
	// ErrValidation indicates missing or non-positive input.
	ErrValidation = fmt.Errorf("procurement %w", shared.ErrMalformed)
)
