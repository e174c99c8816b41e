package budgets

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// IDPrefix starts every generated budget identifier.
const IDPrefix = "BUD"

// Budget is an employee's spending allocation under one AOP. PR, PO and receipt amounts
// are running totals maintained by procurement.
type Budget struct {
	ID            int64           `json:"-"`
	BudgetID      string          `json:"budget_id"`
	AOPID         int64           `json:"aop_id"`
	EmployeeID    int64           `json:"-"`
	EmployeeLDAP  string          `json:"employee_ldap"`
	Project       string          `json:"project"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PRAmount      decimal.Decimal `json:"pr_amount"`
	POAmount      decimal.Decimal `json:"po_amount"`
	ReceiptAmount decimal.Decimal `json:"receipt_amount"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateInput describes a new budget.
type CreateInput struct {
	AOPID        int64
	Amount       decimal.Decimal
	Project      string
	Description  string
	EmployeeLDAP string
}

// EmployeeTotal is one line of a per-employee breakdown.
type EmployeeTotal struct {
	LDAP   string          `json:"ldap"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary aggregates active budgets across an organization.
type Summary struct {
	Total      decimal.Decimal `json:"total"`
	ByEmployee []EmployeeTotal `json:"by_employee"`
}

// ChartData is a bar-chart series of active budget amounts per employee.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset is one named series of ChartData.
type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// NewBudgetID generates an identifier of the form BUD1A2B3C4D.
func NewBudgetID() string {
	id := uuid.New()
	return IDPrefix + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// NormalizeBudgetID returns the stored form of a user-supplied budget identifier.
func NormalizeBudgetID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

var (
	// ErrNotFound indicates the budget identifier is unknown.
	ErrNotFound = fmt.Errorf("budget %w", shared.ErrNotFound)
	// ErrValidation indicates missing or negative input.
	ErrValidation = fmt.Errorf("budget %w", shared.ErrMalformed)
	// ErrDuplicateID indicates a generated identifier collided with an existing one.
	ErrDuplicateID = fmt.Errorf("budget identifier %w", shared.ErrConflict)
)
