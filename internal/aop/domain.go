package aop

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// State enumerates AOP lifecycle states.
type State string

const (
	StateDraft  State = "draft"
	StateActive State = "active"
	StateEOL    State = "eol"
)

// ParseState converts user input into a State.
func ParseState(v string) (State, error) {
	switch s := State(strings.ToLower(strings.TrimSpace(v))); s {
	case StateDraft, StateActive, StateEOL:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, v)
}

// AOP is an annual operating plan.
type AOP struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	State       State           `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Detail allocates part of an AOP to a cost center.
type Detail struct {
	ID           int64           `json:"id"`
	AOPID        int64           `json:"aop_id"`
	CostCenterID int64           `json:"cost_center_id"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ReconcileReport compares the AOP total with its active budgets.
type ReconcileReport struct {
	AOPID       int64           `json:"aop_id"`
	AOPAmount   decimal.Decimal `json:"aop_amount"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	Difference  decimal.Decimal `json:"difference"`
	IsCompliant bool            `json:"is_compliant"`
}

// NewReconcileReport derives difference and compliance from the two totals.
func NewReconcileReport(id int64, aopAmount, totalBudget decimal.Decimal) ReconcileReport {
	return ReconcileReport{
		AOPID:       id,
		AOPAmount:   aopAmount,
		TotalBudget: totalBudget,
		Difference:  aopAmount.Sub(totalBudget),
		IsCompliant: totalBudget.LessThanOrEqual(aopAmount),
	}
}

var (
	// ErrNotFound indicates the AOP does not exist.
	ErrNotFound = fmt.Errorf("AOP %w", shared.ErrNotFound)
	// ErrNoActive indicates no AOP is currently active.
	ErrNoActive = fmt.Errorf("active AOP %w", shared.ErrNotFound)
	// ErrAnotherActive blocks a second activation.
	ErrAnotherActive = fmt.Errorf("%w: another AOP is already active", shared.ErrConflict)
	// ErrBudgetsExceedTotal blocks activation while active budgets exceed the total.
	ErrBudgetsExceedTotal = fmt.Errorf("%w: total budgets exceed AOP amount", shared.ErrRuleViolation)
	// ErrActiveImmutable blocks detail changes on the active AOP.
	ErrActiveImmutable = fmt.Errorf("%w: cannot modify active AOP directly", shared.ErrConflict)
	// ErrInvalidState indicates an unknown state name.
	ErrInvalidState = fmt.Errorf("%w: invalid AOP state", shared.ErrMalformed)
	// ErrValidation indicates missing or negative input.
	ErrValidation = fmt.Errorf("AOP %w", shared.ErrMalformed)
)
