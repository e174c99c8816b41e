package costcenters

import (
	"fmt"
	"strings"
	"time"

	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// CostCenter groups employees and AOP allocations. Cost centers are never deleted.
type CostCenter struct {
	ID        int64
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrNotFound indicates the cost center code or ID is unknown.
	ErrNotFound = fmt.Errorf("cost center %w", shared.ErrNotFound)
	// ErrDuplicate indicates the code is already taken.
	ErrDuplicate = fmt.Errorf("cost center code %w", shared.ErrConflict)
	// ErrValidation indicates missing code or name.
	ErrValidation = fmt.Errorf("cost center %w", shared.ErrMalformed)
)

// NormalizeCode returns the canonical stored form of a cost center code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
