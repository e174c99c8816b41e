package employees

import (
	"fmt"
	"strings"
	"time"

	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// Level bounds for employees.
const (
	MinLevel = 1
	MaxLevel = 12
)

// MaxHierarchyDepth bounds every walk over the manager tree.
const MaxHierarchyDepth = 64

// Employee is a member of the organization tree. ManagerID is zero for roots.
type Employee struct {
	ID           int64     `json:"id"`
	LDAP         string    `json:"ldap"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Level        int       `json:"level"`
	CostCenterID int64     `json:"cost_center_id"`
	ManagerID    int64     `json:"manager_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName joins first and last name.
func (e Employee) DisplayName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// HasManager reports whether the employee reports to someone.
func (e Employee) HasManager() bool {
	return e.ManagerID != 0
}

// OrgNode is one node of a rendered organization tree.
type OrgNode struct {
	LDAP    string     `json:"ldap"`
	Name    string     `json:"name"`
	Level   int        `json:"level"`
	Reports []*OrgNode `json:"reports"`
}

// Size counts the nodes in the subtree rooted at n.
func (n *OrgNode) Size() int {
	if n == nil {
		return 0
	}
	count := 0
	stack := []*OrgNode{n}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, top.Reports...)
	}
	return count
}

// CreateInput describes a new or returning employee.
type CreateInput struct {
	LDAP           string
	FirstName      string
	LastName       string
	Email          string
	Level          int
	CostCenterCode string
	ManagerLDAP    string
}

// ValidLevel reports whether level is within MinLevel..MaxLevel.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

var (
	// ErrNotFound indicates no active employee carries the identifier.
	ErrNotFound = fmt.Errorf("employee %w", shared.ErrNotFound)
	// ErrManagerNotFound indicates the requested manager is unknown or inactive.
	ErrManagerNotFound = fmt.Errorf("manager %w", shared.ErrNotFound)
	// ErrDuplicate indicates an active employee already uses the identifier.
	ErrDuplicate = fmt.Errorf("%w: employee already exists", shared.ErrConflict)
	// ErrCycle indicates a manager assignment would make an employee its own manager.
	ErrCycle = fmt.Errorf("%w: manager assignment would create a reporting cycle", shared.ErrConflict)
	// ErrLevelOutOfRange indicates a level outside 1..12.
	ErrLevelOutOfRange = fmt.Errorf("%w: level must be between %d and %d", shared.ErrRuleViolation, MinLevel, MaxLevel)
	// ErrHasActiveBudgets blocks removal while the employee owns spend under the active AOP.
	ErrHasActiveBudgets = fmt.Errorf("%w: cannot remove employee with active budgets", shared.ErrRuleViolation)
	// ErrHierarchyTooDeep indicates the tree exceeds MaxHierarchyDepth.
	ErrHierarchyTooDeep = fmt.Errorf("%w: organization hierarchy deeper than %d levels", shared.ErrRuleViolation, MaxHierarchyDepth)
	// ErrValidation indicates a required field is missing.
	ErrValidation = fmt.Errorf("employee %w", shared.ErrMalformed)
)
