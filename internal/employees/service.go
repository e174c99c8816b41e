package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/budgetdesk/budgetdesk/internal/costcenters"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByLDAP(ctx context.Context, ldap string) (Employee, error)
	ListActiveReports(ctx context.Context, managerIDs []int64) ([]Employee, error)
}

// CostCenterPort resolves cost center codes.
type CostCenterPort interface {
	GetByCode(ctx context.Context, code string) (costcenters.CostCenter, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service enforces employee lifecycle and hierarchy rules.
type Service struct {
	repo        RepositoryPort
	costCenters CostCenterPort
	audit       AuditPort
}

// NewService constructs the employee service. audit may be nil.
func NewService(repo RepositoryPort, costCenters CostCenterPort, audit AuditPort) *Service {
	return &Service{repo: repo, costCenters: costCenters, audit: audit}
}

// CreateEmployee inserts a new employee or reactivates a removed one in place. A
// reactivation refreshes name, email and level but keeps cost center and manager.
func (s *Service) CreateEmployee(ctx context.Context, input CreateInput) (Employee, error) {
	input.LDAP = normalizeLDAP(input.LDAP)
	input.ManagerLDAP = normalizeLDAP(input.ManagerLDAP)
	if input.LDAP == "" || strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" || strings.TrimSpace(input.Email) == "" {
		return Employee{}, fmt.Errorf("%w: ldap, first name, last name and email are required", ErrValidation)
	}
	if !ValidLevel(input.Level) {
		return Employee{}, ErrLevelOutOfRange
	}

	var result Employee
	reactivated := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetByLDAPForUpdate(ctx, input.LDAP)
		switch {
		case err == nil && existing.IsActive:
			return fmt.Errorf("%w: %s", ErrDuplicate, input.LDAP)
		case err == nil:
			if err := tx.Reactivate(ctx, existing.ID, input.FirstName, input.LastName, input.Email, input.Level); err != nil {
				return err
			}
			existing.FirstName, existing.LastName = input.FirstName, input.LastName
			existing.Email, existing.Level = input.Email, input.Level
			existing.IsActive = true
			result = existing
			reactivated = true
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}

		cc, err := s.costCenters.GetByCode(ctx, input.CostCenterCode)
		if err != nil {
			return err
		}
		emp := Employee{
			LDAP:         input.LDAP,
			FirstName:    input.FirstName,
			LastName:     input.LastName,
			Email:        input.Email,
			Level:        input.Level,
			CostCenterID: cc.ID,
			IsActive:     true,
		}
		if input.ManagerLDAP != "" {
			manager, err := tx.GetByLDAPForUpdate(ctx, input.ManagerLDAP)
			if err != nil || !manager.IsActive {
				if err != nil && !errors.Is(err, ErrNotFound) {
					return err
				}
				return fmt.Errorf("%w: %s", ErrManagerNotFound, input.ManagerLDAP)
			}
			emp.ManagerID = manager.ID
		}
		id, err := tx.Insert(ctx, emp)
		if err != nil {
			return err
		}
		emp.ID = id
		result = emp
		return nil
	})
	if err != nil {
		return Employee{}, err
	}
	action := "EMPLOYEE_CREATE"
	if reactivated {
		action = "EMPLOYEE_REACTIVATE"
	}
	s.recordAudit(ctx, action, result.LDAP, map[string]any{"level": result.Level})
	return result, nil
}

// RemoveEmployee soft-deletes an active employee. Reports and historical budgets are
// left untouched.
func (s *Service) RemoveEmployee(ctx context.Context, ldap string) error {
	ldap = normalizeLDAP(ldap)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		emp, err := tx.GetByLDAPForUpdate(ctx, ldap)
		if err != nil || !emp.IsActive {
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: active employee with LDAP %s not found", shared.ErrNotFound, ldap)
		}
		busy, err := tx.HasActiveBudgetInActiveAOP(ctx, emp.ID)
		if err != nil {
			return err
		}
		if busy {
			return ErrHasActiveBudgets
		}
		return tx.Deactivate(ctx, emp.ID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "EMPLOYEE_REMOVE", ldap, nil)
	return nil
}

// AssignManager re-parents an employee. The new manager must be active and must not be
// the employee or one of its descendants.
func (s *Service) AssignManager(ctx context.Context, ldap, managerLDAP string) error {
	ldap = normalizeLDAP(ldap)
	managerLDAP = normalizeLDAP(managerLDAP)
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		emp, err := tx.GetByLDAPForUpdate(ctx, ldap)
		if err != nil {
			return err
		}
		if !emp.IsActive {
			return fmt.Errorf("%w: %s", ErrNotFound, ldap)
		}
		if managerLDAP == "" {
			return tx.SetManager(ctx, emp.ID, 0)
		}
		manager, err := tx.GetByLDAPForUpdate(ctx, managerLDAP)
		if err != nil || !manager.IsActive {
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: %s", ErrManagerNotFound, managerLDAP)
		}
		if err := ensureNotAncestor(ctx, tx, emp.ID, manager); err != nil {
			return err
		}
		return tx.SetManager(ctx, emp.ID, manager.ID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "EMPLOYEE_ASSIGN_MANAGER", ldap, map[string]any{"manager": managerLDAP})
	return nil
}

// GetActive resolves an active employee by LDAP identifier.
func (s *Service) GetActive(ctx context.Context, ldap string) (Employee, error) {
	ldap = normalizeLDAP(ldap)
	emp, err := s.repo.GetByLDAP(ctx, ldap)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Employee{}, fmt.Errorf("%w: %s", ErrNotFound, ldap)
		}
		return Employee{}, err
	}
	if !emp.IsActive {
		return Employee{}, fmt.Errorf("%w: %s", ErrNotFound, ldap)
	}
	return emp, nil
}

// GetOrganizationHierarchy renders the active subtree rooted at ldap.
func (s *Service) GetOrganizationHierarchy(ctx context.Context, ldap string) (*OrgNode, error) {
	root, err := s.GetActive(ctx, ldap)
	if err != nil {
		return nil, err
	}
	tree, _, err := s.walk(ctx, root)
	return tree, err
}

// GetAllReports returns every active direct and indirect report in depth-first order.
func (s *Service) GetAllReports(ctx context.Context, ldap string) ([]Employee, error) {
	root, err := s.GetActive(ctx, ldap)
	if err != nil {
		return nil, err
	}
	_, reports, err := s.walk(ctx, root)
	return reports, err
}

// ValidateEmployeeInOrg reports whether employeeLDAP is an active report, direct or
// indirect, of managerLDAP.
func (s *Service) ValidateEmployeeInOrg(ctx context.Context, managerLDAP, employeeLDAP string) (bool, error) {
	reports, err := s.GetAllReports(ctx, managerLDAP)
	if err != nil {
		return false, err
	}
	employeeLDAP = normalizeLDAP(employeeLDAP)
	for _, r := range reports {
		if r.LDAP == employeeLDAP {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, ldap string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: action, Entity: "employee", EntityID: ldap, Meta: meta})
}

func normalizeLDAP(ldap string) string {
	return strings.ToLower(strings.TrimSpace(ldap))
}
