package budgets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	"github.com/budgetdesk/budgetdesk/internal/employees"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

const maxIDAttempts = 5

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, budgetID string) (Budget, error)
	ListByAOP(ctx context.Context, aopID int64) ([]Budget, error)
	SumActiveByEmployees(ctx context.Context, employeeIDs []int64) ([]EmployeeAmount, error)
	SumActiveByEmployeeForAOP(ctx context.Context, aopID int64) ([]EmployeeAmount, error)
}

// AOPPort resolves plans.
type AOPPort interface {
	GetAOP(ctx context.Context, id int64) (aop.AOP, error)
}

// EmployeePort resolves employees and their organizations.
type EmployeePort interface {
	GetActive(ctx context.Context, ldap string) (employees.Employee, error)
	GetAllReports(ctx context.Context, ldap string) ([]employees.Employee, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages budgets and their aggregations.
type Service struct {
	repo      RepositoryPort
	plans     AOPPort
	employees EmployeePort
	audit     AuditPort
	newID     func() string
}

// NewService constructs the budget service. audit may be nil.
func NewService(repo RepositoryPort, plans AOPPort, emps EmployeePort, audit AuditPort) *Service {
	return &Service{repo: repo, plans: plans, employees: emps, audit: audit, newID: NewBudgetID}
}

// CreateBudget stores a new active budget. Amounts are not checked against the AOP
// here; that happens when the AOP is activated or reconciled.
func (s *Service) CreateBudget(ctx context.Context, input CreateInput) (Budget, error) {
	input.Project = strings.TrimSpace(input.Project)
	input.Description = strings.TrimSpace(input.Description)
	if input.Project == "" {
		return Budget{}, fmt.Errorf("%w: project is required", ErrValidation)
	}
	if input.Amount.IsNegative() {
		return Budget{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if _, err := s.plans.GetAOP(ctx, input.AOPID); err != nil {
		return Budget{}, err
	}
	owner, err := s.employees.GetActive(ctx, input.EmployeeLDAP)
	if err != nil {
		return Budget{}, err
	}

	candidate := Budget{
		AOPID:        input.AOPID,
		EmployeeID:   owner.ID,
		EmployeeLDAP: owner.LDAP,
		Project:      input.Project,
		Description:  input.Description,
		Amount:       input.Amount.Round(2),
	}
	var created Budget
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate.BudgetID = s.newID()
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			created, err = tx.Insert(ctx, candidate)
			return err
		})
		if !errors.Is(err, ErrDuplicateID) {
			break
		}
	}
	if err != nil {
		return Budget{}, err
	}
	created.EmployeeLDAP = owner.LDAP
	s.recordAudit(ctx, "BUDGET_CREATE", created.BudgetID, map[string]any{"aop_id": created.AOPID, "amount": created.Amount.StringFixed(2)})
	return created, nil
}

// UpdateBudgetState sets the active flag of a budget.
func (s *Service) UpdateBudgetState(ctx context.Context, budgetID string, active bool) (Budget, error) {
	budgetID = NormalizeBudgetID(budgetID)
	var updated Budget
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		updated, err = tx.SetActive(ctx, budgetID, active)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Budget{}, fmt.Errorf("%w: %s", err, budgetID)
		}
		return Budget{}, err
	}
	s.recordAudit(ctx, "BUDGET_STATE", budgetID, map[string]any{"active": active})
	return updated, nil
}

// GetBudget returns a budget by identifier.
func (s *Service) GetBudget(ctx context.Context, budgetID string) (Budget, error) {
	budgetID = NormalizeBudgetID(budgetID)
	b, err := s.repo.Get(ctx, budgetID)
	if errors.Is(err, ErrNotFound) {
		return Budget{}, fmt.Errorf("%w: %s", err, budgetID)
	}
	return b, err
}

// ListBudgets returns every budget of an AOP.
func (s *Service) ListBudgets(ctx context.Context, aopID int64) ([]Budget, error) {
	if _, err := s.plans.GetAOP(ctx, aopID); err != nil {
		return nil, err
	}
	return s.repo.ListByAOP(ctx, aopID)
}

// GetOrganizationBudgetSummary totals active budgets owned by the employee and all of
// its active reports. Employees without active budgets are left out of the breakdown.
func (s *Service) GetOrganizationBudgetSummary(ctx context.Context, ldap string) (Summary, error) {
	root, err := s.employees.GetActive(ctx, ldap)
	if err != nil {
		return Summary{}, err
	}
	reports, err := s.employees.GetAllReports(ctx, root.LDAP)
	if err != nil {
		return Summary{}, err
	}
	org := append([]employees.Employee{root}, reports...)
	ids := make([]int64, len(org))
	for i, e := range org {
		ids[i] = e.ID
	}
	rows, err := s.repo.SumActiveByEmployees(ctx, ids)
	if err != nil {
		return Summary{}, err
	}
	amounts := make(map[int64]decimal.Decimal, len(rows))
	for _, row := range rows {
		amounts[row.EmployeeID] = row.Amount
	}

	summary := Summary{Total: decimal.Zero, ByEmployee: []EmployeeTotal{}}
	for _, e := range org {
		amount, ok := amounts[e.ID]
		if !ok {
			continue
		}
		summary.Total = summary.Total.Add(amount)
		summary.ByEmployee = append(summary.ByEmployee, EmployeeTotal{LDAP: e.LDAP, Name: e.DisplayName(), Amount: amount})
	}
	return summary, nil
}

// GetBudgetChartData builds a per-employee bar series of active budgets for an AOP.
func (s *Service) GetBudgetChartData(ctx context.Context, aopID int64) (ChartData, error) {
	plan, err := s.plans.GetAOP(ctx, aopID)
	if err != nil {
		return ChartData{}, err
	}
	rows, err := s.repo.SumActiveByEmployeeForAOP(ctx, aopID)
	if err != nil {
		return ChartData{}, err
	}
	data := ChartData{Labels: make([]string, 0, len(rows))}
	series := ChartDataset{Label: plan.Name, Data: make([]float64, 0, len(rows))}
	for _, row := range rows {
		name := strings.TrimSpace(row.FirstName + " " + row.LastName)
		data.Labels = append(data.Labels, name)
		series.Data = append(series.Data, row.Amount.InexactFloat64())
	}
	data.Datasets = []ChartDataset{series}
	return data, nil
}

func (s *Service) recordAudit(ctx context.Context, action, budgetID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: action, Entity: "budget", EntityID: budgetID, Meta: meta})
}
