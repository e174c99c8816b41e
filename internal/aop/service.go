package aop

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/costcenters"
	"github.com/budgetdesk/budgetdesk/internal/platform/db"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (AOP, error)
	GetActive(ctx context.Context) (AOP, error)
	List(ctx context.Context) ([]AOP, error)
	ListDetails(ctx context.Context, id int64) ([]Detail, error)
	SumActiveBudgets(ctx context.Context, id int64) (decimal.Decimal, error)
}

// CostCenterPort resolves cost centers referenced by details.
type CostCenterPort interface {
	GetByID(ctx context.Context, id int64) (costcenters.CostCenter, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the AOP state machine and the AOP side of reconciliation.
type Service struct {
	repo        RepositoryPort
	costCenters CostCenterPort
	audit       AuditPort
}

// NewService constructs the AOP service. audit may be nil.
func NewService(repo RepositoryPort, costCenters CostCenterPort, audit AuditPort) *Service {
	return &Service{repo: repo, costCenters: costCenters, audit: audit}
}

// CreateAOP stores a new plan in draft state.
func (s *Service) CreateAOP(ctx context.Context, name string, total decimal.Decimal) (AOP, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AOP{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if total.IsNegative() {
		return AOP{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	var created AOP
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, AOP{Name: name, TotalAmount: total.Round(2), State: StateDraft})
		return err
	})
	if err != nil {
		return AOP{}, err
	}
	s.recordAudit(ctx, "AOP_CREATE", created.ID, map[string]any{"name": created.Name, "total": created.TotalAmount.StringFixed(2)})
	return created, nil
}

// UpdateAOPState moves a plan to another state. Activation requires that no other plan
// is active and that active budgets fit within the plan total.
func (s *Service) UpdateAOPState(ctx context.Context, id int64, state State) (AOP, error) {
	if _, err := ParseState(string(state)); err != nil {
		return AOP{}, err
	}
	var updated AOP
	err := s.repo.WithSerializableTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if state == StateActive {
			other, err := tx.HasOtherActive(ctx, id)
			if err != nil {
				return err
			}
			if other {
				return ErrAnotherActive
			}
			sum, err := tx.SumActiveBudgets(ctx, id)
			if err != nil {
				return err
			}
			if sum.GreaterThan(current.TotalAmount) {
				return fmt.Errorf("%w (%s > %s)", ErrBudgetsExceedTotal, sum.StringFixed(2), current.TotalAmount.StringFixed(2))
			}
		}
		if err := tx.SetState(ctx, id, state); err != nil {
			return err
		}
		current.State = state
		updated = current
		return nil
	})
	if db.IsUniqueViolation(err, SingleActiveIndex) {
		// A concurrent activation committed after HasOtherActive looked.
		return AOP{}, ErrAnotherActive
	}
	if err != nil {
		return AOP{}, err
	}
	s.recordAudit(ctx, "AOP_STATE", id, map[string]any{"state": string(state)})
	return updated, nil
}

// AddAOPDetail allocates amount to a cost center and recomputes the plan total from
// all of its details.
func (s *Service) AddAOPDetail(ctx context.Context, id, costCenterID int64, amount decimal.Decimal) (Detail, AOP, error) {
	if amount.IsNegative() {
		return Detail{}, AOP{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	var (
		detail Detail
		plan   AOP
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.State == StateActive {
			return ErrActiveImmutable
		}
		if _, err := s.costCenters.GetByID(ctx, costCenterID); err != nil {
			return err
		}
		detail, err = tx.InsertDetail(ctx, Detail{AOPID: id, CostCenterID: costCenterID, Amount: amount.Round(2)})
		if err != nil {
			return err
		}
		total, err := tx.RecomputeTotal(ctx, id)
		if err != nil {
			return err
		}
		current.TotalAmount = total
		plan = current
		return nil
	})
	if err != nil {
		return Detail{}, AOP{}, err
	}
	s.recordAudit(ctx, "AOP_DETAIL_ADD", id, map[string]any{"cost_center_id": costCenterID, "amount": detail.Amount.StringFixed(2)})
	return detail, plan, nil
}

// ReconcileAOP compares the plan total with the sum of its active budgets.
func (s *Service) ReconcileAOP(ctx context.Context, id int64) (ReconcileReport, error) {
	plan, err := s.repo.Get(ctx, id)
	if err != nil {
		return ReconcileReport{}, err
	}
	sum, err := s.repo.SumActiveBudgets(ctx, id)
	if err != nil {
		return ReconcileReport{}, err
	}
	return NewReconcileReport(plan.ID, plan.TotalAmount, sum), nil
}

// GetAOP returns a plan by ID.
func (s *Service) GetAOP(ctx context.Context, id int64) (AOP, error) {
	return s.repo.Get(ctx, id)
}

// GetActiveAOP returns the single active plan or ErrNoActive.
func (s *Service) GetActiveAOP(ctx context.Context) (AOP, error) {
	return s.repo.GetActive(ctx)
}

// ListAOPs returns every plan.
func (s *Service) ListAOPs(ctx context.Context) ([]AOP, error) {
	return s.repo.List(ctx)
}

// ListDetails returns the cost center allocations of a plan.
func (s *Service) ListDetails(ctx context.Context, id int64) ([]Detail, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListDetails(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: action, Entity: "aop", EntityID: fmt.Sprint(id), Meta: meta})
}
