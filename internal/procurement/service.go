package procurement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/budgets"
	"github.com/budgetdesk/budgetdesk/internal/employees"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTotals(ctx context.Context, budgetID string) (BudgetTotals, error)
	ListPRs(ctx context.Context, budgetID string) ([]PurchaseRequest, error)
	ListPOs(ctx context.Context, budgetID string) ([]PurchaseOrder, error)
}

// EmployeePort resolves requestors.
type EmployeePort interface {
	GetActive(ctx context.Context, ldap string) (employees.Employee, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records procurement activity and keeps budget running totals in step.
type Service struct {
	repo      RepositoryPort
	employees EmployeePort
	audit     AuditPort
	now       func() time.Time
}

// NewService constructs procurement service. audit may be nil.
func NewService(repo RepositoryPort, emps EmployeePort, audit AuditPort) *Service {
	return &Service{repo: repo, employees: emps, audit: audit, now: time.Now}
}

// PRInput describes a purchase request. Reference is generated when empty.
type PRInput struct {
	BudgetID      string
	RequestorLDAP string
	Amount        decimal.Decimal
	RequestDate   time.Time
	Reference     string
}

// POInput describes one purchase order line.
type POInput struct {
	BudgetID      string
	RequestorLDAP string
	PONumber      string
	LineNumber    int
	PurchaseItem  string
	Amount        decimal.Decimal
	OrderDate     time.Time
}

// ReceiptInput describes delivery of a purchase order line.
type ReceiptInput struct {
	PONumber    string
	LineNumber  int
	ReceiptDate time.Time
}

// RecordPurchaseRequest stores a request and adds its amount to the budget's PR total.
func (s *Service) RecordPurchaseRequest(ctx context.Context, input PRInput) (PurchaseRequest, BudgetTotals, error) {
	if !input.Amount.IsPositive() {
		return PurchaseRequest{}, BudgetTotals{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	requestor, err := s.employees.GetActive(ctx, input.RequestorLDAP)
	if err != nil {
		return PurchaseRequest{}, BudgetTotals{}, err
	}
	pr := PurchaseRequest{
		Reference:     strings.ToUpper(strings.TrimSpace(input.Reference)),
		BudgetID:      budgets.NormalizeBudgetID(input.BudgetID),
		RequestorLDAP: requestor.LDAP,
		Amount:        input.Amount.Round(2),
		RequestDate:   s.dateOrNow(input.RequestDate),
	}
	if pr.Reference == "" {
		pr.Reference = generateReference("PR")
	}
	var totals BudgetTotals
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requireActiveBudget(ctx, tx, pr.BudgetID); err != nil {
			return err
		}
		var err error
		if pr, err = tx.InsertPR(ctx, pr); err != nil {
			return err
		}
		totals, err = tx.AddToBudget(ctx, pr.BudgetID, pr.Amount, decimal.Zero, decimal.Zero)
		return err
	})
	if err != nil {
		return PurchaseRequest{}, BudgetTotals{}, err
	}
	s.recordAudit(ctx, "PR_RECORD", pr.Reference, map[string]any{"budget_id": pr.BudgetID, "amount": pr.Amount.StringFixed(2)})
	return pr, totals, nil
}

// RecordPurchaseOrder stores an order line and adds its amount to the budget's PO total.
func (s *Service) RecordPurchaseOrder(ctx context.Context, input POInput) (PurchaseOrder, BudgetTotals, error) {
	input.PONumber = strings.ToUpper(strings.TrimSpace(input.PONumber))
	input.PurchaseItem = strings.TrimSpace(input.PurchaseItem)
	switch {
	case input.PONumber == "" || input.PurchaseItem == "":
		return PurchaseOrder{}, BudgetTotals{}, fmt.Errorf("%w: po number and purchase item are required", ErrValidation)
	case input.LineNumber <= 0:
		return PurchaseOrder{}, BudgetTotals{}, fmt.Errorf("%w: line number must be positive", ErrValidation)
	case !input.Amount.IsPositive():
		return PurchaseOrder{}, BudgetTotals{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	requestor, err := s.employees.GetActive(ctx, input.RequestorLDAP)
	if err != nil {
		return PurchaseOrder{}, BudgetTotals{}, err
	}
	po := PurchaseOrder{
		PONumber:      input.PONumber,
		LineNumber:    input.LineNumber,
		BudgetID:      budgets.NormalizeBudgetID(input.BudgetID),
		RequestorLDAP: requestor.LDAP,
		PurchaseItem:  input.PurchaseItem,
		Amount:        input.Amount.Round(2),
		OrderDate:     s.dateOrNow(input.OrderDate),
	}
	var totals BudgetTotals
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requireActiveBudget(ctx, tx, po.BudgetID); err != nil {
			return err
		}
		var err error
		if po, err = tx.InsertPO(ctx, po); err != nil {
			return err
		}
		totals, err = tx.AddToBudget(ctx, po.BudgetID, decimal.Zero, po.Amount, decimal.Zero)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, BudgetTotals{}, err
	}
	s.recordAudit(ctx, "PO_RECORD", fmt.Sprintf("%s/%d", po.PONumber, po.LineNumber), map[string]any{"budget_id": po.BudgetID, "amount": po.Amount.StringFixed(2)})
	return po, totals, nil
}

// RecordReceipt stores a delivery for an existing order line. The first receipt of a
// line adds the line amount to the budget's receipt total; later receipts are kept as
// history only.
func (s *Service) RecordReceipt(ctx context.Context, input ReceiptInput) (Receipt, BudgetTotals, error) {
	input.PONumber = strings.ToUpper(strings.TrimSpace(input.PONumber))
	if input.PONumber == "" || input.LineNumber <= 0 {
		return Receipt{}, BudgetTotals{}, fmt.Errorf("%w: po number and positive line number are required", ErrValidation)
	}
	var (
		rc     Receipt
		totals BudgetTotals
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetPOLineForUpdate(ctx, input.PONumber, input.LineNumber)
		if err != nil {
			return err
		}
		if err := requireActiveBudget(ctx, tx, line.BudgetID); err != nil {
			return err
		}
		previous, err := tx.CountReceipts(ctx, line.PONumber, line.LineNumber)
		if err != nil {
			return err
		}
		rc, err = tx.InsertReceipt(ctx, Receipt{
			PONumber:     line.PONumber,
			LineNumber:   line.LineNumber,
			PurchaseItem: line.PurchaseItem,
			ReceiptDate:  s.dateOrNow(input.ReceiptDate),
		})
		if err != nil {
			return err
		}
		received := decimal.Zero
		if previous == 0 {
			received = line.Amount
		}
		totals, err = tx.AddToBudget(ctx, line.BudgetID, decimal.Zero, decimal.Zero, received)
		return err
	})
	if err != nil {
		return Receipt{}, BudgetTotals{}, err
	}
	s.recordAudit(ctx, "RECEIPT_RECORD", fmt.Sprintf("%s/%d", rc.PONumber, rc.LineNumber), nil)
	return rc, totals, nil
}

// GetLedger returns the totals and procurement history of a budget.
func (s *Service) GetLedger(ctx context.Context, budgetID string) (Ledger, error) {
	budgetID = budgets.NormalizeBudgetID(budgetID)
	totals, err := s.repo.GetTotals(ctx, budgetID)
	if err != nil {
		return Ledger{}, err
	}
	prs, err := s.repo.ListPRs(ctx, budgetID)
	if err != nil {
		return Ledger{}, err
	}
	pos, err := s.repo.ListPOs(ctx, budgetID)
	if err != nil {
		return Ledger{}, err
	}
	if prs == nil {
		prs = []PurchaseRequest{}
	}
	if pos == nil {
		pos = []PurchaseOrder{}
	}
	return Ledger{Totals: totals, Requests: prs, Orders: pos}, nil
}

func requireActiveBudget(ctx context.Context, tx TxRepository, budgetID string) error {
	ref, err := tx.LockBudget(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("%w: %s", err, budgetID)
	}
	if !ref.IsActive {
		return fmt.Errorf("%w: %s", ErrBudgetInactive, budgetID)
	}
	return nil
}

func (s *Service) dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}

func (s *Service) recordAudit(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: action, Entity: "procurement", EntityID: entityID, Meta: meta})
}

func generateReference(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}
