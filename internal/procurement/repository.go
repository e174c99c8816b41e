package procurement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockBudget(ctx context.Context, budgetID string) (BudgetRef, error)
	InsertPR(ctx context.Context, pr PurchaseRequest) (PurchaseRequest, error)
	InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	GetPOLineForUpdate(ctx context.Context, poNumber string, line int) (PurchaseOrder, error)
	CountReceipts(ctx context.Context, poNumber string, line int) (int, error)
	InsertReceipt(ctx context.Context, rc Receipt) (Receipt, error)
	AddToBudget(ctx context.Context, budgetID string, pr, po, receipt decimal.Decimal) (BudgetTotals, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetTotals returns the running totals of a budget.
func (r *Repository) GetTotals(ctx context.Context, budgetID string) (BudgetTotals, error) {
	var t BudgetTotals
	err := r.pool.QueryRow(ctx, `SELECT budget_id, amount, pr_amount, po_amount, receipt_amount FROM budgets WHERE budget_id = $1`, budgetID).
		Scan(&t.BudgetID, &t.Amount, &t.PRAmount, &t.POAmount, &t.ReceiptAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return BudgetTotals{}, ErrBudgetNotFound
	}
	return t, err
}

// ListPRs returns purchase requests of a budget.
func (r *Repository) ListPRs(ctx context.Context, budgetID string) ([]PurchaseRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, pr_reference, budget_id, requestor_ldap, amount, request_date, created_at
		FROM purchase_requests WHERE budget_id = $1 ORDER BY request_date, id`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseRequest
	for rows.Next() {
		var pr PurchaseRequest
		if err := rows.Scan(&pr.ID, &pr.Reference, &pr.BudgetID, &pr.RequestorLDAP, &pr.Amount, &pr.RequestDate, &pr.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// ListPOs returns purchase order lines of a budget.
func (r *Repository) ListPOs(ctx context.Context, budgetID string) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, po_number, po_line_number, budget_id, requestor_ldap, purchase_item, amount, order_date, created_at
		FROM purchase_orders WHERE budget_id = $1 ORDER BY po_number, po_line_number`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

func (t *txRepo) LockBudget(ctx context.Context, budgetID string) (BudgetRef, error) {
	var ref BudgetRef
	err := t.tx.QueryRow(ctx, `SELECT budget_id, is_active FROM budgets WHERE budget_id = $1 FOR UPDATE`, budgetID).Scan(&ref.BudgetID, &ref.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return BudgetRef{}, ErrBudgetNotFound
	}
	return ref, err
}

func (t *txRepo) InsertPR(ctx context.Context, pr PurchaseRequest) (PurchaseRequest, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_requests (pr_reference, budget_id, requestor_ldap, amount, request_date)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		pr.Reference, pr.BudgetID, pr.RequestorLDAP, pr.Amount, pr.RequestDate).Scan(&pr.ID, &pr.CreatedAt)
	if db.IsUniqueViolation(err, "purchase_requests_pr_reference_key") {
		return PurchaseRequest{}, ErrDuplicateReference
	}
	return pr, err
}

func (t *txRepo) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (po_number, po_line_number, budget_id, requestor_ldap, purchase_item, amount, order_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		po.PONumber, po.LineNumber, po.BudgetID, po.RequestorLDAP, po.PurchaseItem, po.Amount, po.OrderDate).Scan(&po.ID, &po.CreatedAt)
	if db.IsUniqueViolation(err, "purchase_orders_line_key") {
		return PurchaseOrder{}, ErrDuplicateLine
	}
	return po, err
}

func (t *txRepo) GetPOLineForUpdate(ctx context.Context, poNumber string, line int) (PurchaseOrder, error) {
	po, err := scanPO(t.tx.QueryRow(ctx, `SELECT id, po_number, po_line_number, budget_id, requestor_ldap, purchase_item, amount, order_date, created_at
		FROM purchase_orders WHERE po_number = $1 AND po_line_number = $2 FOR UPDATE`, poNumber, line))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrLineNotFound
	}
	return po, err
}

func (t *txRepo) CountReceipts(ctx context.Context, poNumber string, line int) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM receipts WHERE po_number = $1 AND po_line_number = $2`, poNumber, line).Scan(&n)
	return n, err
}

func (t *txRepo) InsertReceipt(ctx context.Context, rc Receipt) (Receipt, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO receipts (po_number, po_line_number, purchase_item, receipt_date)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		rc.PONumber, rc.LineNumber, rc.PurchaseItem, rc.ReceiptDate).Scan(&rc.ID, &rc.CreatedAt)
	return rc, err
}

func (t *txRepo) AddToBudget(ctx context.Context, budgetID string, pr, po, receipt decimal.Decimal) (BudgetTotals, error) {
	var out BudgetTotals
	err := t.tx.QueryRow(ctx, `UPDATE budgets SET
			pr_amount = pr_amount + $2,
			po_amount = po_amount + $3,
			receipt_amount = receipt_amount + $4,
			updated_at = NOW()
		WHERE budget_id = $1
		RETURNING budget_id, amount, pr_amount, po_amount, receipt_amount`, budgetID, pr, po, receipt).
		Scan(&out.BudgetID, &out.Amount, &out.PRAmount, &out.POAmount, &out.ReceiptAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return BudgetTotals{}, ErrBudgetNotFound
	}
	return out, err
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.PONumber, &po.LineNumber, &po.BudgetID, &po.RequestorLDAP, &po.PurchaseItem, &po.Amount, &po.OrderDate, &po.CreatedAt)
	return po, err
}
