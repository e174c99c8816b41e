package budgets

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
	Insert(ctx context.Context, b Budget) (Budget, error)
	SetActive(ctx context.Context, budgetID string, active bool) (Budget, error)
}

// EmployeeAmount is an aggregated row keyed by employee.
type EmployeeAmount struct {
	EmployeeID int64
	LDAP       string
	FirstName  string
	LastName   string
	Amount     decimal.Decimal
}

type txRepo struct {
	tx pgx.Tx
}

const budgetSelect = `SELECT b.id, b.budget_id, b.aop_id, b.employee_id, e.ldap, b.project, b.description,
	b.amount, b.pr_amount, b.po_amount, b.receipt_amount, b.is_active, b.created_at, b.updated_at
	FROM budgets b JOIN employees e ON e.id = b.employee_id`

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get returns a budget by its external identifier.
func (r *Repository) Get(ctx context.Context, budgetID string) (Budget, error) {
	return scanBudget(r.pool.QueryRow(ctx, budgetSelect+` WHERE b.budget_id = $1`, budgetID))
}

// ListByAOP returns all budgets of an AOP.
func (r *Repository) ListByAOP(ctx context.Context, aopID int64) ([]Budget, error) {
	rows, err := r.pool.Query(ctx, budgetSelect+` WHERE b.aop_id = $1 ORDER BY b.id`, aopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SumActiveByEmployees totals active budgets per employee, across all AOPs.
func (r *Repository) SumActiveByEmployees(ctx context.Context, employeeIDs []int64) ([]EmployeeAmount, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	return r.queryAmounts(ctx, `SELECT e.id, e.ldap, e.first_name, e.last_name, SUM(b.amount)
		FROM budgets b JOIN employees e ON e.id = b.employee_id
		WHERE b.is_active AND b.employee_id = ANY($1)
		GROUP BY e.id, e.ldap, e.first_name, e.last_name
		ORDER BY e.id`, employeeIDs)
}

// SumActiveByEmployeeForAOP totals active budgets of one AOP per employee.
func (r *Repository) SumActiveByEmployeeForAOP(ctx context.Context, aopID int64) ([]EmployeeAmount, error) {
	return r.queryAmounts(ctx, `SELECT e.id, e.ldap, e.first_name, e.last_name, SUM(b.amount)
		FROM budgets b JOIN employees e ON e.id = b.employee_id
		WHERE b.is_active AND b.aop_id = $1
		GROUP BY e.id, e.ldap, e.first_name, e.last_name
		ORDER BY e.last_name, e.first_name, e.ldap`, aopID)
}

func (r *Repository) queryAmounts(ctx context.Context, sql string, args ...any) ([]EmployeeAmount, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EmployeeAmount
	for rows.Next() {
		var row EmployeeAmount
		if err := rows.Scan(&row.EmployeeID, &row.LDAP, &row.FirstName, &row.LastName, &row.Amount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, b Budget) (Budget, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO budgets (budget_id, aop_id, employee_id, project, description, amount, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, pr_amount, po_amount, receipt_amount, is_active, created_at, updated_at`,
		b.BudgetID, b.AOPID, b.EmployeeID, b.Project, b.Description, b.Amount).
		Scan(&b.ID, &b.PRAmount, &b.POAmount, &b.ReceiptAmount, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "budgets_budget_id_key") {
			return Budget{}, ErrDuplicateID
		}
		return Budget{}, err
	}
	return b, nil
}

func (t *txRepo) SetActive(ctx context.Context, budgetID string, active bool) (Budget, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE budgets SET is_active = $2, updated_at = NOW() WHERE budget_id = $1`, budgetID, active)
	if err != nil {
		return Budget{}, err
	}
	if tag.RowsAffected() == 0 {
		return Budget{}, ErrNotFound
	}
	return scanBudget(t.tx.QueryRow(ctx, budgetSelect+` WHERE b.budget_id = $1`, budgetID))
}

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.BudgetID, &b.AOPID, &b.EmployeeID, &b.EmployeeLDAP, &b.Project, &b.Description,
		&b.Amount, &b.PRAmount, &b.POAmount, &b.ReceiptAmount, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budget{}, ErrNotFound
		}
		return Budget{}, err
	}
	return b, nil
}
