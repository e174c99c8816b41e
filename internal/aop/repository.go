package aop

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
	Insert(ctx context.Context, a AOP) (AOP, error)
	GetForUpdate(ctx context.Context, id int64) (AOP, error)
	HasOtherActive(ctx context.Context, id int64) (bool, error)
	SumActiveBudgets(ctx context.Context, id int64) (decimal.Decimal, error)
	SetState(ctx context.Context, id int64, state State) error
	InsertDetail(ctx context.Context, d Detail) (Detail, error)
	RecomputeTotal(ctx context.Context, id int64) (decimal.Decimal, error)
}

type txRepo struct {
	tx pgx.Tx
}

const aopColumns = `id, name, total_amount, state, created_at, updated_at`

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// WithSerializableTx wraps callback in a serializable transaction.
func (r *Repository) WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get returns a single AOP.
func (r *Repository) Get(ctx context.Context, id int64) (AOP, error) {
	return scanAOP(r.pool.QueryRow(ctx, `SELECT `+aopColumns+` FROM aops WHERE id = $1`, id))
}

// GetActive returns the active AOP.
func (r *Repository) GetActive(ctx context.Context) (AOP, error) {
	a, err := scanAOP(r.pool.QueryRow(ctx, `SELECT `+aopColumns+` FROM aops WHERE state = 'active'`))
	if errors.Is(err, ErrNotFound) {
		return AOP{}, ErrNoActive
	}
	return a, err
}

// List returns every AOP, newest first.
func (r *Repository) List(ctx context.Context) ([]AOP, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+aopColumns+` FROM aops ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AOP
	for rows.Next() {
		a, err := scanAOP(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListDetails returns the cost center allocations of an AOP.
func (r *Repository) ListDetails(ctx context.Context, id int64) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, aop_id, cost_center_id, amount, created_at
		FROM aop_details WHERE aop_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.AOPID, &d.CostCenterID, &d.Amount, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SumActiveBudgets totals active budgets of an AOP outside a transaction.
func (r *Repository) SumActiveBudgets(ctx context.Context, id int64) (decimal.Decimal, error) {
	return sumActiveBudgets(ctx, r.pool, id)
}

func (t *txRepo) Insert(ctx context.Context, a AOP) (AOP, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO aops (name, total_amount, state) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`, a.Name, a.TotalAmount, a.State).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (AOP, error) {
	return scanAOP(t.tx.QueryRow(ctx, `SELECT `+aopColumns+` FROM aops WHERE id = $1 FOR UPDATE`, id))
}

// SingleActiveIndex is the partial unique index admitting at most one active plan.
const SingleActiveIndex = "aops_single_active"

func (t *txRepo) HasOtherActive(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM aops WHERE state = 'active' AND id <> $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) SumActiveBudgets(ctx context.Context, id int64) (decimal.Decimal, error) {
	return sumActiveBudgets(ctx, t.tx, id)
}

func (t *txRepo) SetState(ctx context.Context, id int64, state State) error {
	_, err := t.tx.Exec(ctx, `UPDATE aops SET state = $2, updated_at = NOW() WHERE id = $1`, id, state)
	if db.IsUniqueViolation(err, SingleActiveIndex) {
		return ErrAnotherActive
	}
	return err
}

func (t *txRepo) InsertDetail(ctx context.Context, d Detail) (Detail, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO aop_details (aop_id, cost_center_id, amount) VALUES ($1, $2, $3)
		RETURNING id, created_at`, d.AOPID, d.CostCenterID, d.Amount).Scan(&d.ID, &d.CreatedAt)
	return d, err
}

func (t *txRepo) RecomputeTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.tx.QueryRow(ctx, `UPDATE aops SET total_amount = (
			SELECT COALESCE(SUM(amount), 0) FROM aop_details WHERE aop_id = $1
		), updated_at = NOW() WHERE id = $1 RETURNING total_amount`, id).Scan(&total)
	return total, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sumActiveBudgets(ctx context.Context, q querier, id int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM budgets WHERE aop_id = $1 AND is_active`, id).Scan(&total)
	return total, err
}

func scanAOP(row pgx.Row) (AOP, error) {
	var a AOP
	var state string
	if err := row.Scan(&a.ID, &a.Name, &a.TotalAmount, &state, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AOP{}, ErrNotFound
		}
		return AOP{}, err
	}
	a.State = State(state)
	return a, nil
}
