package costcenters

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const selectColumns = `SELECT id, code, name, is_active, created_at, updated_at FROM cost_centers`

// Create inserts a cost center.
func (r *Repository) Create(ctx context.Context, cc CostCenter) (CostCenter, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cost_centers (code, name, is_active) VALUES ($1, $2, TRUE) RETURNING id, is_active, created_at, updated_at`,
		cc.Code, cc.Name).Scan(&cc.ID, &cc.IsActive, &cc.CreatedAt, &cc.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return CostCenter{}, ErrDuplicate
		}
		return CostCenter{}, err
	}
	return cc, nil
}

// GetByCode looks a cost center up by its canonical code.
func (r *Repository) GetByCode(ctx context.Context, code string) (CostCenter, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectColumns+` WHERE code = $1`, code))
}

// GetByID looks a cost center up by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (CostCenter, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
}

// List returns every cost center ordered by code.
func (r *Repository) List(ctx context.Context) ([]CostCenter, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CostCenter
	for rows.Next() {
		var cc CostCenter
		if err := rows.Scan(&cc.ID, &cc.Code, &cc.Name, &cc.IsActive, &cc.CreatedAt, &cc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (CostCenter, error) {
	var cc CostCenter
	if err := row.Scan(&cc.ID, &cc.Code, &cc.Name, &cc.IsActive, &cc.CreatedAt, &cc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostCenter{}, ErrNotFound
		}
		return CostCenter{}, err
	}
	return cc, nil
}
