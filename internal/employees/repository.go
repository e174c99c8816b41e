package employees

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

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetByLDAPForUpdate(ctx context.Context, ldap string) (Employee, error)
	GetByID(ctx context.Context, id int64) (Employee, error)
	Insert(ctx context.Context, e Employee) (int64, error)
	Reactivate(ctx context.Context, id int64, first, last, email string, level int) error
	Deactivate(ctx context.Context, id int64) error
	SetManager(ctx context.Context, id, managerID int64) error
	HasActiveBudgetInActiveAOP(ctx context.Context, employeeID int64) (bool, error)
}

type txRepo struct {
	tx pgx.Tx
}

const employeeColumns = `id, ldap, first_name, last_name, email, level, COALESCE(cost_center_id, 0), COALESCE(manager_id, 0), is_active, created_at, updated_at`

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// WithSerializableTx wraps callback in a serializable transaction; manager
// re-assignments use it so two concurrent moves cannot close a loop.
func (r *Repository) WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetByLDAP returns the employee regardless of the active flag.
func (r *Repository) GetByLDAP(ctx context.Context, ldap string) (Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE ldap = $1`, ldap))
}

// ListActiveReports returns active direct reports of the given managers.
func (r *Repository) ListActiveReports(ctx context.Context, managerIDs []int64) ([]Employee, error) {
	if len(managerIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+employeeColumns+` FROM employees
		WHERE manager_id = ANY($1) AND is_active
		ORDER BY manager_id, ldap`, managerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *txRepo) GetByLDAPForUpdate(ctx context.Context, ldap string) (Employee, error) {
	return scanEmployee(t.tx.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE ldap = $1 FOR UPDATE`, ldap))
}

func (t *txRepo) GetByID(ctx context.Context, id int64) (Employee, error) {
	return scanEmployee(t.tx.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
}

func (t *txRepo) Insert(ctx context.Context, e Employee) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO employees (ldap, first_name, last_name, email, level, cost_center_id, manager_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), TRUE) RETURNING id`,
		e.LDAP, e.FirstName, e.LastName, e.Email, e.Level, e.CostCenterID, e.ManagerID).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) Reactivate(ctx context.Context, id int64, first, last, email string, level int) error {
	_, err := t.tx.Exec(ctx, `UPDATE employees SET is_active = TRUE, first_name = $2, last_name = $3, email = $4, level = $5, updated_at = NOW() WHERE id = $1`,
		id, first, last, email, level)
	return err
}

func (t *txRepo) Deactivate(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE employees SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (t *txRepo) SetManager(ctx context.Context, id, managerID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE employees SET manager_id = NULLIF($2, 0), updated_at = NOW() WHERE id = $1`, id, managerID)
	return err
}

func (t *txRepo) HasActiveBudgetInActiveAOP(ctx context.Context, employeeID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM budgets b JOIN aops a ON a.id = b.aop_id
		WHERE b.employee_id = $1 AND b.is_active AND a.state = 'active')`, employeeID).Scan(&exists)
	return exists, err
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.LDAP, &e.FirstName, &e.LastName, &e.Email, &e.Level, &e.CostCenterID, &e.ManagerID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	return e, nil
}
