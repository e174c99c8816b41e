package aop

import (
	"context"
	"sort"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/budgetdesk/budgetdesk/internal/costcenters"
	"github.com/budgetdesk/budgetdesk/internal/platform/db"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

type memoryBudget struct {
	amount decimal.Decimal
	active bool
}

type memoryAOPRepo struct {
	aops     map[int64]AOP
	details  map[int64][]Detail
	budgets  map[int64][]memoryBudget
	nextID   int64
	detailID int64
	// staleReads hides committed activations from HasOtherActive, leaving the
	// unique index as the only guard.
	staleReads bool
}

type memoryAOPTx struct {
	repo *memoryAOPRepo
}

func newMemoryAOPRepo() *memoryAOPRepo {
	return &memoryAOPRepo{
		aops:    make(map[int64]AOP),
		details: make(map[int64][]Detail),
		budgets: make(map[int64][]memoryBudget),
	}
}

func (r *memoryAOPRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryAOPTx{repo: r})
}

func (r *memoryAOPRepo) WithSerializableTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryAOPTx{repo: r})
}

func (r *memoryAOPRepo) Get(ctx context.Context, id int64) (AOP, error) {
	a, ok := r.aops[id]
	if !ok {
		return AOP{}, ErrNotFound
	}
	return a, nil
}

func (r *memoryAOPRepo) GetActive(ctx context.Context) (AOP, error) {
	for _, a := range r.aops {
		if a.State == StateActive {
			return a, nil
		}
	}
	return AOP{}, ErrNoActive
}

func (r *memoryAOPRepo) List(ctx context.Context) ([]AOP, error) {
	out := make([]AOP, 0, len(r.aops))
	for _, a := range r.aops {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryAOPRepo) ListDetails(ctx context.Context, id int64) ([]Detail, error) {
	return append([]Detail(nil), r.details[id]...), nil
}

func (r *memoryAOPRepo) SumActiveBudgets(ctx context.Context, id int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, b := range r.budgets[id] {
		if b.active {
			total = total.Add(b.amount)
		}
	}
	return total, nil
}

func (r *memoryAOPRepo) addBudget(aopID int64, amount string, active bool) {
	r.budgets[aopID] = append(r.budgets[aopID], memoryBudget{amount: decimal.RequireFromString(amount), active: active})
}

func (tx *memoryAOPTx) Insert(ctx context.Context, a AOP) (AOP, error) {
	tx.repo.nextID++
	a.ID = tx.repo.nextID
	tx.repo.aops[a.ID] = a
	return a, nil
}

func (tx *memoryAOPTx) GetForUpdate(ctx context.Context, id int64) (AOP, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryAOPTx) HasOtherActive(ctx context.Context, id int64) (bool, error) {
	if tx.repo.staleReads {
		return false, nil
	}
	for _, a := range tx.repo.aops {
		if a.ID != id && a.State == StateActive {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryAOPTx) SumActiveBudgets(ctx context.Context, id int64) (decimal.Decimal, error) {
	return tx.repo.SumActiveBudgets(ctx, id)
}

func (tx *memoryAOPTx) SetState(ctx context.Context, id int64, state State) error {
	if state == StateActive {
		for _, other := range tx.repo.aops {
			if other.ID != id && other.State == StateActive {
				return &pgconn.PgError{Code: db.CodeUniqueViolation, ConstraintName: SingleActiveIndex}
			}
		}
	}
	a := tx.repo.aops[id]
	a.State = state
	tx.repo.aops[id] = a
	return nil
}

func (tx *memoryAOPTx) InsertDetail(ctx context.Context, d Detail) (Detail, error) {
	tx.repo.detailID++
	d.ID = tx.repo.detailID
	tx.repo.details[d.AOPID] = append(tx.repo.details[d.AOPID], d)
	return d, nil
}

func (tx *memoryAOPTx) RecomputeTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, d := range tx.repo.details[id] {
		total = total.Add(d.Amount)
	}
	a := tx.repo.aops[id]
	a.TotalAmount = total
	tx.repo.aops[id] = a
	return total, nil
}

type stubCostCenters map[int64]costcenters.CostCenter

func (s stubCostCenters) GetByID(ctx context.Context, id int64) (costcenters.CostCenter, error) {
	cc, ok := s[id]
	if !ok {
		return costcenters.CostCenter{}, costcenters.ErrNotFound
	}
	return cc, nil
}

func newTestService() (*Service, *memoryAOPRepo) {
	repo := newMemoryAOPRepo()
	ccs := stubCostCenters{
		1: {ID: 1, Code: "CC01", Name: "Engineering", IsActive: true},
		2: {ID: 2, Code: "CC02", Name: "Finance", IsActive: true},
	}
	return NewService(repo, ccs, nil), repo
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCreateAOPStartsInDraft(t *testing.T) {
	svc, _ := newTestService()
	plan, err := svc.CreateAOP(context.Background(), " FY2024 ", dec("1000000"))
	require.NoError(t, err)
	require.Equal(t, StateDraft, plan.State)
	require.Equal(t, "FY2024", plan.Name)
	require.True(t, plan.TotalAmount.Equal(dec("1000000")))

	_, err = svc.CreateAOP(context.Background(), "", dec("1"))
	require.ErrorIs(t, err, shared.ErrMalformed)
	_, err = svc.CreateAOP(context.Background(), "neg", dec("-1"))
	require.ErrorIs(t, err, shared.ErrMalformed)
}

func TestDetailsRecomputeTotalAndGateActivation(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	plan, err := svc.CreateAOP(ctx, "FY2025", decimal.Zero)
	require.NoError(t, err)

	_, _, err = svc.AddAOPDetail(ctx, plan.ID, 1, dec("500000"))
	require.NoError(t, err)
	_, updated, err := svc.AddAOPDetail(ctx, plan.ID, 2, dec("300000"))
	require.NoError(t, err)
	require.True(t, updated.TotalAmount.Equal(dec("800000")), updated.TotalAmount.String())

	repo.addBudget(plan.ID, "900000", true)
	_, err = svc.UpdateAOPState(ctx, plan.ID, StateActive)
	require.ErrorIs(t, err, ErrBudgetsExceedTotal)
	require.ErrorIs(t, err, shared.ErrRuleViolation)
	require.Equal(t, StateDraft, repo.aops[plan.ID].State)

	report, err := svc.ReconcileAOP(ctx, plan.ID)
	require.NoError(t, err)
	require.False(t, report.IsCompliant)
	require.True(t, report.Difference.Equal(dec("-100000")))
}

func TestActivationIgnoresInactiveBudgets(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	plan, err := svc.CreateAOP(ctx, "FY2025", dec("1000"))
	require.NoError(t, err)
	repo.addBudget(plan.ID, "600", true)
	repo.addBudget(plan.ID, "5000", false)
	repo.addBudget(plan.ID, "400", true)

	activated, err := svc.UpdateAOPState(ctx, plan.ID, StateActive)
	require.NoError(t, err)
	require.Equal(t, StateActive, activated.State)

	report, err := svc.ReconcileAOP(ctx, plan.ID)
	require.NoError(t, err)
	require.True(t, report.IsCompliant)
	require.True(t, report.Difference.IsZero())
}

func TestSingleActiveAOP(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	first, err := svc.CreateAOP(ctx, "FY2024", dec("100"))
	require.NoError(t, err)
	second, err := svc.CreateAOP(ctx, "FY2025", dec("100"))
	require.NoError(t, err)

	_, err = svc.UpdateAOPState(ctx, first.ID, StateActive)
	require.NoError(t, err)
	_, err = svc.UpdateAOPState(ctx, first.ID, StateActive)
	require.NoError(t, err, "re-activating the active plan is allowed")

	_, err = svc.UpdateAOPState(ctx, second.ID, StateActive)
	require.ErrorIs(t, err, ErrAnotherActive)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.UpdateAOPState(ctx, first.ID, StateEOL)
	require.NoError(t, err)
	_, err = svc.UpdateAOPState(ctx, second.ID, StateActive)
	require.NoError(t, err)

	active, err := svc.GetActiveAOP(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)
}

func TestActiveAOPRejectsDetails(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	plan, err := svc.CreateAOP(ctx, "FY2024", dec("100"))
	require.NoError(t, err)
	_, err = svc.UpdateAOPState(ctx, plan.ID, StateActive)
	require.NoError(t, err)

	_, _, err = svc.AddAOPDetail(ctx, plan.ID, 1, dec("10"))
	require.ErrorIs(t, err, ErrActiveImmutable)

	_, err = svc.UpdateAOPState(ctx, plan.ID, StateEOL)
	require.NoError(t, err)
	_, _, err = svc.AddAOPDetail(ctx, plan.ID, 1, dec("10"))
	require.NoError(t, err)
}

func TestUnknownReferences(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UpdateAOPState(ctx, 42, StateActive)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.ReconcileAOP(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetActiveAOP(ctx)
	require.ErrorIs(t, err, ErrNoActive)

	plan, err := svc.CreateAOP(ctx, "FY2024", dec("100"))
	require.NoError(t, err)
	_, _, err = svc.AddAOPDetail(ctx, plan.ID, 99, dec("1"))
	require.ErrorIs(t, err, costcenters.ErrNotFound)
	_, err = svc.UpdateAOPState(ctx, plan.ID, State("archived"))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestAddDetailLocksPlanBeforeCostCenter(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, _, err := svc.AddAOPDetail(ctx, 42, 99, dec("1"))
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, costcenters.ErrNotFound)

	plan, err := svc.CreateAOP(ctx, "FY2024", dec("100"))
	require.NoError(t, err)
	_, err = svc.UpdateAOPState(ctx, plan.ID, StateActive)
	require.NoError(t, err)
	_, _, err = svc.AddAOPDetail(ctx, plan.ID, 99, dec("1"))
	require.ErrorIs(t, err, ErrActiveImmutable)
	require.Empty(t, repo.details[plan.ID])
}

func TestReconcileIsIdempotent(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	plan, err := svc.CreateAOP(ctx, "FY2025", dec("1000"))
	require.NoError(t, err)
	repo.addBudget(plan.ID, "250.50", true)
	repo.addBudget(plan.ID, "100", false)

	first, err := svc.ReconcileAOP(ctx, plan.ID)
	require.NoError(t, err)
	second, err := svc.ReconcileAOP(ctx, plan.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.True(t, first.Difference.Equal(dec("749.50")))
	require.Equal(t, StateDraft, repo.aops[plan.ID].State)
	require.True(t, repo.aops[plan.ID].TotalAmount.Equal(dec("1000")))
}

func TestDetailOrderDoesNotChangeTotal(t *testing.T) {
	ctx := context.Background()
	amounts := []string{"0.10", "1250.25", "0.20", "99999.99"}

	var totals []decimal.Decimal
	for _, order := range [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}} {
		svc, _ := newTestService()
		plan, err := svc.CreateAOP(ctx, "FY2025", decimal.Zero)
		require.NoError(t, err)
		var updated AOP
		for i, idx := range order {
			_, updated, err = svc.AddAOPDetail(ctx, plan.ID, int64(i%2+1), dec(amounts[idx]))
			require.NoError(t, err)
		}
		totals = append(totals, updated.TotalAmount)
	}
	for _, total := range totals {
		require.True(t, total.Equal(dec("101250.54")), total.String())
	}
}

func TestConcurrentActivationHitsSingleActiveIndex(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	first, err := svc.CreateAOP(ctx, "FY2024", dec("100"))
	require.NoError(t, err)
	second, err := svc.CreateAOP(ctx, "FY2025", dec("100"))
	require.NoError(t, err)
	_, err = svc.UpdateAOPState(ctx, first.ID, StateActive)
	require.NoError(t, err)

	repo.staleReads = true
	_, err = svc.UpdateAOPState(ctx, second.ID, StateActive)
	require.ErrorIs(t, err, ErrAnotherActive)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, StateDraft, repo.aops[second.ID].State)
}

func TestParseState(t *testing.T) {
	s, err := ParseState(" Active ")
	require.NoError(t, err)
	require.Equal(t, StateActive, s)
	_, err = ParseState("closed")
	require.ErrorIs(t, err, shared.ErrMalformed)
}
