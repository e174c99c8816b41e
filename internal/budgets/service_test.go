package budgets

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	"github.com/budgetdesk/budgetdesk/internal/employees"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

type memoryBudgetRepo struct {
	byID      map[string]Budget
	employees map[int64]employees.Employee
	nextID    int64
}

type memoryBudgetTx struct {
	repo *memoryBudgetRepo
}

func newMemoryBudgetRepo(emps map[int64]employees.Employee) *memoryBudgetRepo {
	return &memoryBudgetRepo{byID: make(map[string]Budget), employees: emps}
}

func (r *memoryBudgetRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryBudgetTx{repo: r})
}

func (r *memoryBudgetRepo) Get(ctx context.Context, budgetID string) (Budget, error) {
	b, ok := r.byID[budgetID]
	if !ok {
		return Budget{}, ErrNotFound
	}
	return b, nil
}

func (r *memoryBudgetRepo) ListByAOP(ctx context.Context, aopID int64) ([]Budget, error) {
	var out []Budget
	for _, b := range r.byID {
		if b.AOPID == aopID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryBudgetRepo) sum(filter func(Budget) bool) []EmployeeAmount {
	totals := make(map[int64]decimal.Decimal)
	for _, b := range r.byID {
		if b.IsActive && filter(b) {
			totals[b.EmployeeID] = totals[b.EmployeeID].Add(b.Amount)
		}
	}
	var out []EmployeeAmount
	for id, amount := range totals {
		e := r.employees[id]
		out = append(out, EmployeeAmount{EmployeeID: id, LDAP: e.LDAP, FirstName: e.FirstName, LastName: e.LastName, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out
}

func (r *memoryBudgetRepo) SumActiveByEmployees(ctx context.Context, employeeIDs []int64) ([]EmployeeAmount, error) {
	wanted := make(map[int64]bool)
	for _, id := range employeeIDs {
		wanted[id] = true
	}
	return r.sum(func(b Budget) bool { return wanted[b.EmployeeID] }), nil
}

func (r *memoryBudgetRepo) SumActiveByEmployeeForAOP(ctx context.Context, aopID int64) ([]EmployeeAmount, error) {
	return r.sum(func(b Budget) bool { return b.AOPID == aopID }), nil
}

func (tx *memoryBudgetTx) Insert(ctx context.Context, b Budget) (Budget, error) {
	if _, exists := tx.repo.byID[b.BudgetID]; exists {
		return Budget{}, ErrDuplicateID
	}
	tx.repo.nextID++
	b.ID = tx.repo.nextID
	b.IsActive = true
	tx.repo.byID[b.BudgetID] = b
	return b, nil
}

func (tx *memoryBudgetTx) SetActive(ctx context.Context, budgetID string, active bool) (Budget, error) {
	b, ok := tx.repo.byID[budgetID]
	if !ok {
		return Budget{}, ErrNotFound
	}
	b.IsActive = active
	tx.repo.byID[budgetID] = b
	return b, nil
}

type stubPlans map[int64]aop.AOP

func (s stubPlans) GetAOP(ctx context.Context, id int64) (aop.AOP, error) {
	a, ok := s[id]
	if !ok {
		return aop.AOP{}, aop.ErrNotFound
	}
	return a, nil
}

// stubOrg treats ManagerID links of the fixture as the org tree.
type stubOrg map[int64]employees.Employee

func (s stubOrg) GetActive(ctx context.Context, ldap string) (employees.Employee, error) {
	for _, e := range s {
		if e.LDAP == ldap && e.IsActive {
			return e, nil
		}
	}
	return employees.Employee{}, employees.ErrNotFound
}

func (s stubOrg) GetAllReports(ctx context.Context, ldap string) ([]employees.Employee, error) {
	root, err := s.GetActive(ctx, ldap)
	if err != nil {
		return nil, err
	}
	var out []employees.Employee
	queue := []int64{root.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for childID := int64(1); childID <= int64(len(s)); childID++ {
			child := s[childID]
			if child.ManagerID == id && child.IsActive {
				out = append(out, child)
				queue = append(queue, child.ID)
			}
		}
	}
	return out, nil
}

func fixture() (*Service, *memoryBudgetRepo) {
	org := stubOrg{
		1: {ID: 1, LDAP: "boss", FirstName: "Bea", LastName: "Boss", IsActive: true},
		2: {ID: 2, LDAP: "ann", FirstName: "Ann", LastName: "Adams", ManagerID: 1, IsActive: true},
		3: {ID: 3, LDAP: "cid", FirstName: "Cid", LastName: "Cole", ManagerID: 2, IsActive: true},
		4: {ID: 4, LDAP: "out", FirstName: "Out", LastName: "Sider", IsActive: true},
	}
	plans := stubPlans{
		1: {ID: 1, Name: "FY2024", State: aop.StateDraft},
		2: {ID: 2, Name: "FY2025", State: aop.StateDraft},
	}
	repo := newMemoryBudgetRepo(org)
	return NewService(repo, plans, org, nil), repo
}

func mustCreate(t *testing.T, svc *Service, aopID int64, amount, ldap string) Budget {
	t.Helper()
	b, err := svc.CreateBudget(context.Background(), CreateInput{AOPID: aopID, Amount: decimal.RequireFromString(amount), Project: "proj", EmployeeLDAP: ldap})
	require.NoError(t, err)
	return b
}

func TestCreateBudgetGeneratesIdentifier(t *testing.T) {
	svc, _ := fixture()
	b := mustCreate(t, svc, 1, "1500.555", "ann")
	require.Regexp(t, regexp.MustCompile(`^BUD[0-9A-F]{8}$`), b.BudgetID)
	require.True(t, b.IsActive)
	require.Equal(t, "ann", b.EmployeeLDAP)
	require.Equal(t, "1500.56", b.Amount.StringFixed(2))
}

func TestCreateBudgetRetriesCollisions(t *testing.T) {
	svc, repo := fixture()
	ids := []string{"BUD00000001", "BUD00000001", "BUD00000002"}
	svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	first := mustCreate(t, svc, 1, "10", "ann")
	second := mustCreate(t, svc, 1, "10", "ann")
	require.Equal(t, "BUD00000001", first.BudgetID)
	require.Equal(t, "BUD00000002", second.BudgetID)
	require.Len(t, repo.byID, 2)
}

func TestCreateBudgetValidatesReferences(t *testing.T) {
	svc, _ := fixture()
	ctx := context.Background()

	_, err := svc.CreateBudget(ctx, CreateInput{AOPID: 9, Amount: decimal.NewFromInt(1), Project: "p", EmployeeLDAP: "ann"})
	require.ErrorIs(t, err, aop.ErrNotFound)

	_, err = svc.CreateBudget(ctx, CreateInput{AOPID: 1, Amount: decimal.NewFromInt(1), Project: "p", EmployeeLDAP: "ghost"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.CreateBudget(ctx, CreateInput{AOPID: 1, Amount: decimal.NewFromInt(1), Project: " ", EmployeeLDAP: "ann"})
	require.ErrorIs(t, err, shared.ErrMalformed)
}

func TestUpdateBudgetStateIsCaseInsensitive(t *testing.T) {
	svc, repo := fixture()
	b := mustCreate(t, svc, 1, "10", "ann")

	updated, err := svc.UpdateBudgetState(context.Background(), " "+strings.ToLower(b.BudgetID), false)
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.False(t, repo.byID[b.BudgetID].IsActive)

	_, err = svc.UpdateBudgetState(context.Background(), "BUD404", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOrganizationBudgetSummary(t *testing.T) {
	svc, _ := fixture()
	mustCreate(t, svc, 1, "100", "boss")
	mustCreate(t, svc, 1, "50.25", "ann")
	mustCreate(t, svc, 2, "25", "ann")
	mustCreate(t, svc, 1, "999", "out")
	off := mustCreate(t, svc, 1, "1000", "cid")
	_, err := svc.UpdateBudgetState(context.Background(), off.BudgetID, false)
	require.NoError(t, err)

	summary, err := svc.GetOrganizationBudgetSummary(context.Background(), "boss")
	require.NoError(t, err)
	require.Equal(t, "175.25", summary.Total.StringFixed(2))
	require.Len(t, summary.ByEmployee, 2)
	require.Equal(t, "Bea Boss", summary.ByEmployee[0].Name)
	require.Equal(t, "75.25", summary.ByEmployee[1].Amount.StringFixed(2))

	empty, err := svc.GetOrganizationBudgetSummary(context.Background(), "cid")
	require.NoError(t, err)
	require.True(t, empty.Total.IsZero())
	require.Empty(t, empty.ByEmployee)
}

func TestBudgetChartData(t *testing.T) {
	svc, _ := fixture()
	mustCreate(t, svc, 1, "100", "boss")
	mustCreate(t, svc, 1, "50", "ann")
	mustCreate(t, svc, 1, "25", "ann")
	mustCreate(t, svc, 2, "500", "cid")

	chart, err := svc.GetBudgetChartData(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"Ann Adams", "Bea Boss"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)
	require.Equal(t, "FY2024", chart.Datasets[0].Label)
	require.Equal(t, []float64{75, 100}, chart.Datasets[0].Data)

	_, err = svc.GetBudgetChartData(context.Background(), 7)
	require.ErrorIs(t, err, aop.ErrNotFound)
}
