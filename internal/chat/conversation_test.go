package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	"github.com/budgetdesk/budgetdesk/internal/budgets"
	"github.com/budgetdesk/budgetdesk/internal/costcenters"
	"github.com/budgetdesk/budgetdesk/internal/employees"
)

const testPassphrase = "open-sesame"

type fakeEmployees struct {
	active  map[string]employees.Employee
	created []employees.CreateInput
	removed []string
	tree    *employees.OrgNode
}

func (f *fakeEmployees) GetActive(_ context.Context, ldap string) (employees.Employee, error) {
	e, ok := f.active[strings.ToLower(ldap)]
	if !ok {
		return employees.Employee{}, fmt.Errorf("%w: %s", employees.ErrNotFound, ldap)
	}
	return e, nil
}

func (f *fakeEmployees) CreateEmployee(_ context.Context, input employees.CreateInput) (employees.Employee, error) {
	if _, ok := f.active[input.LDAP]; ok {
		return employees.Employee{}, fmt.Errorf("%w: %s", employees.ErrDuplicate, input.LDAP)
	}
	f.created = append(f.created, input)
	return employees.Employee{LDAP: input.LDAP, FirstName: input.FirstName, LastName: input.LastName, IsActive: true}, nil
}

func (f *fakeEmployees) RemoveEmployee(_ context.Context, ldap string) error {
	if _, ok := f.active[ldap]; !ok {
		return fmt.Errorf("%w: %s", employees.ErrNotFound, ldap)
	}
	f.removed = append(f.removed, ldap)
	return nil
}

func (f *fakeEmployees) GetOrganizationHierarchy(_ context.Context, ldap string) (*employees.OrgNode, error) {
	if f.tree == nil {
		return nil, fmt.Errorf("%w: %s", employees.ErrNotFound, ldap)
	}
	return f.tree, nil
}

type fakeCostCenters map[string]costcenters.CostCenter

func (f fakeCostCenters) GetByCode(_ context.Context, code string) (costcenters.CostCenter, error) {
	cc, ok := f[costcenters.NormalizeCode(code)]
	if !ok {
		return costcenters.CostCenter{}, fmt.Errorf("%w: %s", costcenters.ErrNotFound, code)
	}
	return cc, nil
}

type fakePlans struct {
	reports map[int64]aop.ReconcileReport
}

func (f *fakePlans) CreateAOP(_ context.Context, name string, total decimal.Decimal) (aop.AOP, error) {
	return aop.AOP{ID: 1, Name: name, TotalAmount: total.Round(2), State: aop.StateDraft}, nil
}

func (f *fakePlans) ReconcileAOP(_ context.Context, id int64) (aop.ReconcileReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return aop.ReconcileReport{}, fmt.Errorf("%w: %d", aop.ErrNotFound, id)
	}
	return r, nil
}

type fakeBudgets struct {
	created    []budgets.CreateInput
	summary    budgets.Summary
	chart      budgets.ChartData
	panicChart bool
}

func (f *fakeBudgets) CreateBudget(_ context.Context, input budgets.CreateInput) (budgets.Budget, error) {
	f.created = append(f.created, input)
	return budgets.Budget{BudgetID: "BUD0000ABCD", AOPID: input.AOPID, EmployeeLDAP: input.EmployeeLDAP}, nil
}

func (f *fakeBudgets) UpdateBudgetState(_ context.Context, budgetID string, active bool) (budgets.Budget, error) {
	return budgets.Budget{BudgetID: budgets.NormalizeBudgetID(budgetID), IsActive: active}, nil
}

func (f *fakeBudgets) GetOrganizationBudgetSummary(context.Context, string) (budgets.Summary, error) {
	return f.summary, nil
}

func (f *fakeBudgets) GetBudgetChartData(context.Context, int64) (budgets.ChartData, error) {
	if f.panicChart {
		panic("chart renderer exploded")
	}
	return f.chart, nil
}

type countingObserver map[string]int

func (o countingObserver) ObserveIntent(intent, outcome string) {
	o[intent+"/"+outcome]++
}

type fixture struct {
	conv     *Conversation
	emps     *fakeEmployees
	plans    *fakePlans
	budgets  *fakeBudgets
	observed countingObserver
}

func newFixture() *fixture {
	f := &fixture{
		emps: &fakeEmployees{active: map[string]employees.Employee{
			"alice": {ID: 1, LDAP: "alice", FirstName: "Alice", LastName: "Smith", IsActive: true},
			"bob":   {ID: 2, LDAP: "bob", FirstName: "Bob", LastName: "Jones", ManagerID: 1, IsActive: true},
		}},
		plans: &fakePlans{reports: map[int64]aop.ReconcileReport{
			1: aop.NewReconcileReport(1, decimal.NewFromInt(800000), decimal.NewFromInt(900000)),
			2: aop.NewReconcileReport(2, decimal.NewFromInt(1000), decimal.RequireFromString("250.5")),
		}},
		budgets:  &fakeBudgets{},
		observed: countingObserver{},
	}
	f.conv = NewConversation(testPassphrase, Dependencies{
		Employees:   f.emps,
		CostCenters: fakeCostCenters{"CC01": {ID: 1, Code: "CC01", Name: "Engineering", IsActive: true}},
		Plans:       f.plans,
		Budgets:     f.budgets,
		Observer:    f.observed,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *fixture) say(t *testing.T, state State, msg string) (string, State) {
	t.Helper()
	reply, next := f.conv.Handle(context.Background(), state, msg)
	require.False(t, reply.IsChart(), msg)
	return reply.Text, next
}

var (
	authed  = State{Authenticated: true}
	asAlice = State{Authenticated: true, LDAP: "alice"}
)

func TestAuthenticationGate(t *testing.T) {
	f := newFixture()

	reply, state := f.say(t, State{}, "add aop name \"FY\" amount 10")
	require.Equal(t, AuthPromptReply, reply)
	require.False(t, state.Authenticated)

	reply, state = f.say(t, state, "OPEN-SESAME")
	require.Equal(t, AuthPromptReply, reply)
	require.False(t, state.Authenticated)

	reply, state = f.say(t, state, "  open-sesame\n")
	require.Equal(t, AuthSuccessReply, reply)
	require.True(t, state.Authenticated)
	require.Empty(t, f.observed)
}

func TestIdentityBinding(t *testing.T) {
	f := newFixture()

	reply, state := f.say(t, authed, "show me my organization as ghost")
	require.Equal(t, "Error setting user: employee not found: ghost", reply)
	require.Empty(t, state.LDAP)

	reply, state = f.say(t, state, "show me my organization as Alice")
	require.Equal(t, "Now operating as Alice Smith", reply)
	require.Equal(t, "alice", state.LDAP)

	// Once bound, "as" no longer rebinds.
	reply, state = f.say(t, state, "remove user bob as carol")
	require.Equal(t, "User bob has been removed", reply)
	require.Equal(t, "alice", state.LDAP)
}

func TestIdentityRequiredIntents(t *testing.T) {
	f := newFixture()
	for _, msg := range []string{
		"show me my organization",
		"show me my budget",
		`add budget aop 1 amount 10 project "X"`,
	} {
		reply, _ := f.say(t, authed, msg)
		require.Equal(t, IdentityPrompt, reply, msg)
	}
	require.Empty(t, f.budgets.created)
}

func TestAddUserFlow(t *testing.T) {
	f := newFixture()

	reply, _ := f.say(t, authed, "add user ldap jdoe first name john last name doe email jdoe@co.com level 5 cost center CC01 manager alice")
	require.Equal(t, "User jdoe created successfully", reply)
	require.Len(t, f.emps.created, 1)
	created := f.emps.created[0]
	require.Equal(t, "John", created.FirstName)
	require.Equal(t, "Doe", created.LastName)
	require.Equal(t, 5, created.Level)
	require.Equal(t, "alice", created.ManagerLDAP)

	reply, _ = f.say(t, authed, "add user ldap jdoe first name John last name Doe email jdoe@co.com cost center CC01")
	require.Equal(t, "Please provide the following information: level (1-12)", reply)

	reply, _ = f.say(t, authed, "add user ldap x level 13 cost center CC99")
	require.Equal(t, "Level must be between 1 and 12", reply)

	reply, _ = f.say(t, authed, "add user ldap x cost center CC99")
	require.Equal(t, "Cost center CC99 not found", reply)

	reply, _ = f.say(t, authed, "add user ldap alice first name a last name b email a@b.co level 3 cost center cc01")
	require.True(t, strings.HasPrefix(reply, "Error creating user: "), reply)
	require.Len(t, f.emps.created, 1)
	require.Equal(t, 1, f.observed["add_user/error"])
	require.Equal(t, 3, f.observed["add_user/incomplete"])
}

func TestAddUserWithAsDomainEmail(t *testing.T) {
	f := newFixture()

	reply, state := f.say(t, authed, "add user ldap jdoe first name john last name doe email jdoe@corp.as level 5 cost center CC01")
	require.Equal(t, "User jdoe created successfully", reply)
	require.Empty(t, state.LDAP)
	require.Len(t, f.emps.created, 1)
	require.Equal(t, "jdoe@corp.as", f.emps.created[0].Email)
}

func TestRemoveUserErrors(t *testing.T) {
	f := newFixture()
	reply, _ := f.say(t, authed, "remove user nobody")
	require.Equal(t, "Error removing user: employee not found: nobody", reply)
	reply, _ = f.say(t, authed, "remove user")
	require.Equal(t, "Please specify the LDAP username to remove", reply)
}

func TestShowOrganization(t *testing.T) {
	f := newFixture()
	f.emps.tree = &employees.OrgNode{LDAP: "alice", Name: "Alice Smith", Reports: []*employees.OrgNode{
		{LDAP: "bob", Name: "Bob Jones", Reports: []*employees.OrgNode{{LDAP: "carol", Name: "Carol White"}}},
		{LDAP: "dave", Name: "Dave Brown"},
	}}
	reply, _ := f.say(t, asAlice, "show me my organization")
	require.Equal(t, "Organization Structure:\n"+
		"- Alice Smith (alice)\n"+
		"  - Bob Jones (bob)\n"+
		"    - Carol White (carol)\n"+
		"  - Dave Brown (dave)", reply)
}

func TestShowBudget(t *testing.T) {
	f := newFixture()
	reply, _ := f.say(t, asAlice, "show me my budget")
	require.Equal(t, NoBudgetInfoReply, reply)

	f.budgets.summary = budgets.Summary{
		Total: decimal.NewFromInt(1500),
		ByEmployee: []budgets.EmployeeTotal{
			{LDAP: "alice", Name: "Alice Smith", Amount: decimal.NewFromInt(1000)},
			{LDAP: "bob", Name: "Bob Jones", Amount: decimal.NewFromInt(500)},
		},
	}
	reply, _ = f.say(t, asAlice, "show me my budget")
	require.Equal(t, "Budget Summary:\n\nTotal Budget: $1,500.00\n\nBreakdown by Employee:\n- Alice Smith: $1,000.00\n- Bob Jones: $500.00", reply)
}

func TestAddAOPAndReconcile(t *testing.T) {
	f := newFixture()
	reply, _ := f.say(t, authed, `add aop name "FY2024" amount 1000000`)
	require.Equal(t, "AOP FY2024 created with amount $1,000,000.00", reply)

	reply, _ = f.say(t, authed, "add aop amount 5")
	require.Equal(t, `Please provide AOP name and amount (e.g., 'add aop name "FY2024" amount 1000000')`, reply)

	reply, _ = f.say(t, authed, "reconcile aop 1")
	require.Equal(t, "AOP Reconciliation Results:\n"+
		"AOP Amount: $800,000.00\n"+
		"Total Budget: $900,000.00\n"+
		"Difference: $-100,000.00\n"+
		"Status: non-compliant", reply)

	reply, _ = f.say(t, authed, "reconcile aop 2")
	require.Contains(t, reply, "Difference: $749.50\nStatus: compliant")

	reply, _ = f.say(t, authed, "reconcile aop 9")
	require.Equal(t, "Error reconciling AOP: AOP not found: 9", reply)
}

func TestAddBudgetAndUpdateState(t *testing.T) {
	f := newFixture()
	reply, _ := f.say(t, asAlice, `add budget aop 1 amount 2500.75 project "Cloud Migration" description "phase one"`)
	require.Equal(t, "Budget created successfully with ID: BUD0000ABCD", reply)
	require.Len(t, f.budgets.created, 1)
	in := f.budgets.created[0]
	require.Equal(t, "alice", in.EmployeeLDAP)
	require.Equal(t, "Cloud Migration", in.Project)
	require.Equal(t, "phase one", in.Description)
	require.True(t, decimal.RequireFromString("2500.75").Equal(in.Amount))

	_, _ = f.say(t, asAlice, `add budget aop 1 amount 10 project "Tooling" for bob`)
	require.Equal(t, "bob", f.budgets.created[1].EmployeeLDAP)

	reply, _ = f.say(t, asAlice, `add budget amount 10`)
	require.Equal(t, "Please provide: AOP ID, project name (in quotes)", reply)

	reply, _ = f.say(t, authed, "update budget state bud0000abcd to inactive")
	require.Equal(t, "Budget BUD0000ABCD state updated to inactive", reply)
}

func TestChartBudgets(t *testing.T) {
	f := newFixture()
	f.budgets.chart = budgets.ChartData{
		Labels:   []string{"Alice Smith"},
		Datasets: []budgets.ChartDataset{{Label: "FY2024", Data: []float64{1000}}},
	}
	reply, _ := f.conv.Handle(context.Background(), authed, "chart budgets for aop 1")
	require.True(t, reply.IsChart())
	chart, ok := reply.Payload().(*Chart)
	require.True(t, ok)
	require.Equal(t, "chart", chart.Type)
	require.Equal(t, "bar", chart.ChartType)
	require.Equal(t, f.budgets.chart, chart.Data)
}

func TestFaultBoundaryRecoversPanics(t *testing.T) {
	f := newFixture()
	f.budgets.panicChart = true
	reply, state := f.conv.Handle(context.Background(), authed, "chart budgets for aop 1")
	require.Equal(t, "Error processing request: chart renderer exploded", reply.Text)
	require.True(t, state.Authenticated)
	require.Equal(t, 1, f.observed["chart_budgets/error"])

	text, _ := f.say(t, state, "reconcile aop 1")
	require.True(t, strings.HasPrefix(text, "AOP Reconciliation Results:"))
}

func TestExternalQuery(t *testing.T) {
	f := newFixture()
	reply, _ := f.say(t, authed, "what's the weather like?")
	require.Equal(t, ExternalQueryReply, reply)
	require.Equal(t, 1, f.observed["external_query/ok"])
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"0":          "$0.00",
		"5.5":        "$5.50",
		"999.999":    "$1,000.00",
		"1234567.89": "$1,234,567.89",
		"-0.5":       "$-0.50",
	}
	for in, want := range cases {
		require.Equal(t, want, formatMoney(decimal.RequireFromString(in)), in)
	}
}
