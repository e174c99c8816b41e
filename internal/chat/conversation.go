package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	"github.com/budgetdesk/budgetdesk/internal/budgets"
	"github.com/budgetdesk/budgetdesk/internal/costcenters"
	"github.com/budgetdesk/budgetdesk/internal/employees"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// Fixed replies.
const (
	AuthSuccessReply   = "Authentication successful. How can I help you today?"
	AuthPromptReply    = "Please authenticate with the correct code to continue."
	IdentityPrompt     = "Please specify your LDAP username first (use 'as <ldap>')"
	NoBudgetInfoReply  = "No budget information found"
	ExternalQueryReply = "I understand this is a non-budget related query. [External LLM response would be provided here]"
)

// State is the per-session conversation state.
type State struct {
	Authenticated bool
	// LDAP is the bound identity, empty until the client says "as <ldap>".
	LDAP string
}

// EmployeeEngine is the subset of the employee service the conversation drives.
type EmployeeEngine interface {
	GetActive(ctx context.Context, ldap string) (employees.Employee, error)
	CreateEmployee(ctx context.Context, input employees.CreateInput) (employees.Employee, error)
	RemoveEmployee(ctx context.Context, ldap string) error
	GetOrganizationHierarchy(ctx context.Context, ldap string) (*employees.OrgNode, error)
}

// CostCenterLookup resolves cost center codes.
type CostCenterLookup interface {
	GetByCode(ctx context.Context, code string) (costcenters.CostCenter, error)
}

// PlanEngine is the subset of the AOP service the conversation drives.
type PlanEngine interface {
	CreateAOP(ctx context.Context, name string, total decimal.Decimal) (aop.AOP, error)
	ReconcileAOP(ctx context.Context, id int64) (aop.ReconcileReport, error)
}

// BudgetEngine is the subset of the budget service the conversation drives.
type BudgetEngine interface {
	CreateBudget(ctx context.Context, input budgets.CreateInput) (budgets.Budget, error)
	UpdateBudgetState(ctx context.Context, budgetID string, active bool) (budgets.Budget, error)
	GetOrganizationBudgetSummary(ctx context.Context, ldap string) (budgets.Summary, error)
	GetBudgetChartData(ctx context.Context, aopID int64) (budgets.ChartData, error)
}

// Responder answers messages that match no budget intent.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}

// StubResponder returns a fixed placeholder.
type StubResponder struct{}

// Respond implements Responder.
func (StubResponder) Respond(context.Context, string) (string, error) {
	return ExternalQueryReply, nil
}

// IntentObserver receives one call per dispatched message.
type IntentObserver interface {
	ObserveIntent(intent, outcome string)
}

// Outcomes reported to IntentObserver.
const (
	OutcomeOK         = "ok"
	OutcomeIncomplete = "incomplete"
	OutcomeError      = "error"
)

// Dependencies wires the engines behind a Conversation.
type Dependencies struct {
	Employees   EmployeeEngine
	CostCenters CostCenterLookup
	Plans       PlanEngine
	Budgets     BudgetEngine
	Responder   Responder
	Observer    IntentObserver
}

// Conversation authenticates messages, binds identities and dispatches commands.
// It keeps no per-session state of its own.
type Conversation struct {
	passphrase string
	deps       Dependencies
	logger     *slog.Logger
}

// NewConversation constructs a Conversation. The passphrase is compared verbatim
// against the trimmed message.
func NewConversation(passphrase string, deps Dependencies, logger *slog.Logger) *Conversation {
	if deps.Responder == nil {
		deps.Responder = StubResponder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{passphrase: strings.TrimSpace(passphrase), deps: deps, logger: logger}
}

var actions = map[Intent]string{
	IntentExternalQuery:     "processing request",
	IntentAddUser:           "creating user",
	IntentRemoveUser:        "removing user",
	IntentShowOrganization:  "retrieving organization",
	IntentShowBudget:        "retrieving budget",
	IntentChartBudgets:      "generating chart",
	IntentAddAOP:            "creating AOP",
	IntentAddBudget:         "creating budget",
	IntentUpdateBudgetState: "updating budget state",
	IntentReconcileAOP:      "reconciling AOP",
}

// Handle processes one message and returns the reply together with the next state.
func (c *Conversation) Handle(ctx context.Context, state State, message string) (Reply, State) {
	next := state
	if !state.Authenticated {
		if c.passphrase != "" && strings.TrimSpace(message) == c.passphrase {
			next.Authenticated = true
			return Text(AuthSuccessReply), next
		}
		return Text(AuthPromptReply), next
	}

	if state.LDAP == "" {
		if target, ok := IdentityTarget(message); ok {
			emp, err := c.deps.Employees.GetActive(ctx, target)
			if err != nil {
				return Text(fmt.Sprintf("Error setting user: %v", err)), next
			}
			next.LDAP = emp.LDAP
			return Text("Now operating as " + emp.FirstName + " " + emp.LastName), next
		}
	} else {
		ctx = shared.ContextWithActor(ctx, state.LDAP)
	}

	return c.dispatch(ctx, next, Parse(message)), next
}

func (c *Conversation) dispatch(ctx context.Context, state State, cmd Command) (reply Reply) {
	outcome := OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("chat dispatch panic", slog.String("intent", cmd.Intent.String()), slog.Any("panic", r))
			reply = Text(fmt.Sprintf("Error processing request: %v", r))
			outcome = OutcomeError
		}
		if c.deps.Observer != nil {
			c.deps.Observer.ObserveIntent(cmd.Intent.String(), outcome)
		}
	}()

	if cmd.Err != nil || !cmd.Complete() {
		outcome = OutcomeIncomplete
	}

	var err error
	switch cmd.Intent {
	case IntentAddUser:
		reply, err = c.addUser(ctx, cmd)
	case IntentRemoveUser:
		reply, err = c.removeUser(ctx, cmd)
	case IntentShowOrganization:
		reply, err = c.showOrganization(ctx, state)
	case IntentShowBudget:
		reply, err = c.showBudget(ctx, state)
	case IntentChartBudgets:
		reply, err = c.chartBudgets(ctx, cmd)
	case IntentAddAOP:
		reply, err = c.addAOP(ctx, cmd)
	case IntentAddBudget:
		reply, err = c.addBudget(ctx, state, cmd)
	case IntentUpdateBudgetState:
		reply, err = c.updateBudgetState(ctx, cmd)
	case IntentReconcileAOP:
		reply, err = c.reconcileAOP(ctx, cmd)
	default:
		reply, err = c.externalQuery(ctx, cmd)
	}
	if err != nil {
		outcome = OutcomeError
		c.logger.Debug("chat command failed", slog.String("intent", cmd.Intent.String()), slog.Any("error", err))
		return Text(fmt.Sprintf("Error %s: %v", actions[cmd.Intent], err))
	}
	return reply
}

func (c *Conversation) addUser(ctx context.Context, cmd Command) (Reply, error) {
	if cmd.Err != nil {
		return Text(cmd.Err.Error()), nil
	}
	if code, ok := cmd.Value(FieldCostCenter); ok {
		if _, err := c.deps.CostCenters.GetByCode(ctx, code); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Text(fmt.Sprintf("Cost center %s not found", costcenters.NormalizeCode(code))), nil
			}
			return Reply{}, err
		}
	}
	if !cmd.Complete() {
		return Text(cmd.Prompt()), nil
	}
	level, err := cmd.Int(FieldLevel)
	if err != nil {
		return Reply{}, err
	}
	input := employees.CreateInput{
		LDAP:           cmd.Fields[FieldLDAP],
		FirstName:      titleName(cmd.Fields[FieldFirstName]),
		LastName:       titleName(cmd.Fields[FieldLastName]),
		Email:          cmd.Fields[FieldEmail],
		Level:          int(level),
		CostCenterCode: cmd.Fields[FieldCostCenter],
		ManagerLDAP:    cmd.Fields[FieldManager],
	}
	emp, err := c.deps.Employees.CreateEmployee(ctx, input)
	if err != nil {
		return Reply{}, err
	}
	return Text(fmt.Sprintf("User %s created successfully", emp.LDAP)), nil
}

func (c *Conversation) removeUser(ctx context.Context, cmd Command) (Reply, error) {
	if !cmd.Complete() {
		return Text(cmd.Prompt()), nil
	}
	ldap := cmd.Fields[FieldLDAP]
	if err := c.deps.Employees.RemoveEmployee(ctx, ldap); err != nil {
		return Reply{}, err
	}
	return Text(fmt.Sprintf("User %s has been removed", ldap)), nil
}

func (c *Conversation) showOrganization(ctx context.Context, state State) (Reply, error) {
	if state.LDAP == "" {
		return Text(IdentityPrompt), nil
	}
	tree, err := c.deps.Employees.GetOrganizationHierarchy(ctx, state.LDAP)
	if err != nil {
		return Reply{}, err
	}
	return Text(formatOrgTree(tree)), nil
}

func (c *Conversation) showBudget(ctx context.Context, state State) (Reply, error) {
	if state.LDAP == "" {
		return Text(IdentityPrompt), nil
	}
	summary, err := c.deps.Budgets.GetOrganizationBudgetSummary(ctx, state.LDAP)
	if err != nil {
		return Reply{}, err
	}
	if len(summary.ByEmployee) == 0 {
		return Text(NoBudgetInfoReply), nil
	}
	return Text(formatBudgetSummary(summary)), nil
}

func (c *Conversation) chartBudgets(ctx context.Context, cmd Command) (Reply, error) {
	if !cmd.Complete() {
		return Text(cmd.Prompt()), nil
	}
	id, err := cmd.Int(FieldAOP)
	if err != nil {
		return Reply{}, err
	}
	data, err := c.deps.Budgets.GetBudgetChartData(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	return BarChart(data), nil
}

func (c *Conversation) addAOP(ctx context.Context, cmd Command) (Reply, error) {
	if !cmd.Complete() {
		return Text(cmd.Prompt()), nil
	}
	amount, err := cmd.Decimal(FieldAmount)
	if err != nil {
		return Reply{}, err
	}
	plan, err := c.deps.Plans.CreateAOP(ctx, cmd.Fields[FieldName], amount)
	if err != nil {
		return Reply{}, err
	}
	return Text(fmt.Sprintf("AOP %s created with amount %s", plan.Name, formatMoney(plan.TotalAmount))), nil
}

func (c *Conversation) addBudget(ctx context.Context, state State, cmd Command) (Reply, error) {
	if state.LDAP == "" {
		return Text(IdentityPrompt), nil
	}
	if !cmd.Complete() {
		return Text(cmd.Prompt()), nil
	}
	aopID, err := cmd.Int(FieldAOP)
	if err != nil {
		return Reply{}, err
	}
	amount, err := cmd.Decimal(FieldAmount)
	if err != nil {
		return Reply{}, err
	}
	owner := state.LDAP
	if v, ok := cmd.Value(FieldEmployee); ok {
		owner = v
	}
	b, err := c.deps.Budgets.CreateBudget(ctx, budgets.CreateInput{
		AOPID:        aopID,
		EmployeeLDAP: owner,
		Project:      cmd.Fields[FieldProject],
		Description:  cmd.Fields[FieldDescription],
		Amount:       amount,
	})
	if err != nil {
		return Reply{}, err
	}
	return Text("Budget created successfully with ID: " + b.BudgetID), nil
}

func (c *Conversation) updateBudgetState(ctx context.Context, cmd Command) (Reply, error) {
	if !cmd.Complete() {
		return Text(cmd.Prompt()), nil
	}
	target := cmd.Fields[FieldState]
	b, err := c.deps.Budgets.UpdateBudgetState(ctx, cmd.Fields[FieldBudget], target == "active")
	if err != nil {
		return Reply{}, err
	}
	return Text(fmt.Sprintf("Budget %s state updated to %s", b.BudgetID, target)), nil
}

func (c *Conversation) reconcileAOP(ctx context.Context, cmd Command) (Reply, error) {
	if !cmd.Complete() {
		return Text(cmd.Prompt()), nil
	}
	id, err := cmd.Int(FieldAOP)
	if err != nil {
		return Reply{}, err
	}
	report, err := c.deps.Plans.ReconcileAOP(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	return Text(formatReconciliation(report)), nil
}

func (c *Conversation) externalQuery(ctx context.Context, cmd Command) (Reply, error) {
	text, err := c.deps.Responder.Respond(ctx, cmd.Raw)
	if err != nil {
		return Reply{}, err
	}
	return Text(text), nil
}
