// Package chat turns free-text messages into budget operations.
package chat

import "strings"

// Intent identifies the operation a message asks for.
type Intent int

const (
	IntentExternalQuery Intent = iota
	IntentAddUser
	IntentRemoveUser
	IntentShowOrganization
	IntentShowBudget
	IntentChartBudgets
	IntentAddAOP
	IntentAddBudget
	IntentUpdateBudgetState
	IntentReconcileAOP
)

var intentNames = map[Intent]string{
	IntentExternalQuery:     "external_query",
	IntentAddUser:           "add_user",
	IntentRemoveUser:        "remove_user",
	IntentShowOrganization:  "show_organization",
	IntentShowBudget:        "show_budget",
	IntentChartBudgets:      "chart_budgets",
	IntentAddAOP:            "add_aop",
	IntentAddBudget:         "add_budget",
	IntentUpdateBudgetState: "update_budget_state",
	IntentReconcileAOP:      "reconcile_aop",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return "unknown"
}

// Order matters: the first matching prefix wins.
var intentPrefixes = []struct {
	prefix string
	intent Intent
}{
	{"add user", IntentAddUser},
	{"remove user", IntentRemoveUser},
	{"show me my organization", IntentShowOrganization},
	{"show me my budget", IntentShowBudget},
	{"chart budgets", IntentChartBudgets},
	{"add aop", IntentAddAOP},
	{"add budget", IntentAddBudget},
	{"update budget state", IntentUpdateBudgetState},
	{"reconcile aop", IntentReconcileAOP},
}

// Classify maps a message to its intent. Anything without a known prefix is an
// external query.
func Classify(message string) Intent {
	line := strings.ToLower(strings.TrimSpace(message))
	for _, p := range intentPrefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.intent
		}
	}
	return IntentExternalQuery
}
