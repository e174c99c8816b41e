package chat

import (
	"regexp"
	"strings"
)

// Kind is the lexical shape of a field value.
type Kind int

const (
	KindWord Kind = iota
	KindQuoted
	KindNumber
	KindInt
	KindEmail
	KindEnum
)

var valuePatterns = map[Kind]string{
	KindWord:   `(\w+)`,
	KindQuoted: `"([^"]+)"`,
	KindNumber: `(\d+(?:\.\d{1,2})?)(?:[\s,;!?]|$)`,
	KindInt:    `(\d+)(?:[\s,;!?]|$)`,
	KindEmail:  `([\w.+-]+@[\w-]+(?:\.[\w-]+)+)`,
}

// Field names.
const (
	FieldLDAP        = "ldap"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldEmail       = "email"
	FieldLevel       = "level"
	FieldCostCenter  = "cost_center"
	FieldManager     = "manager"
	FieldName        = "name"
	FieldAmount      = "amount"
	FieldAOP         = "aop"
	FieldProject     = "project"
	FieldDescription = "description"
	FieldEmployee    = "employee"
	FieldBudget      = "budget"
	FieldState       = "state"
)

type field struct {
	name     string
	label    string
	kind     Kind
	enum     []string
	required bool
	// prompt names the field in the missing-field list.
	prompt string
	re     *regexp.Regexp
}

type grammar struct {
	fields []field
	// fixedPrompt, when set, replaces the missing-field list.
	fixedPrompt string
	// listPrompt prefixes the missing-field list.
	listPrompt string
}

func (f field) compile() field {
	value := valuePatterns[f.kind]
	if f.kind == KindEnum {
		value = `(` + strings.Join(f.enum, "|") + `)\b`
	}
	f.re = regexp.MustCompile(`\b` + f.label + `\s+` + value)
	return f
}

func fields(fs ...field) []field {
	out := make([]field, len(fs))
	for i, f := range fs {
		out[i] = f.compile()
	}
	return out
}

var grammars = map[Intent]grammar{
	IntentAddUser: {
		listPrompt: "Please provide the following information: ",
		fields: fields(
			field{name: FieldLDAP, label: `ldap`, kind: KindWord, required: true, prompt: "LDAP username"},
			field{name: FieldFirstName, label: `first name`, kind: KindWord, required: true, prompt: "first name"},
			field{name: FieldLastName, label: `last name`, kind: KindWord, required: true, prompt: "last name"},
			field{name: FieldEmail, label: `email`, kind: KindEmail, required: true, prompt: "email"},
			field{name: FieldLevel, label: `level`, kind: KindInt, required: true, prompt: "level (1-12)"},
			field{name: FieldCostCenter, label: `cost center`, kind: KindWord, required: true, prompt: "cost center code"},
			field{name: FieldManager, label: `manager`, kind: KindWord},
		),
	},
	IntentRemoveUser: {
		fixedPrompt: "Please specify the LDAP username to remove",
		fields: fields(
			field{name: FieldLDAP, label: `remove user`, kind: KindWord, required: true, prompt: "LDAP username"},
		),
	},
	IntentChartBudgets: {
		fixedPrompt: "Please specify an AOP ID (e.g., 'chart budgets for aop 1')",
		fields: fields(
			field{name: FieldAOP, label: `for aop`, kind: KindInt, required: true, prompt: "AOP ID"},
		),
	},
	IntentAddAOP: {
		fixedPrompt: `Please provide AOP name and amount (e.g., 'add aop name "FY2024" amount 1000000')`,
		fields: fields(
			field{name: FieldName, label: `name`, kind: KindQuoted, required: true, prompt: "AOP name (in quotes)"},
			field{name: FieldAmount, label: `amount`, kind: KindNumber, required: true, prompt: "amount"},
		),
	},
	IntentAddBudget: {
		listPrompt: "Please provide: ",
		fields: fields(
			field{name: FieldAOP, label: `aop`, kind: KindInt, required: true, prompt: "AOP ID"},
			field{name: FieldAmount, label: `amount`, kind: KindNumber, required: true, prompt: "amount"},
			field{name: FieldProject, label: `project`, kind: KindQuoted, required: true, prompt: "project name (in quotes)"},
			field{name: FieldDescription, label: `description`, kind: KindQuoted},
			field{name: FieldEmployee, label: `for`, kind: KindWord},
		),
	},
	IntentUpdateBudgetState: {
		fixedPrompt: "Please specify budget ID and state (e.g., 'update budget state BUD001 to inactive')",
		fields: fields(
			field{name: FieldBudget, label: `budget state`, kind: KindWord, required: true, prompt: "budget ID"},
			field{name: FieldState, label: `to`, kind: KindEnum, enum: []string{"active", "inactive"}, required: true, prompt: "state"},
		),
	},
	IntentReconcileAOP: {
		fixedPrompt: "Please specify AOP ID (e.g., 'reconcile aop 1')",
		fields: fields(
			field{name: FieldAOP, label: `reconcile aop`, kind: KindInt, required: true, prompt: "AOP ID"},
		),
	},
}

var identityPattern = regexp.MustCompile(`(?:^|\s)as\s+(\w+)`)
