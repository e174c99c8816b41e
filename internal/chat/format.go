package chat

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	"github.com/budgetdesk/budgetdesk/internal/budgets"
	"github.com/budgetdesk/budgetdesk/internal/employees"
)

var (
	printer  = message.NewPrinter(language.English)
	titleCap = cases.Title(language.English)
)

// formatMoney renders an amount as $1,234.56. Negative amounts render as $-1,234.56.
func formatMoney(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	cents := d.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("$%s%s.%02d", sign, printer.Sprintf("%d", whole.IntPart()), cents)
}

func titleName(s string) string {
	return titleCap.String(s)
}

// formatOrgTree renders one "- Name (ldap)" line per node, indented two spaces per level.
func formatOrgTree(root *employees.OrgNode) string {
	type item struct {
		node  *employees.OrgNode
		depth int
	}
	var lines []string
	stack := []item{{node: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		lines = append(lines, fmt.Sprintf("%s- %s (%s)", strings.Repeat("  ", top.depth), top.node.Name, top.node.LDAP))
		for i := len(top.node.Reports) - 1; i >= 0; i-- {
			stack = append(stack, item{node: top.node.Reports[i], depth: top.depth + 1})
		}
	}
	return "Organization Structure:\n" + strings.Join(lines, "\n")
}

func formatBudgetSummary(s budgets.Summary) string {
	lines := []string{
		"Budget Summary:",
		"\nTotal Budget: " + formatMoney(s.Total),
		"\nBreakdown by Employee:",
	}
	for _, e := range s.ByEmployee {
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Name, formatMoney(e.Amount)))
	}
	return strings.Join(lines, "\n")
}

func formatReconciliation(r aop.ReconcileReport) string {
	status := "non-compliant"
	if r.IsCompliant {
		status = "compliant"
	}
	return "AOP Reconciliation Results:\n" +
		"AOP Amount: " + formatMoney(r.AOPAmount) + "\n" +
		"Total Budget: " + formatMoney(r.TotalBudget) + "\n" +
		"Difference: " + formatMoney(r.Difference) + "\n" +
		"Status: " + status
}
