package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/budgetdesk/budgetdesk/internal/aop"
	"github.com/budgetdesk/budgetdesk/internal/budgets"
	"github.com/budgetdesk/budgetdesk/internal/chat"
	"github.com/budgetdesk/budgetdesk/internal/costcenters"
	"github.com/budgetdesk/budgetdesk/internal/employees"
	"github.com/budgetdesk/budgetdesk/internal/procurement"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// Services holds the domain engines backed by one PostgreSQL pool.
type Services struct {
	Audit       *shared.AuditLogger
	CostCenters *costcenters.Service
	Employees   *employees.Service
	AOP         *aop.Service
	Budgets     *budgets.Service
	Procurement *procurement.Service
}

// NewServices wires repositories and services.
func NewServices(pool *pgxpool.Pool) *Services {
	audit := shared.NewAuditLogger(pool)
	costCenters := costcenters.NewService(costcenters.NewRepository(pool))
	emps := employees.NewService(employees.NewRepository(pool), costCenters, audit)
	plans := aop.NewService(aop.NewRepository(pool), costCenters, audit)
	return &Services{
		Audit:       audit,
		CostCenters: costCenters,
		Employees:   emps,
		AOP:         plans,
		Budgets:     budgets.NewService(budgets.NewRepository(pool), plans, emps, audit),
		Procurement: procurement.NewService(procurement.NewRepository(pool), emps, audit),
	}
}

// Conversation builds the chat engine over the services.
func (s *Services) Conversation(passphrase string, observer chat.IntentObserver, logger *slog.Logger) *chat.Conversation {
	return chat.NewConversation(passphrase, chat.Dependencies{
		Employees:   s.Employees,
		CostCenters: s.CostCenters,
		Plans:       s.AOP,
		Budgets:     s.Budgets,
		Observer:    observer,
	}, logger)
}
