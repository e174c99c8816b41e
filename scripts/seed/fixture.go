package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/budgetdesk/budgetdesk/internal/aop"
)

// Fixture is the seed document. Entries are applied in file order, so managers must be
// listed before their reports.
type Fixture struct {
	CostCenters []CostCenterSeed `yaml:"cost_centers"`
	Employees   []EmployeeSeed   `yaml:"employees"`
	AOPs        []AOPSeed        `yaml:"aops"`
	Budgets     []BudgetSeed     `yaml:"budgets"`
}

type CostCenterSeed struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type EmployeeSeed struct {
	LDAP       string `yaml:"ldap"`
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Email      string `yaml:"email"`
	Level      int    `yaml:"level"`
	CostCenter string `yaml:"cost_center"`
	Manager    string `yaml:"manager"`
}

type AOPSeed struct {
	Name    string          `yaml:"name"`
	Amount  decimal.Decimal `yaml:"amount"`
	State   aop.State       `yaml:"state"`
	Details []AOPDetailSeed `yaml:"details"`
}

type AOPDetailSeed struct {
	CostCenter string          `yaml:"cost_center"`
	Amount     decimal.Decimal `yaml:"amount"`
}

type BudgetSeed struct {
	AOP         string          `yaml:"aop"`
	Owner       string          `yaml:"owner"`
	Project     string          `yaml:"project"`
	Description string          `yaml:"description"`
	Amount      decimal.Decimal `yaml:"amount"`
	Active      bool            `yaml:"active"`
}

// DecodeFixture parses and checks a fixture document.
func DecodeFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Fixture{}, errors.New("fixture is empty")
		}
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.check(); err != nil {
		return Fixture{}, err
	}
	return f, nil
}

func (f Fixture) check() error {
	centers := make(map[string]bool, len(f.CostCenters))
	for _, cc := range f.CostCenters {
		code := strings.ToUpper(strings.TrimSpace(cc.Code))
		if code == "" {
			return errors.New("cost center without code")
		}
		centers[code] = true
	}

	seen := make(map[string]bool, len(f.Employees))
	for _, e := range f.Employees {
		ldap := strings.ToLower(strings.TrimSpace(e.LDAP))
		if ldap == "" {
			return errors.New("employee without ldap")
		}
		if e.CostCenter != "" && !centers[strings.ToUpper(e.CostCenter)] {
			return fmt.Errorf("employee %s: unknown cost center %s", ldap, e.CostCenter)
		}
		if m := strings.ToLower(strings.TrimSpace(e.Manager)); m != "" && !seen[m] {
			return fmt.Errorf("employee %s: manager %s must be listed first", ldap, m)
		}
		seen[ldap] = true
	}

	plans := make(map[string]bool, len(f.AOPs))
	for _, p := range f.AOPs {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("aop without name")
		}
		if p.State != "" {
			if _, err := aop.ParseState(string(p.State)); err != nil {
				return fmt.Errorf("aop %s: %w", p.Name, err)
			}
		}
		for _, d := range p.Details {
			if !centers[strings.ToUpper(d.CostCenter)] {
				return fmt.Errorf("aop %s: unknown cost center %s", p.Name, d.CostCenter)
			}
		}
		plans[p.Name] = true
	}

	for _, b := range f.Budgets {
		if !plans[b.AOP] {
			return fmt.Errorf("budget %s: unknown aop %s", b.Project, b.AOP)
		}
		if !seen[strings.ToLower(b.Owner)] {
			return fmt.Errorf("budget %s: unknown owner %s", b.Project, b.Owner)
		}
	}
	return nil
}
