package ledger

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/sales"
)

// RevenueRule routes revenue to Account when Expression evaluates to true.
//
// Expressions see:
//
//	kind      string  "sale" | "refund"
//	subtotal  double
//	total     double
//	lines     list of maps with keys category (string), description (string),
//	          quantity, amount, cost (double), stock (bool)
//
// e.g. `lines.exists(l, l.category == "beverages")`.
type RevenueRule struct {
	Name       string `koanf:"name" json:"name"`
	Expression string `koanf:"expression" json:"expression"`
	Account    string `koanf:"account" json:"account"`
}

type compiledRule struct {
	RevenueRule
	program cel.Program
}

// RevenueCategorizer selects the revenue account for a transaction. Rules are
// evaluated in declaration order; the first true rule wins, else the default.
type RevenueCategorizer struct {
	rules          []compiledRule
	defaultAccount string
}

// NewRevenueCategorizer compiles the rules. A rule that fails to compile is a
// configuration error.
func NewRevenueCategorizer(rules []RevenueRule, defaultAccount string) (*RevenueCategorizer, error) {
	if defaultAccount == "" {
		return nil, apperror.NewValidation("default revenue account is required")
	}

	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("total", cel.DoubleType),
		cel.Variable("lines", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule environment: %w", err)
	}

	c := &RevenueCategorizer{defaultAccount: defaultAccount}
	for i, r := range rules {
		if r.Account == "" {
			return nil, apperror.NewValidation(fmt.Sprintf("revenue rule %d: account is required", i))
		}
		ast, iss := env.Compile(r.Expression)
		if iss != nil && iss.Err() != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("revenue rule %q: %v", r.Name, iss.Err()))
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("revenue rule %q: %v", r.Name, err))
		}
		c.rules = append(c.rules, compiledRule{RevenueRule: r, program: prg})
	}
	return c, nil
}

// Account returns the revenue account for t.
func (c *RevenueCategorizer) Account(t *sales.Transaction) (string, error) {
	if len(c.rules) == 0 {
		return c.defaultAccount, nil
	}

	vars := ruleInput(t)
	for _, r := range c.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			return "", fmt.Errorf("evaluate revenue rule %q: %w", r.Name, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return "", fmt.Errorf("revenue rule %q returned %T, want bool", r.Name, out.Value())
		}
		if matched {
			return r.Account, nil
		}
	}
	return c.defaultAccount, nil
}

func ruleInput(t *sales.Transaction) map[string]any {
	lines := make([]any, 0, len(t.Lines))
	for _, l := range t.Lines {
		lines = append(lines, map[string]any{
			"category":    l.Category,
			"description": l.Description,
			"quantity":    l.Quantity.InexactFloat64(),
			"amount":      l.Amount().InexactFloat64(),
			"cost":        l.Cost().InexactFloat64(),
			"stock":       l.TracksStock(),
		})
	}
	return map[string]any{
		"kind":     string(t.Kind),
		"subtotal": t.Subtotal.InexactFloat64(),
		"total":    t.TotalAmount.InexactFloat64(),
		"lines":    lines,
	}
}
