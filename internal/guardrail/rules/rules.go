package rules

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	"agentsim/internal/agent/models"
	"agentsim/pkg/platform/sentinel"
)

// Input is the activation exposed to rule conditions.
type Input struct {
	Amount        float64
	Category      string
	Merchant      string
	AgentType     models.AgentType
	RiskLevel     int
	PaymentMethod models.PaymentMethod
}

type compiledRule struct {
	rule    models.Rule
	program cel.Program
}

// Evaluator runs an agent's custom rules. Conditions are compiled once at
// construction so a malformed rule fails fast.
type Evaluator struct {
	rules []compiledRule
}

// NewEnv declares the variables rule conditions may reference.
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("category", cel.StringType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("agent_type", cel.StringType),
		cel.Variable("risk_level", cel.IntType),
		cel.Variable("payment_method", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEvaluator compiles rules. Every condition must be a boolean expression.
func NewEvaluator(rules []models.Rule) (*Evaluator, error) {
	if len(rules) == 0 {
		return &Evaluator{}, nil
	}
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Action.IsValid() {
			return nil, fmt.Errorf("rule %s: unknown action %q: %w", r.ID, r.Action, sentinel.ErrInvalidInput)
		}
		ast, iss := env.Compile(r.Condition)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("rule %s: compile %q: %w: %w", r.ID, r.Condition, sentinel.ErrInvalidInput, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s: condition must be boolean, got %s: %w", r.ID, ast.OutputType(), sentinel.ErrInvalidInput)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: program: %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{rule: r, program: prg})
	}

	sort.SliceStable(compiled, func(a, b int) bool {
		return compiled[a].rule.Priority > compiled[b].rule.Priority
	})
	return &Evaluator{rules: compiled}, nil
}

// Len reports how many rules are loaded.
func (e *Evaluator) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Evaluate returns the highest-priority rule whose condition holds, or nil.
// Ties keep declaration order.
func (e *Evaluator) Evaluate(in Input) (*models.Rule, error) {
	if e == nil || len(e.rules) == 0 {
		return nil, nil
	}
	activation := map[string]any{
		"amount":         in.Amount,
		"category":       in.Category,
		"merchant":       in.Merchant,
		"agent_type":     string(in.AgentType),
		"risk_level":     int64(in.RiskLevel),
		"payment_method": string(in.PaymentMethod),
	}

	for _, cr := range e.rules {
		out, _, err := cr.program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("rule %s: eval: %w", cr.rule.ID, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("rule %s: condition did not produce a boolean", cr.rule.ID)
		}
		if matched {
			rule := cr.rule
			return &rule, nil
		}
	}
	return nil, nil
}
