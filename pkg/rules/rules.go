// Package rules holds the named functions that resolve computed transitions.
//
// A graph references a rule by name so it stays plain, hashable data. Rules must
// be pure: given the same answer they return the same node id.
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/aretw0/chatflow/pkg/domain"
)

// ExprPrefix namespaces rules registered from an expression so the expression
// text becomes part of the rule name, and therefore of the flow hash.
const ExprPrefix = "expr:"

// Rule maps an answer to the id of the next node.
type Rule func(answer any) (string, error)

// Registry manages the available rules.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]Rule),
	}
}

// Register adds a rule to the registry.
// If a rule with the same name exists, it is overwritten.
func (r *Registry) Register(name string, rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[name] = rule
}

// RegisterMap registers a rule that looks the answer up in a table.
// Answers are compared by their string form; unknown answers fall back to
// fallback, or fail when fallback is empty.
func (r *Registry) RegisterMap(name string, table map[string]string, fallback string) {
	routes := make(map[string]string, len(table))
	for k, v := range table {
		routes[k] = v
	}
	r.Register(name, func(answer any) (string, error) {
		if target, ok := routes[fmt.Sprint(answer)]; ok {
			return target, nil
		}
		if fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("no route for answer %v", answer)
	})
}

// RegisterExpr compiles expression and registers it under ExprPrefix+expression.
// The expression sees the submitted value as `answer` and must yield a string.
func (r *Registry) RegisterExpr(expression string) (string, error) {
	program, err := compile(expression)
	if err != nil {
		return "", err
	}
	name := ExprPrefix + expression
	r.Register(name, func(answer any) (string, error) {
		out, err := exprlang.Run(program, map[string]any{"answer": answer})
		if err != nil {
			return "", err
		}
		target, ok := out.(string)
		if !ok {
			return "", fmt.Errorf("expression %q returned %T, want string", expression, out)
		}
		return target, nil
	})
	return name, nil
}

// MapExpression renders a routing table as an expression over `answer`.
// Keys are sorted so equal tables yield equal rule names. A missing key
// evaluates to fallback, or fails when fallback is empty.
func MapExpression(table map[string]string, fallback string) string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, strconv.Quote(k)+": "+strconv.Quote(table[k]))
	}

	expr := "{" + strings.Join(pairs, ", ") + "}[string(answer)]"
	if fallback != "" {
		expr += " ?? " + strconv.Quote(fallback)
	}
	return expr
}

func compile(expression string) (*exprvm.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return program, nil
}

// Resolve looks up a rule by name and applies it to answer.
// Unregistered names carrying ExprPrefix are compiled and cached.
func (r *Registry) Resolve(name string, answer any) (string, error) {
	r.mu.RLock()
	rule, ok := r.rules[name]
	r.mu.RUnlock()

	if !ok && strings.HasPrefix(name, ExprPrefix) {
		// Expression rules are self-describing; compile on first use.
		if _, err := r.RegisterExpr(strings.TrimPrefix(name, ExprPrefix)); err != nil {
			return "", fmt.Errorf("%w: %s: %v", domain.ErrRuleNotFound, name, err)
		}
		r.mu.RLock()
		rule, ok = r.rules[name]
		r.mu.RUnlock()
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrRuleNotFound, name)
	}

	target, err := rule(answer)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrRuleFailed, name, err)
	}
	return target, nil
}

// Has reports whether a rule is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rules[name]
	return ok
}

// Names returns the registered rule names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
