package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/rules"
)

// Report is the outcome of ValidateFlow.
type Report struct {
	// Unreachable lists nodes no path from the start reaches.
	Unreachable []string
	// HostRules lists named rules the embedding program must register.
	HostRules []string
}

// ValidateFlow lints g beyond Graph.Validate: expression rules must compile and
// every node should be reachable from the start. Nodes behind a named rule
// cannot be followed, so reachability is only reported when none exist.
func ValidateFlow(g *domain.Graph) (Report, error) {
	var report Report
	if err := g.Validate(); err != nil {
		return report, err
	}

	reg := rules.NewRegistry()
	var errs []string
	hostRules := make(map[string]bool)
	for _, id := range g.IDs() {
		n := g.Nodes[id]
		if n.Next.Kind != domain.NextComputed {
			continue
		}
		if expr, ok := strings.CutPrefix(n.Next.Rule, rules.ExprPrefix); ok {
			if _, err := reg.RegisterExpr(expr); err != nil {
				errs = append(errs, fmt.Sprintf("node '%s': %v", id, err))
			}
			continue
		}
		if !hostRules[n.Next.Rule] {
			hostRules[n.Next.Rule] = true
			report.HostRules = append(report.HostRules, n.Next.Rule)
		}
	}
	if len(errs) > 0 {
		return report, fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(errs, "\n- "))
	}

	visited := make(map[string]bool)
	opaque := false
	queue := []string{g.StartNode()}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]
		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		targets, hidden := graph.Targets(g, g.Nodes[currentID])
		opaque = opaque || hidden
		for _, target := range targets {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	if !opaque {
		for _, id := range g.IDs() {
			if !visited[id] {
				report.Unreachable = append(report.Unreachable, id)
			}
		}
	}
	return report, nil
}

// ErrUnreachable is returned by strict validation when nodes cannot be reached.
var ErrUnreachable = errors.New("unreachable nodes")

// Strict turns warnings into an error.
func (r Report) Strict() error {
	if len(r.Unreachable) > 0 {
		return fmt.Errorf("%w: %s", ErrUnreachable, strings.Join(r.Unreachable, ", "))
	}
	return nil
}
