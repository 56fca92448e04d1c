package session_test

import (
	"sync/atomic"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowhash"
	"github.com/aretw0/chatflow/pkg/identity"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/reconcile"
	"github.com/aretw0/chatflow/pkg/rules"
	"github.com/aretw0/chatflow/pkg/session"
	"github.com/aretw0/chatflow/pkg/traversal"
)

func demoGraph() *domain.Graph {
	return domain.NewGraph(
		domain.Node{ID: "start", Question: "Ready?", Kind: domain.KindButton, Options: []string{"go"}, Next: domain.Static("q2")},
		domain.Node{ID: "q2", Question: "Continue?", Kind: domain.KindButton, Options: []string{"yes", "no", "back"}, Next: domain.Computed("yes_no")},
		domain.Node{ID: "end_yes", Question: "Great", IsEnd: true},
		domain.Node{ID: "end_no", Question: "Bye", IsEnd: true},
	)
}

func demoRules() *rules.Registry {
	reg := rules.NewRegistry()
	reg.RegisterMap("yes_no", map[string]string{"yes": "end_yes", "no": "end_no", "back": "start"}, "")
	return reg
}

type fixture struct {
	graph    *domain.Graph
	local    ports.LocalStore
	remote   ports.RemoteStore
	resolver *identity.Resolver
	deps     session.Deps
}

func newFixture(graph *domain.Graph, local ports.LocalStore, remote ports.RemoteStore, opts ...reconcile.Option) *fixture {
	if remote != nil {
		opts = append(opts, reconcile.WithRemote(remote))
	}
	resolver := identity.NewResolver(local)
	return &fixture{
		graph:    graph,
		local:    local,
		remote:   remote,
		resolver: resolver,
		deps: session.Deps{
			Traversal:  traversal.New(graph, demoRules()),
			Reconciler: reconcile.New(local, opts...),
			Resolver:   resolver,
			FlowHash:   flowhash.Sum(graph),
		},
	}
}

// tickingClock returns strictly increasing times, one second apart.
func tickingClock() func() time.Time {
	var n atomic.Int64
	base := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

var alice = domain.Identity{UserID: "alice", ScenarioID: "default", SessionID: "s1"}
