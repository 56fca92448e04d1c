// Package yaml loads flow graphs from YAML (or JSON) files.
//
// A flow file names its entry node and maps node ids to definitions:
//
//	start: welcome
//	nodes:
//	  welcome:
//	    question: Ready?
//	    options: [yes, no]
//	    next:
//	      map: {yes: details, no: bye}
//	  details:
//	    question: Tell me more
//	    next: bye
//	  bye:
//	    question: Thanks!
//	    is_end: true
//
// next is either a node id or an object with exactly one of rule (a registered
// rule name), expr (an expr-lang expression over `answer`) or map (answer to
// node id, with an optional default).
package yaml

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/mitchellh/mapstructure"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/rules"
)

// ErrInvalidFlow is returned for structurally invalid flow files.
var ErrInvalidFlow = errors.New("invalid flow file")

type fileFormat struct {
	Start string             `yaml:"start"`
	Nodes map[string]rawNode `yaml:"nodes"`
}

type rawNode struct {
	Question string   `yaml:"question"`
	Kind     string   `yaml:"kind"`
	Options  []string `yaml:"options"`
	Next     any      `yaml:"next"`
	IsEnd    bool     `yaml:"is_end"`
}

// nextSpec is the object form of next.
type nextSpec struct {
	Rule    string            `mapstructure:"rule"`
	Expr    string            `mapstructure:"expr"`
	Map     map[string]string `mapstructure:"map"`
	Default string            `mapstructure:"default"`
}

// Load reads and parses the flow file at path.
func Load(path string) (*domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow: %w", err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse decodes a flow document. JSON documents are accepted as YAML.
func Parse(data []byte) (*domain.Graph, error) {
	var doc fileFormat
	if err := yamlv3.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidFlow)
	}

	ids := make([]string, 0, len(doc.Nodes))
	for id := range doc.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]domain.Node, 0, len(ids))
	for _, id := range ids {
		n, err := toNode(id, doc.Nodes[id])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	g := domain.NewGraph(nodes...)
	if doc.Start != "" {
		g.Start = doc.Start
	}
	return g, nil
}

func toNode(id string, raw rawNode) (domain.Node, error) {
	n := domain.Node{
		ID:       id,
		Question: raw.Question,
		Options:  raw.Options,
		IsEnd:    raw.IsEnd,
	}

	switch domain.NodeKind(raw.Kind) {
	case domain.KindButton, domain.KindInput:
		n.Kind = domain.NodeKind(raw.Kind)
	case "":
		n.Kind = domain.KindInput
		if len(raw.Options) > 0 {
			n.Kind = domain.KindButton
		}
	default:
		return domain.Node{}, fmt.Errorf("%w: node %q: unknown kind %q", ErrInvalidFlow, id, raw.Kind)
	}

	next, err := toNext(raw.Next)
	if err != nil {
		return domain.Node{}, fmt.Errorf("%w: node %q: %v", ErrInvalidFlow, id, err)
	}
	n.Next = next
	return n, nil
}

func toNext(v any) (domain.Next, error) {
	switch next := v.(type) {
	case nil:
		return domain.Next{}, nil
	case string:
		return domain.Static(next), nil
	case map[string]any:
		var spec nextSpec
		if err := mapstructure.Decode(next, &spec); err != nil {
			return domain.Next{}, fmt.Errorf("decode next: %w", err)
		}
		return spec.resolve()
	default:
		return domain.Next{}, fmt.Errorf("next must be a node id or an object, got %T", v)
	}
}

func (s nextSpec) resolve() (domain.Next, error) {
	set := 0
	for _, present := range []bool{s.Rule != "", s.Expr != "", s.Map != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return domain.Next{}, errors.New("next needs exactly one of rule, expr or map")
	}

	switch {
	case s.Rule != "":
		return domain.Computed(s.Rule), nil
	case s.Expr != "":
		return domain.Computed(rules.ExprPrefix + s.Expr), nil
	default:
		return domain.Computed(rules.ExprPrefix + rules.MapExpression(s.Map, s.Default)), nil
	}
}
