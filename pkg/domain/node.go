package domain

// NodeKind defines how the host collects the answer for a node.
type NodeKind string

const (
	// KindButton renders a fixed set of options.
	KindButton NodeKind = "button"
	// KindInput collects free text.
	KindInput NodeKind = "input"
)

// NextKind tags the variant stored in Next.
type NextKind string

const (
	// NextStatic always leads to Next.Target.
	NextStatic NextKind = "static"
	// NextComputed resolves the target through the rule named Next.Rule.
	NextComputed NextKind = "computed"
)

// Next describes where a node leads once it is answered.
// Computed targets reference a rule by name so a graph stays plain data.
type Next struct {
	Kind   NextKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Target string   `json:"target,omitempty" yaml:"target,omitempty"`
	Rule   string   `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// Static returns a Next that always leads to target.
func Static(target string) Next {
	return Next{Kind: NextStatic, Target: target}
}

// Computed returns a Next resolved by the named rule at traversal time.
func Computed(rule string) Next {
	return Next{Kind: NextComputed, Rule: rule}
}

// IsZero reports whether no destination was configured (typical for end nodes).
func (n Next) IsZero() bool {
	return n.Kind == "" && n.Target == "" && n.Rule == ""
}

// Node is a single question in the flow.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Question string   `json:"question" yaml:"question"`
	Kind     NodeKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Next     Next     `json:"next" yaml:"next"`
	IsEnd    bool     `json:"isEnd,omitempty" yaml:"is_end,omitempty"`
}
