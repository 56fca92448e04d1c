// Package flowhash fingerprints a flow graph by content.
//
// The fingerprint is stable under key and node insertion order and changes with
// any serializable edit: an added, removed or edited node, a different static
// target, a renamed rule, changed question text or options, or a toggled end
// flag. Computed rules contribute only their name, so two graphs that differ
// solely in what a rule does produce the same fingerprint. Bump the rule name
// when its behavior changes.
package flowhash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Canonical returns the canonical serialization of the graph's nodes.
// Mapping keys are sorted at every nesting level.
func Canonical(g *domain.Graph) ([]byte, error) {
	nodes := make(map[string]any, len(g.Nodes))
	for id, n := range g.Nodes {
		generic, err := toGeneric(n)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		nodes[id] = generic
	}
	// encoding/json emits map keys in sorted order, which is what makes the
	// output independent of insertion order.
	return json.Marshal(nodes)
}

// Sum returns the fingerprint of g.
func Sum(g *domain.Graph) string {
	data, err := Canonical(g)
	if err != nil {
		// Node fields are plain strings, bools and slices; this is unreachable
		// in practice but must still yield a value that never matches a real hash.
		return "invalid"
	}
	return rolling(data)
}

// toGeneric turns a struct into nested maps so every level is key-sorted.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

const (
	multiplier = 31
	radix      = 36
)

// rolling is a polynomial hash over the serialized bytes, wrapping at 32 bits.
func rolling(data []byte) string {
	var h uint32
	for _, b := range data {
		h = h*multiplier + uint32(b)
	}
	return strconv.FormatUint(uint64(h), radix)
}
