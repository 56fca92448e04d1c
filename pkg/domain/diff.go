package domain

import (
	"reflect"
)

// StateDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// CurrentStep is set when the position changed.
	CurrentStep *string `json:"currentStep,omitempty"`

	// Answers contains only added or changed answers.
	// Removed answers are present with a nil value.
	Answers map[string]any `json:"answers,omitempty"`

	// Appended holds messages added to the log. The log is append-only.
	Appended []ChatMessage `json:"appended,omitempty"`

	// FlowHash is set when the snapshot was pinned to a different graph.
	FlowHash *string `json:"flowHash,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
// It returns nil when nothing observable changed.
func Diff(oldState, newState *ChatState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{}

	if oldState == nil || oldState.CurrentStep != newState.CurrentStep {
		diff.CurrentStep = &newState.CurrentStep
	}
	if oldState == nil || oldState.FlowHash != newState.FlowHash {
		diff.FlowHash = &newState.FlowHash
	}

	diff.Answers = diffAnswers(oldState, newState)
	diff.Appended = diffMessages(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffAnswers(old, new *ChatState) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Answers {
			delta[k] = v
		}
	} else {
		for k, newVal := range new.Answers {
			oldVal, exists := old.Answers[k]
			if !exists || !reflect.DeepEqual(oldVal, newVal) {
				delta[k] = newVal
			}
		}
		for k := range old.Answers {
			if _, exists := new.Answers[k]; !exists {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffMessages assumes the log only ever grows.
func diffMessages(old, new *ChatState) []ChatMessage {
	if len(new.Messages) == 0 {
		return nil
	}
	if old == nil {
		return append([]ChatMessage(nil), new.Messages...)
	}
	if len(new.Messages) > len(old.Messages) {
		return append([]ChatMessage(nil), new.Messages[len(old.Messages):]...)
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentStep == nil &&
		d.FlowHash == nil &&
		len(d.Answers) == 0 &&
		len(d.Appended) == 0
}
