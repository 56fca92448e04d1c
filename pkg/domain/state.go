package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// ChatMessage is one entry of the append-only conversation log.
type ChatMessage struct {
	NodeID    string `json:"nodeId"`
	Question  string `json:"question"`
	Answer    any    `json:"answer"`
	Timestamp int64  `json:"timestamp"`
}

// ChatState is the persisted snapshot of a conversation.
// FlowHash pins it to the graph content that produced it; UpdatedAt is the
// write time in unix milliseconds.
type ChatState struct {
	Answers     map[string]any `json:"answers"`
	CurrentStep string         `json:"currentStep"`
	Messages    []ChatMessage  `json:"messages"`
	FlowHash    string         `json:"flowHash"`
	UpdatedAt   int64          `json:"updatedAt"`
}

// NewChatState creates an empty snapshot positioned at startNodeID.
func NewChatState(startNodeID string) *ChatState {
	return &ChatState{
		Answers:     make(map[string]any),
		CurrentStep: startNodeID,
		Messages:    []ChatMessage{},
	}
}

// IsEmpty reports whether nothing has been answered yet.
func (s *ChatState) IsEmpty() bool {
	return len(s.Answers) == 0 && len(s.Messages) == 0
}

// Clone returns a deep copy, so callers can never mutate a session's state by
// pointer. Maps and slices inside answers are copied at any depth.
func (s *ChatState) Clone() *ChatState {
	if s == nil {
		return nil
	}
	out := *s
	out.Answers = make(map[string]any, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = deepCopy(v)
	}
	out.Messages = make([]ChatMessage, len(s.Messages))
	for i, m := range s.Messages {
		m.Answer = deepCopy(m.Answer)
		out.Messages[i] = m
	}
	return &out
}

// deepCopy copies maps and slices of any element type recursively. Other
// values, pointers included, are returned as is.
func deepCopy(v any) any {
	if v == nil {
		return nil
	}
	return copyValue(reflect.ValueOf(v)).Interface()
}

func copyValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(copyValue(v.Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyValue(v.Index(i)))
		}
		return out
	default:
		return v
	}
}

// EncodeState serializes a snapshot into its storage format.
func EncodeState(s *ChatState) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	return string(data), nil
}

// DecodeState parses the storage format. Numbers decode as json.Number so a
// decoded snapshot re-encodes to the exact same bytes.
func DecodeState(raw string) (*ChatState, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var s ChatState
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if s.Answers == nil {
		s.Answers = make(map[string]any)
	}
	if s.Messages == nil {
		s.Messages = []ChatMessage{}
	}
	return &s, nil
}

// SnapshotMetadata is the reduced view of a snapshot that metadata-only remotes keep.
type SnapshotMetadata struct {
	CurrentStep  string `json:"currentStep"`
	FlowHash     string `json:"flowHash"`
	UpdatedAt    int64  `json:"updatedAt"`
	AnswerCount  int    `json:"answerCount"`
	MessageCount int    `json:"messageCount"`
}

// MetadataOf summarizes a snapshot.
func MetadataOf(s *ChatState) SnapshotMetadata {
	return SnapshotMetadata{
		CurrentStep:  s.CurrentStep,
		FlowHash:     s.FlowHash,
		UpdatedAt:    s.UpdatedAt,
		AnswerCount:  len(s.Answers),
		MessageCount: len(s.Messages),
	}
}
