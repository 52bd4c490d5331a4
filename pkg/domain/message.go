package domain

import (
	"encoding/json"
	"fmt"
)

// MessageKind tags the concrete variant of a Message.
type MessageKind string

const (
	KindUser       MessageKind = "user"
	KindAssistant  MessageKind = "assistant"
	KindToolResult MessageKind = "tool_result"
)

// Message is one entry of the causal history. The set of variants is closed:
// UserMessage, AssistantMessage and ToolResultMessage are the only implementations.
type Message interface {
	Kind() MessageKind
	clone() Message
}

// UserMessage carries a request from the task submitter.
type UserMessage struct {
	Content string `json:"content"`
}

// AssistantMessage is produced by the generate and synthesize steps.
type AssistantMessage struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolResultMessage is the outcome of one tool call. CallID ties it back to
// the ToolCall that requested it.
type ToolResultMessage struct {
	CallID   string `json:"call_id"`
	Name     string `json:"name,omitempty"`
	Content  any    `json:"content,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
	IsDenied bool   `json:"is_denied,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (UserMessage) Kind() MessageKind       { return KindUser }
func (AssistantMessage) Kind() MessageKind  { return KindAssistant }
func (ToolResultMessage) Kind() MessageKind { return KindToolResult }

func (m UserMessage) clone() Message { return m }

func (m AssistantMessage) clone() Message {
	return m.Clone()
}

func (m ToolResultMessage) clone() Message { return m }

// Clone returns a deep copy of the assistant message.
func (m AssistantMessage) Clone() AssistantMessage {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, call := range m.ToolCalls {
			out.ToolCalls[i] = call.Clone()
		}
	}
	return out
}

// HasToolCalls reports whether the assistant requested any tool invocation.
func (m AssistantMessage) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Messages is the ordered history of a run. It marshals each entry inside a
// kind-tagged envelope so checkpoints can restore the concrete variants.
type Messages []Message

type envelope struct {
	Kind MessageKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (ms Messages) MarshalJSON() ([]byte, error) {
	out := make([]envelope, 0, len(ms))
	for i, m := range ms {
		if m == nil {
			return nil, fmt.Errorf("message %d is nil", i)
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, envelope{Kind: m.Kind(), Data: data})
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ms *Messages) UnmarshalJSON(data []byte) error {
	var raw []envelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Messages, 0, len(raw))
	for i, env := range raw {
		var (
			m   Message
			err error
		)
		switch env.Kind {
		case KindUser:
			var v UserMessage
			err = json.Unmarshal(env.Data, &v)
			m = v
		case KindAssistant:
			var v AssistantMessage
			err = json.Unmarshal(env.Data, &v)
			m = v
		case KindToolResult:
			var v ToolResultMessage
			err = json.Unmarshal(env.Data, &v)
			m = v
		default:
			return fmt.Errorf("message %d: unknown kind %q", i, env.Kind)
		}
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, m)
	}
	*ms = out
	return nil
}

// Clone returns a deep copy of the history.
func (ms Messages) Clone() Messages {
	if ms == nil {
		return nil
	}
	out := make(Messages, len(ms))
	for i, m := range ms {
		if m != nil {
			out[i] = m.clone()
		}
	}
	return out
}

// Last returns the most recent entry, or nil when the history is empty.
func (ms Messages) Last() Message {
	if len(ms) == 0 {
		return nil
	}
	return ms[len(ms)-1]
}

// LastAssistant returns the most recent AssistantMessage and whether one exists.
func (ms Messages) LastAssistant() (AssistantMessage, bool) {
	for i := len(ms) - 1; i >= 0; i-- {
		if m, ok := ms[i].(AssistantMessage); ok {
			return m, true
		}
	}
	return AssistantMessage{}, false
}
