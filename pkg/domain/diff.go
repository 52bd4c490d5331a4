package domain

// Extends reports whether next is reachable from prev by appending to the
// history, appending or refreshing documents, and setting the generation.
// The returned error wraps ErrContractViolation.
func Extends(prev, next *State) error {
	if prev == nil {
		return nil
	}
	if next == nil {
		return Violationf("step returned no state")
	}
	if next.TaskID != prev.TaskID {
		return Violationf("task id changed from %q to %q", prev.TaskID, next.TaskID)
	}
	if next.Query != prev.Query {
		return Violationf("query is immutable")
	}
	if next.JobType != prev.JobType {
		return Violationf("job type is immutable")
	}

	if len(next.Messages) < len(prev.Messages) {
		return Violationf("history shrank from %d to %d entries", len(prev.Messages), len(next.Messages))
	}
	for i := range prev.Messages {
		if !sameMessage(prev.Messages[i], next.Messages[i]) {
			return Violationf("history entry %d was rewritten", i)
		}
	}

	if len(next.Documents) < len(prev.Documents) {
		return Violationf("documents shrank from %d to %d entries", len(prev.Documents), len(next.Documents))
	}
	for i := range prev.Documents {
		if next.Documents[i].Source != prev.Documents[i].Source {
			return Violationf("document %d changed source", i)
		}
	}
	return nil
}

// Appended returns the messages next added on top of prev. It assumes
// Extends(prev, next) holds.
func Appended(prev, next *State) Messages {
	if next == nil {
		return nil
	}
	if prev == nil {
		return next.Messages
	}
	return next.Messages[len(prev.Messages):]
}

// ValidateToolResults checks that every ToolResultMessage answers a tool call
// issued by an earlier AssistantMessage, and that no call is answered twice.
func ValidateToolResults(msgs Messages) error {
	issued := make(map[string]bool)
	for i, m := range msgs {
		switch v := m.(type) {
		case AssistantMessage:
			for _, call := range v.ToolCalls {
				if call.ID == "" {
					return Violationf("message %d: tool call %q has no id", i, call.Name)
				}
				if _, seen := issued[call.ID]; seen {
					return Violationf("message %d: duplicate tool call id %q", i, call.ID)
				}
				issued[call.ID] = false
			}
		case ToolResultMessage:
			answered, ok := issued[v.CallID]
			if !ok {
				return Violationf("message %d: tool result %q has no matching call", i, v.CallID)
			}
			if answered {
				return Violationf("message %d: tool call %q answered twice", i, v.CallID)
			}
			issued[v.CallID] = true
		case UserMessage:
		default:
			return Violationf("message %d: unknown entry %T", i, m)
		}
	}
	return nil
}

func sameMessage(a, b Message) bool {
	switch x := a.(type) {
	case UserMessage:
		y, ok := b.(UserMessage)
		return ok && x == y
	case AssistantMessage:
		y, ok := b.(AssistantMessage)
		if !ok || x.Content != y.Content || len(x.ToolCalls) != len(y.ToolCalls) {
			return false
		}
		for i := range x.ToolCalls {
			if x.ToolCalls[i].ID != y.ToolCalls[i].ID || x.ToolCalls[i].Name != y.ToolCalls[i].Name {
				return false
			}
		}
		return true
	case ToolResultMessage:
		y, ok := b.(ToolResultMessage)
		return ok && x.CallID == y.CallID && x.Name == y.Name && x.IsError == y.IsError && x.Error == y.Error
	}
	return false
}
