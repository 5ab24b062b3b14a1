package chatstream

import (
	"fmt"
	"strings"
)

// FinishReason indicates why an output stopped generating.
type FinishReason string

const (
	FinishNone       FinishReason = ""
	FinishInvalid    FinishReason = "invalid"
	FinishStop       FinishReason = "stop"
	FinishMaxLen     FinishReason = "max_len"
	FinishMaxContext FinishReason = "max_context"
	FinishToolCalls  FinishReason = "tool_calls"
	FinishTimeLimit  FinishReason = "time_limit"
)

// ParseFinishReason converts a wire or display name to a FinishReason.
// Matching is case-insensitive and accepts the REASON_ prefixed wire names.
// An empty string parses to FinishNone.
func ParseFinishReason(s string) (FinishReason, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "reason_")
	switch name {
	case "":
		return FinishNone, nil
	case "invalid":
		return FinishInvalid, nil
	case "stop", "end_turn":
		return FinishStop, nil
	case "max_len", "length", "max_tokens":
		return FinishMaxLen, nil
	case "max_context":
		return FinishMaxContext, nil
	case "tool_calls", "tool_use", "function_call":
		return FinishToolCalls, nil
	case "time_limit":
		return FinishTimeLimit, nil
	default:
		return FinishNone, fmt.Errorf("%q: %w", s, ErrUnknownFinishReason)
	}
}

func (r FinishReason) String() string {
	if r == FinishNone {
		return "none"
	}
	return string(r)
}
