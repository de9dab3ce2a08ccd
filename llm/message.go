package llm

import "encoding/json"

// Message is one turn in a conversation.
type Message struct {
	// Role can be "system", "user", "assistant", or "tool".
	Role string `json:"role"`
	// Content is the textual content of the turn.
	Content string `json:"content"`
	// ToolCalls is the list of tool invocations requested by an assistant
	// turn. The raw argument text is preserved verbatim so the turn can be
	// echoed back to the provider unchanged.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID correlates a "tool" turn with the call that produced it.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is one tool invocation requested by the model, fully or partially
// materialized depending on where in a stream it was observed.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Usage counts tokens for one provider round.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another round's usage into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
