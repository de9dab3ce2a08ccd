package llm

// FinishReason is the provider's completion-reason marker, carried by the
// last chunk of a streamed round or by a buffered response.
type FinishReason string

const (
	// FinishNone means the provider has not signaled the end of the round.
	FinishNone FinishReason = ""
	// FinishStop means the model produced a complete answer.
	FinishStop FinishReason = "stop"
	// FinishToolCalls means the model wants tool results before continuing.
	FinishToolCalls FinishReason = "tool_calls"
	// FinishLength means generation hit a token limit and output may be
	// truncated mid-value.
	FinishLength FinishReason = "length"
	// FinishContentFilter means the provider filtered the output.
	FinishContentFilter FinishReason = "content_filter"
	// FinishError means the provider reported a generation failure.
	FinishError FinishReason = "error"
)

// ToolCallFragment is a partial piece of a tool call delivered incrementally.
// Name typically arrives once, on the first fragment for an ID; Arguments is
// a raw slice of the argument JSON and is usually invalid JSON on its own.
type ToolCallFragment struct {
	ID        string
	Name      string
	Arguments string
}

// Chunk is one incremental piece of a streamed provider response. At most one
// of Text and ToolCall is set; FinishReason is non-empty only on the chunk
// that ends the round.
type Chunk struct {
	Text         string
	ToolCall     *ToolCallFragment
	FinishReason FinishReason
	Usage        *Usage
}
