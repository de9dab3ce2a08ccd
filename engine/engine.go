// Package engine drives chat-completion requests through the provider and
// the tool executor until the model produces a final answer or the round cap
// is hit. It owns the tool-call orchestration loop for both the buffered and
// the streaming request paths.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"toolgate/callbuf"
	"toolgate/llm"
	"toolgate/tool"
)

// ToolExecutor is the tool execution collaborator. Implementations must be
// safe to call concurrently, both within one round and across requests.
type ToolExecutor interface {
	// Schemas describes the tools offered to the model.
	Schemas() []tool.Schema
	// Execute performs one tool call and returns its textual result.
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// NoRetries disables retries entirely; the Config zero value means the
// default budget instead.
const NoRetries = -1

// Config bounds the orchestration loop.
type Config struct {
	// MaxRounds caps how many times the provider is called for one request.
	MaxRounds int
	// ToolRetries is how many extra attempts a failing call gets. Zero means
	// the default of 2; pass NoRetries for single-attempt execution.
	ToolRetries int
	// ToolTimeout is the per-call execution deadline.
	ToolTimeout time.Duration
	// ToolConcurrency bounds parallel tool executions within one round.
	ToolConcurrency int
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 10
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 30 * time.Second
	}
	if c.ToolRetries == 0 {
		c.ToolRetries = 2
	} else if c.ToolRetries < 0 {
		c.ToolRetries = 0
	}
	if c.ToolConcurrency <= 0 {
		c.ToolConcurrency = 4
	}
	return c
}

// Engine orchestrates provider rounds and tool execution. It holds no
// per-request state; every request owns its own Conversation and the
// per-round buffers created inside the loop.
type Engine struct {
	provider llm.Provider
	tools    ToolExecutor
	cfg      Config
	log      zerolog.Logger
}

func New(provider llm.Provider, tools ToolExecutor, cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		provider: provider,
		tools:    tools,
		cfg:      cfg.withDefaults(),
		log:      logger,
	}
}

// Conversation is the evolving message sequence for one client request.
// Messages is append-only for the request's lifetime.
type Conversation struct {
	Model        string
	SystemPrompt string
	Messages     []llm.Message
	MaxTokens    int
	Temperature  *float64

	round int
}

// Round returns how many tool rounds have completed so far.
func (c *Conversation) Round() int {
	return c.round
}

func (e *Engine) request(conv *Conversation) llm.Request {
	var schemas []tool.Schema
	if e.tools != nil {
		schemas = e.tools.Schemas()
	}
	return llm.Request{
		Model:        conv.Model,
		SystemPrompt: conv.SystemPrompt,
		Messages:     conv.Messages,
		Tools:        schemas,
		MaxTokens:    conv.MaxTokens,
		Temperature:  conv.Temperature,
	}
}

// atRoundCap reports whether the next provider response may not start another
// tool round. The provider is called at most MaxRounds times per request;
// hitting the cap is not an error, the last assistant output is returned
// as-is even if it still requests tools.
func (e *Engine) atRoundCap(conv *Conversation) bool {
	return conv.round >= e.cfg.MaxRounds-1
}

func assistantMessage(text string, raw []callbuf.RawCall) llm.Message {
	msg := llm.Message{Role: "assistant", Content: text}
	for _, call := range raw {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: json.RawMessage(call.Arguments),
		})
	}
	return msg
}

func toolMessages(results []ToolResult) []llm.Message {
	messages := make([]llm.Message, 0, len(results))
	for _, result := range results {
		messages = append(messages, llm.Message{
			Role:       "tool",
			Content:    result.Content,
			ToolCallID: result.CallID,
		})
	}
	return messages
}
