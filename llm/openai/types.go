package openai

import (
	"encoding/json"

	"toolgate/llm"
)

type message struct {
	// Role can be "system", "user", "assistant", or "tool".
	Role string `json:"role"`
	// Content is the message content.
	Content string `json:"content"`
	// ToolCalls is the list of tool calls that this message is part of.
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	// ToolCallID is the ID of the tool call that this message is part of.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

func messageFromLLM(m llm.Message) message {
	var toolCalls []toolCall
	for _, tc := range m.ToolCalls {
		toolCalls = append(toolCalls, toolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: toolCallFunction{Name: tc.Name, Arguments: string(tc.Arguments)},
		})
	}
	return message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  toolCalls,
		ToolCallID: m.ToolCallID,
	}
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

func (t toolCall) toLLM() llm.ToolCall {
	return llm.ToolCall{
		ID:        t.ID,
		Name:      t.Function.Name,
		Arguments: json.RawMessage(t.Function.Arguments),
	}
}

type toolCallDelta struct {
	toolCall
	Index int `json:"index"`
}

type chatCompletionDelta struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []toolCallDelta `json:"tool_calls"`
}

type chunkChoice struct {
	Index        int                 `json:"index"`
	Delta        chatCompletionDelta `json:"delta"`
	FinishReason string              `json:"finish_reason"`
}

type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
	Usage   *usage        `json:"usage"`
}

type responseChoice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatCompletion struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []responseChoice `json:"choices"`
	Usage   *usage           `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *usage) toLLM() llm.Usage {
	if u == nil {
		return llm.Usage{}
	}
	return llm.Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func finishReasonFromAPI(reason string) llm.FinishReason {
	switch reason {
	case "":
		return llm.FinishNone
	case "stop":
		return llm.FinishStop
	case "tool_calls", "function_call":
		return llm.FinishToolCalls
	case "length":
		return llm.FinishLength
	case "content_filter":
		return llm.FinishContentFilter
	default:
		return llm.FinishReason(reason)
	}
}
