// Package openai is the default completion provider client, speaking the
// OpenAI-compatible chat-completions protocol over HTTP.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"toolgate/llm"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Client talks to one upstream endpoint. It holds no per-request state and is
// safe to call concurrently; connection reuse lives in the http.Client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{},
	}
}

func (c *Client) Name() string {
	return "openai"
}

func (c *Client) payload(req llm.Request, stream bool) map[string]any {
	apiMessages := make([]message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		apiMessages = append(apiMessages, message{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		apiMessages = append(apiMessages, messageFromLLM(msg))
	}

	payload := map[string]any{
		"model":    req.Model,
		"messages": apiMessages,
	}
	if stream {
		payload["stream"] = true
		payload["stream_options"] = map[string]any{"include_usage": true}
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	return payload
}

func (c *Client) post(ctx context.Context, payload map[string]any) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding JSON: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		msg := strings.TrimSpace(string(body))
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &llm.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

// Complete performs one buffered round of generation.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.FinalResponse, error) {
	resp, err := c.post(ctx, c.payload(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var completion chatCompletion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, &llm.ProviderError{StatusCode: http.StatusBadGateway, Message: "response carried no choices"}
	}

	choice := completion.Choices[0]
	msg := llm.Message{Role: choice.Message.Role, Content: choice.Message.Content}
	if msg.Role == "" {
		msg.Role = "assistant"
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, tc.toLLM())
	}
	return &llm.FinalResponse{
		Message:      msg,
		FinishReason: finishReasonFromAPI(choice.FinishReason),
		Usage:        completion.Usage.toLLM(),
	}, nil
}

// Stream performs one round of generation delivered as SSE chunks. Request
// failures surface through the returned stream's Err.
func (c *Client) Stream(ctx context.Context, req llm.Request) llm.Stream {
	resp, err := c.post(ctx, c.payload(req, true))
	if err != nil {
		return &Stream{err: err}
	}
	return &Stream{body: resp.Body}
}

// Stream decodes the SSE wire format into chunks. The provider sends tool
// call ids only on a call's first fragment and addresses later fragments by
// index, so the decoder resolves indexes back to ids before yielding.
type Stream struct {
	body   io.ReadCloser
	err    error
	reason llm.FinishReason
	usage  *llm.Usage
}

func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) FinishReason() llm.FinishReason {
	return s.reason
}

func (s *Stream) Usage() *llm.Usage {
	return s.usage
}

func (s *Stream) Iter() func(yield func(llm.Chunk) bool) {
	return func(yield func(llm.Chunk) bool) {
		if s.body == nil {
			return
		}
		defer s.body.Close()
		defer io.Copy(io.Discard, s.body)

		callIDs := make(map[int]string)
		scanner := bufio.NewScanner(s.body)
		// A single data line can carry very large tool-call arguments, well
		// past the scanner's default 64KB token limit.
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			// Ignore lines that aren't data messages.
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			line = strings.TrimPrefix(line, "data: ")
			if line == "[DONE]" {
				continue
			}
			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				s.err = fmt.Errorf("error unmarshalling chunk: %w", err)
				return
			}
			if chunk.Usage != nil {
				u := chunk.Usage.toLLM()
				s.usage = &u
				if !yield(llm.Chunk{Usage: &u}) {
					return
				}
			}
			if len(chunk.Choices) < 1 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !yield(llm.Chunk{Text: choice.Delta.Content}) {
					return
				}
			}
			for _, delta := range choice.Delta.ToolCalls {
				id := delta.ID
				if id != "" {
					callIDs[delta.Index] = id
				} else if known, ok := callIDs[delta.Index]; ok {
					id = known
				} else {
					// Some OpenAI-compatible backends never send an id.
					id = fmt.Sprintf("call_%d", delta.Index)
					callIDs[delta.Index] = id
				}
				if !yield(llm.Chunk{ToolCall: &llm.ToolCallFragment{
					ID:        id,
					Name:      delta.Function.Name,
					Arguments: delta.Function.Arguments,
				}}) {
					return
				}
			}
			if reason := finishReasonFromAPI(choice.FinishReason); reason != llm.FinishNone {
				s.reason = reason
				if !yield(llm.Chunk{FinishReason: reason}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			s.err = fmt.Errorf("error reading stream: %w", err)
		}
	}
}
