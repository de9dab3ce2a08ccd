package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"toolgate/engine"
	"toolgate/llm"
)

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "malformed request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}
	if len(req.Tools) > 0 {
		hlog.FromRequest(r).Debug().Int("count", len(req.Tools)).
			Msg("ignoring request-declared tools, server toolbox governs execution")
	}

	conv := s.conversationFromRequest(req)
	if req.Stream {
		s.streamChat(w, r, conv)
		return
	}
	s.completeChat(w, r, conv)
}

func (s *Server) completeChat(w http.ResponseWriter, r *http.Request, conv *engine.Conversation) {
	resp, err := s.orchestrator.Complete(r.Context(), conv)
	if err != nil {
		s.writeOrchestratorError(w, r, err)
		return
	}

	body := chatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   conv.Model,
		Choices: []chatChoice{{
			Message: chatMessage{
				Role:      resp.Message.Role,
				Content:   resp.Message.Content,
				ToolCalls: toWireToolCalls(resp.Message.ToolCalls),
			},
			FinishReason: string(resp.FinishReason),
		}},
		Usage: usageFromLLM(resp.Usage),
	}
	writeJSON(w, http.StatusOK, body)
}

// conversationFromRequest lifts leading system messages into the system
// prompt and converts the remaining turns.
func (s *Server) conversationFromRequest(req chatCompletionRequest) *engine.Conversation {
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	conv := &engine.Conversation{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	messages := req.Messages
	for len(messages) > 0 && messages[0].Role == "system" {
		if conv.SystemPrompt != "" {
			conv.SystemPrompt += "\n\n"
		}
		conv.SystemPrompt += messages[0].Content
		messages = messages[1:]
	}

	for _, m := range messages {
		msg := llm.Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			})
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv
}

func (s *Server) writeOrchestratorError(w http.ResponseWriter, r *http.Request, err error) {
	kind := engine.Classify(err)
	hlog.FromRequest(r).Error().Err(err).Str("kind", string(kind)).Msg("completion failed")

	switch kind {
	case engine.KindCanceled:
		// Client is gone, nothing useful to write.
		return
	case engine.KindProviderTimeout:
		writeError(w, http.StatusGatewayTimeout, "api_error", "upstream model timed out")
		return
	}

	status := http.StatusBadGateway
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && provErr.StatusCode == http.StatusTooManyRequests {
		status = http.StatusTooManyRequests
	}
	writeError(w, status, "api_error", err.Error())
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Type: errType}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
