package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"toolgate/engine"
	"toolgate/llm"
)

func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, conv *engine.Conversation) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "api_error", "streaming unsupported by connection")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sink := &sseSink{
		w:       w,
		flusher: flusher,
		id:      "chatcmpl-" + uuid.NewString(),
		model:   conv.Model,
		created: time.Now().Unix(),
	}

	if err := s.orchestrator.Stream(r.Context(), conv, sink); err != nil {
		kind := engine.Classify(err)
		hlog.FromRequest(r).Error().Err(err).Str("kind", string(kind)).Msg("stream failed")
		if kind == engine.KindCanceled {
			return
		}
		// Headers are already out, so the failure travels as a data event.
		writeSSEData(w, errorBody{Error: errorDetail{Message: err.Error(), Type: "api_error"}})
		flusher.Flush()
	}
}

// sseSink frames engine events as OpenAI chat.completion.chunk objects. Only
// visible text is emitted; tool traffic never reaches the client.
type sseSink struct {
	w       io.Writer
	flusher http.Flusher
	id      string
	model   string
	created int64
	started bool
}

func (s *sseSink) chunk(choice chunkChoice, usage *usageBody) chatCompletionChunk {
	return chatCompletionChunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []chunkChoice{choice},
		Usage:   usage,
	}
}

func (s *sseSink) start() error {
	if s.started {
		return nil
	}
	s.started = true
	if err := writeSSEData(s.w, s.chunk(chunkChoice{Delta: chunkDelta{Role: "assistant"}}, nil)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Delta(text string) error {
	if err := s.start(); err != nil {
		return err
	}
	if err := writeSSEData(s.w, s.chunk(chunkChoice{Delta: chunkDelta{Content: text}}, nil)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Done(reason llm.FinishReason, usage llm.Usage) error {
	if err := s.start(); err != nil {
		return err
	}
	finish := string(reason)
	wireUsage := usageFromLLM(usage)
	if err := writeSSEData(s.w, s.chunk(chunkChoice{FinishReason: &finish}, &wireUsage)); err != nil {
		return err
	}
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func writeSSEData(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
