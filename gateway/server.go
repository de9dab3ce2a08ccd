package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"toolgate/engine"
	"toolgate/llm"
)

// Orchestrator drives a conversation to completion, executing tool calls
// between provider rounds. The engine satisfies it; tests substitute fakes.
type Orchestrator interface {
	Complete(ctx context.Context, conv *engine.Conversation) (*llm.FinalResponse, error)
	Stream(ctx context.Context, conv *engine.Conversation, sink engine.EventSink) error
}

// Server exposes the orchestrator over an OpenAI-compatible HTTP surface.
type Server struct {
	orchestrator Orchestrator
	defaultModel string
	log          zerolog.Logger
}

func New(orch Orchestrator, defaultModel string, logger zerolog.Logger) *Server {
	return &Server{
		orchestrator: orch,
		defaultModel: defaultModel,
		log:          logger,
	}
}

// Handler builds the routed handler with request logging attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/chat/ws", s.handleChatSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var handler http.Handler = mux
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(handler)
	handler = hlog.RequestIDHandler("request_id", "X-Request-Id")(handler)
	handler = hlog.NewHandler(s.log)(handler)
	return handler
}

// ListenAndServe serves until ctx is canceled, then drains in-flight
// requests before returning.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info().Str("addr", addr).Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
