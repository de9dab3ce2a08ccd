package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"toolgate/engine"
	"toolgate/llm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsEvent is the frame sent to socket clients. Text arrives as "delta"
// frames and each exchange ends with exactly one "done" or "error" frame.
type wsEvent struct {
	Type         string     `json:"type"`
	Content      string     `json:"content,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *usageBody `json:"usage,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// handleChatSocket streams one exchange per received request frame until the
// client disconnects.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := hlog.FromRequest(r)
	for {
		var req chatCompletionRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		if len(req.Messages) == 0 {
			if err := conn.WriteJSON(wsEvent{Type: "error", Error: "messages must not be empty"}); err != nil {
				return
			}
			continue
		}

		conv := s.conversationFromRequest(req)
		sink := &wsSink{conn: conn}
		if err := s.orchestrator.Stream(r.Context(), conv, sink); err != nil {
			kind := engine.Classify(err)
			log.Error().Err(err).Str("kind", string(kind)).Msg("websocket stream failed")
			if kind == engine.KindCanceled {
				return
			}
			if err := conn.WriteJSON(wsEvent{Type: "error", Error: err.Error()}); err != nil {
				return
			}
		}
	}
}

type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Delta(text string) error {
	return s.conn.WriteJSON(wsEvent{Type: "delta", Content: text})
}

func (s *wsSink) Done(reason llm.FinishReason, usage llm.Usage) error {
	wireUsage := usageFromLLM(usage)
	return s.conn.WriteJSON(wsEvent{
		Type:         "done",
		FinishReason: string(reason),
		Usage:        &wireUsage,
	})
}
