package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/orchestrator"
)

// wsEvent is one frame on the streaming chat channel. The terminal frame
// has Type "response" and carries the full reply with is_final true.
type wsEvent struct {
	Type     string                 `json:"type"`
	Agent    string                 `json:"agent,omitempty"`
	State    string                 `json:"state,omitempty"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Response *orchestrator.Response `json:"response,omitempty"`
}

// handleChatWS streams request handling over a websocket: an ack frame,
// one agent_update frame per finished invocation, then the terminal
// response frame.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.opts.CheckOrigin}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.opts.Logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if err := conn.WriteJSON(wsEvent{Type: "ack"}); err != nil {
			return
		}

		// Observer callbacks run on this goroutine, so writing to the
		// connection directly is safe.
		resp, err := s.orch.Handle(r.Context(), req.toRequest(), func(ho *orchestrator.HandleOptions) {
			ho.Observer = func(e orchestrator.Event) {
				switch e.Type {
				case orchestrator.EventState:
					_ = conn.WriteJSON(wsEvent{Type: "state", State: string(e.State)})
				case orchestrator.EventAgentFinished:
					update := wsEvent{Type: "agent_update", Agent: e.AgentName}
					if e.Err != nil {
						update.Error = e.Err.Error()
					} else if e.Output != nil {
						update.Message = e.Output.Message
					}
					_ = conn.WriteJSON(update)
				}
			}
		})
		if err != nil {
			if writeErr := conn.WriteJSON(wsEvent{Type: "error", Error: err.Error()}); writeErr != nil {
				return
			}
			if core.IsStoreUnavailable(err) {
				return
			}
			continue
		}
		if err := conn.WriteJSON(wsEvent{Type: "response", Response: resp}); err != nil {
			return
		}
	}
}
