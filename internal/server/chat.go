package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/classrag/internal/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type    string `json:"type"` // "ask"
	Content string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type    string           `json:"type"` // "response" or "error"
	Content string           `json:"content"`
	Sources []sourceResponse `json:"sources,omitempty"`
}

// handleChatWS runs an interactive question loop over a websocket. Every
// message goes through the same retrieval and access filtering as the
// JSON endpoint; the principal was resolved once at upgrade time and the
// connection is only ever as privileged as that principal.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "no authenticated principal", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendChat(conn, chatResponse{Type: "error", Content: "invalid message format"})
			continue
		}
		if req.Type != "ask" {
			s.sendChat(conn, chatResponse{Type: "error", Content: "unknown message type: " + req.Type})
			continue
		}
		if req.Content == "" {
			s.sendChat(conn, chatResponse{Type: "error", Content: "content is required"})
			continue
		}

		payload, status := s.runQuery(r, principal, queryRequest{Query: req.Content})
		if status != http.StatusOK {
			if m, ok := payload.(map[string]string); ok {
				s.sendChat(conn, chatResponse{Type: "error", Content: m["error"]})
			} else {
				s.sendChat(conn, chatResponse{Type: "error", Content: "query failed"})
			}
			continue
		}

		resp := payload.(queryResponse)
		s.sendChat(conn, chatResponse{
			Type:    "response",
			Content: resp.Answer,
			Sources: resp.Sources,
		})
	}
}

func (s *Server) sendChat(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}
