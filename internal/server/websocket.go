package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"InventoryChat/internal/chatbot"
)

const wsReadLimit = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// same policy as the CORS headers
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is one chat frame sent by the client. ID is echoed back so
// clients can match replies.
type wsRequest struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type wsResult struct {
	ID string `json:"id,omitempty"`
	chatbot.ChatResult
}

type wsError struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// handleWebSocket serves chat exchanges over a websocket. Frames on one
// connection are answered in order.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "request_id", c.GetString("request_id"), "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	s.logger.Info("websocket connected", "request_id", c.GetString("request_id"))

	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "request_id", c.GetString("request_id"), "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if err := s.writeFrame(conn, wsError{Error: "Invalid JSON"}); err != nil {
				return
			}
			continue
		}

		if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
			if err := s.writeFrame(conn, wsError{ID: req.ID, Error: "session_id and message are required"}); err != nil {
				return
			}
			continue
		}

		res := s.bot.Handle(ctx, req.SessionID, req.Message)
		observeChat(res)

		if err := s.writeFrame(conn, wsResult{ID: req.ID, ChatResult: res}); err != nil {
			s.logger.Warn("websocket write failed", "request_id", c.GetString("request_id"), "error", err)
			return
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
