package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seenimoa/mercadobr/internal/agent"
)

// ChatBusyMessage answers a question sent while the queue is full.
const ChatBusyMessage = "Aguarde a resposta anterior antes de enviar outra pergunta."

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Upper bound for one chat answer.
	chatTimeout = 2 * time.Minute

	// Questions a connection may have waiting for an answer.
	maxPendingQuestions = 4
)

// handleWebSocket upgrades the connection and serves chat questions for the
// session carried by the request cookie. Refresh events from the hub are
// pushed on the same connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := s.session(w, r)
	conn, err := upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &WSClient{
		hub:     s.wsHub,
		session: id,
		send:    make(chan WSMessage, 64),
	}
	s.wsHub.Register(client)

	go s.wsWritePump(conn, client)
	go s.wsReadPump(conn, client)
}

// wsReadPump reads client messages until the connection closes. Chat
// questions are answered in order by a separate goroutine so pongs and pings
// keep being read while the model works.
func (s *Server) wsReadPump(conn *websocket.Conn, client *WSClient) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	questions := make(chan string, maxPendingQuestions)
	go s.wsAnswerLoop(ctx, client, questions)
	defer func() {
		close(questions)
		cancel()
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "chat":
			q, _ := msg.Data.(string)
			select {
			case questions <- q:
			default:
				if !client.trySend(WSMessage{Type: "error", Data: ChatBusyMessage}) {
					return
				}
			}
		case "ping":
			if !client.trySend(WSMessage{Type: "pong"}) {
				return
			}
		}
	}
}

// wsAnswerLoop answers queued questions until the queue is closed.
func (s *Server) wsAnswerLoop(ctx context.Context, client *WSClient, questions <-chan string) {
	for q := range questions {
		if ctx.Err() != nil {
			continue
		}
		client.trySend(s.answer(ctx, client.session, q))
	}
}

// answer runs one chat question and shapes the reply message.
func (s *Server) answer(ctx context.Context, session, question string) WSMessage {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	answer, err := s.chat.Ask(ctx, session, question)
	switch {
	case errors.Is(err, agent.ErrChatDisabled):
		return WSMessage{Type: "error", Data: agent.ChatDisabledMessage}
	case err != nil:
		return WSMessage{Type: "error", Data: err.Error()}
	}
	return WSMessage{Type: "answer", Data: ChatResponse{
		Question: question,
		Answer:   answer,
		History:  s.chat.History(session),
	}}
}

// trySend queues msg unless the client was already dropped by the hub.
func (c *WSClient) trySend(msg WSMessage) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// wsWritePump writes queued messages and keeps the connection alive.
func (s *Server) wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
