package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mwhitten/bomb-arena-backend/internal/session"
	"github.com/mwhitten/bomb-arena-backend/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler bridges one websocket connection to the session loop: a
// writer goroutine drains the connection's outbox, and the read loop
// translates inbound messages into session messages.
func Handler(s *session.Session, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan []byte, 32)

		s.Post(session.Connect{ConnID: connID, Outbox: out})
		defer s.Post(session.Disconnect{ConnID: connID})

		// Writer: the session closes the outbox on disconnect, which
		// ends this goroutine.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("websocket read ended", zap.String("conn", connID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				// Protocol error: reject the message, keep the connection.
				log.Debug("unparseable client message", zap.String("conn", connID), zap.Error(err))
				writeError(r.Context(), conn, "invalid message")
				continue
			}

			msg, ok := toSessionMsg(connID, cm)
			if !ok {
				log.Debug("unknown message type", zap.String("conn", connID), zap.String("type", cm.Type))
				writeError(r.Context(), conn, "unknown message type")
				continue
			}
			s.Post(msg)
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	reply, _ := json.Marshal(types.NewError(msg))
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, reply)
}

// toSessionMsg maps the closed set of inbound tags onto session
// messages.
func toSessionMsg(connID string, m types.ClientMessage) (session.Msg, bool) {
	switch m.Type {
	case types.MsgJoin:
		return session.Join{ConnID: connID, Nickname: m.Nickname, Character: m.Character}, true
	case types.MsgChat:
		return session.Chat{ConnID: connID, Message: m.Message}, true
	case types.MsgPlayerMove:
		return session.Move{ConnID: connID, X: m.X, Y: m.Y}, true
	case types.MsgPlaceBomb:
		return session.PlaceBomb{ConnID: connID, X: m.X, Y: m.Y}, true
	case types.MsgGameReady:
		return session.Ready{ConnID: connID}, true
	default:
		return nil, false
	}
}
