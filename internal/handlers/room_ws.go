// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/auth"
	"github.com/jason-s-yu/partyroom/internal/lobby"
	"github.com/jason-s-yu/partyroom/internal/middleware"
)

// Subprotocol is the websocket subprotocol clients must offer.
const Subprotocol = "room"

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
	opTimeout    = 10 * time.Second
	replyBuffer  = 16
)

var errInvalidJSON = errors.New("invalid JSON format")

// roomConn pairs one socket with its session.
type roomConn struct {
	session *lobby.Session
	replies chan reply
	logger  logrus.FieldLogger
}

// send queues r without blocking; a full queue drops it.
func (rc *roomConn) send(r reply) {
	select {
	case rc.replies <- r:
	default:
		rc.logger.WithField("reply", r.Type).Warn("reply queue full; dropped")
	}
}

// RoomWSHandler serves GET /room/ws. Optional query parameters: name sets the
// display name, room joins that code right away and spectate=true joins it as
// a spectator.
func RoomWSHandler(logger logrus.FieldLogger, mgr *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The identity cookie has to go out with the upgrade response.
		id, err := auth.EnsurePlayerIdentity(w, r)
		if err != nil {
			logger.WithError(err).Warn("failed to issue player identity")
			http.Error(w, "could not issue player identity", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path, id.PlayerID)
		rc := &roomConn{
			session: mgr.NewSession(id),
			replies: make(chan reply, replyBuffer),
			logger:  logger.WithField("player_id", id.PlayerID),
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if code := r.URL.Query().Get("room"); code != "" {
			spectate, _ := strconv.ParseBool(r.URL.Query().Get("spectate"))
			joinCtx, joinCancel := context.WithTimeout(ctx, opTimeout)
			if spectate {
				err = rc.session.JoinAsSpectator(joinCtx, code, id.Name)
			} else {
				err = rc.session.JoinRoom(joinCtx, code, id.Name)
			}
			joinCancel()
			if err != nil {
				rc.session.Close()
				c.Close(RoomUnavailableError, err.Error())
				return
			}
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			writePump(ctx, c, rc)
		}()

		err = readPump(ctx, c, rc)

		cancel()
		rc.session.Close()
		<-done
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, id.PlayerID, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump dispatches client requests until the socket closes. It returns
// the read error unless the close was a normal one.
func readPump(ctx context.Context, c *websocket.Conn, rc *roomConn) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			rc.logger.Warnf("received non-text message type %d; ignoring", typ)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			rc.send(errorReply("", errInvalidJSON))
			continue
		}

		opCtx, opCancel := context.WithTimeout(ctx, opTimeout)
		rep, err := handleRoomMessage(opCtx, rc.session, msg)
		opCancel()
		if err != nil {
			rc.logger.WithError(err).WithField("request", msg.Type).Debug("request denied")
			rc.send(errorReply(msg.Type, err))
			continue
		}
		if rep != nil {
			rc.send(*rep)
		}
	}
}

// writePump forwards session updates and replies, and pings the client.
func writePump(ctx context.Context, c *websocket.Conn, rc *roomConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	updates := rc.session.Updates()
	for {
		var out any
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			out = u
		case r := <-rc.replies:
			out = r
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				rc.logger.Warnf("failed to send ping: %v; assuming disconnect", err)
				return
			}
			continue
		}

		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(writeCtx, c, out)
		cancel()
		if err != nil {
			rc.logger.Warnf("failed to write to websocket: %v", err)
			return
		}
	}
}
