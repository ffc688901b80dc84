package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
	"github.com/DoyleJ11/santa-draw-backend/internal/session"
	"github.com/DoyleJ11/santa-draw-backend/internal/types"
)

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
)

type Options struct {
	OriginPatterns []string
	Logger         *zap.Logger
}

// Handler subscribes the caller to lobby snapshots. The first message is the
// full current snapshot; every committed transition follows in order. The
// connection also accepts commands, authorized by the session cookie.
func Handler(lb *lobby.Lobby, sessions *session.Manager, opts Options) http.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		actor := sessions.Actor(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan lobby.Snapshot, outboxSize)
		clientID := uuid.NewString()

		if err := send(r.Context(), lb, lobby.Join{ClientID: clientID, Outbox: out}); err != nil {
			conn.Close(websocket.StatusTryAgainLater, "lobby unavailable")
			return
		}
		defer func() { _ = send(context.Background(), lb, lobby.Leave{ClientID: clientID}) }()

		log.Debug("subscriber joined", zap.String("client", clientID), zap.String("role", string(actor.Role)))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				if err := writeJSON(writeCtx, conn, snap.Message()); err != nil {
					writeCancel()
					return
				}
			}
			// The lobby dropped us or shut down.
			conn.Close(websocket.StatusGoingAway, "subscription ended")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(writeCtx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("subscriber read ended", zap.String("client", clientID), zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(writeCtx, conn, errorMessage("bad json", engine.KindValidation))
				continue
			}
			if err := validate.Struct(cm); err != nil {
				_ = writeJSON(writeCtx, conn, errorMessage("unknown or incomplete message", engine.KindValidation))
				continue
			}

			cmd, ok := toEngineCommand(cm, actor)
			if !ok {
				_ = writeJSON(writeCtx, conn, errorMessage("choiceIndex is required", engine.KindValidation))
				continue
			}
			ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
			_, err = lb.Submit(ctx, cmd)
			cancel()
			if err != nil {
				if errors.Is(err, lobby.ErrClosed) {
					return
				}
				_ = writeJSON(writeCtx, conn, errorMessage(err.Error(), engine.KindOf(err)))
			}
		}
	}
}

// send delivers a message to the lobby without blocking past ctx or the
// lobby's lifetime.
func send(ctx context.Context, lb *lobby.Lobby, m lobby.Msg) error {
	select {
	case lb.Inbox() <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-lb.Done():
		return lobby.ErrClosed
	}
}

func toEngineCommand(m types.ClientMessage, actor engine.Actor) (engine.Command, bool) {
	switch m.Type {
	case types.ClientHeartbeat:
		return engine.Command{Type: engine.CmdHeartbeat, Actor: actor}, true
	case types.ClientPrepare:
		return engine.Command{Type: engine.CmdPrepareOptions, Actor: actor}, true
	case types.ClientSelect:
		if m.ChoiceIndex == nil {
			return engine.Command{}, false
		}
		return engine.Command{Type: engine.CmdMakeSelection, Actor: actor, ChoiceIndex: *m.ChoiceIndex}, true
	default:
		return engine.Command{}, false
	}
}

func errorMessage(msg string, kind engine.Kind) types.ServerMessage {
	return types.ServerMessage{Type: types.MsgError, Error: msg, Code: string(kind)}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
