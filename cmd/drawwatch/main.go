// Command drawwatch follows a running draw over the WebSocket feed and logs
// every transition it observes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/logging"
	"github.com/DoyleJ11/santa-draw-backend/internal/observer"
	"github.com/DoyleJ11/santa-draw-backend/internal/presence"
	"github.com/DoyleJ11/santa-draw-backend/internal/session"
	"github.com/DoyleJ11/santa-draw-backend/internal/types"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "WebSocket endpoint")
	token := flag.String("session", "", "session token; when set for a player, heartbeats are sent")
	participant := flag.String("participant", "", "participant id the session belongs to")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := logging.New("development", *level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &websocket.DialOptions{}
	if *token != "" {
		opts.HTTPHeader = http.Header{}
		opts.HTTPHeader.Add("Cookie", (&http.Cookie{Name: session.CookieName, Value: *token}).String())
	}

	conn, _, err := websocket.Dial(ctx, *url, opts)
	if err != nil {
		logger.Fatal("dial", zap.String("url", *url), zap.Error(err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	cache := observer.New()
	if *token != "" && *participant != "" {
		go heartbeat(ctx, conn, cache, *participant, logger)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("connection closed", zap.Error(err))
			}
			return
		}
		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("undecodable message", zap.Error(err))
			continue
		}
		report(logger, cache, msg)
	}
}

func report(logger *zap.Logger, cache *observer.Cache, msg types.ServerMessage) {
	if msg.Type == types.MsgError {
		logger.Warn("server error", zap.String("code", msg.Code), zap.String("error", msg.Error))
		return
	}
	if !cache.Apply(msg) {
		logger.Debug("ignored stale message", zap.String("type", msg.Type), zap.Int("version", msg.Version))
		return
	}

	st, version, _ := cache.State()
	fields := []zap.Field{
		zap.Int("version", version),
		zap.Int("drawer_index", st.CurrentDrawerIndex),
		zap.String("phase", string(st.SelectionPhase)),
		zap.String("lifecycle", string(st.Lifecycle)),
		zap.Bool("locked", st.TurnLocked),
		zap.Int("online", len(st.Sessions.Online())),
	}
	if ev := msg.Event; ev != nil {
		if ev.DrawerID != "" {
			fields = append(fields, zap.String("drawer", ev.DrawerID))
		}
		if ev.Options != nil {
			fields = append(fields, zap.Int("options", len(ev.Options.ViableIDs)))
		}
		if ev.Result != nil {
			// giftees stay secret to a watcher
			fields = append(fields, zap.Bool("admin_override", ev.AdminOverride))
		}
	}
	logger.Info(msg.Type, fields...)
}

func heartbeat(ctx context.Context, conn *websocket.Conn, cache *observer.Cache, participant string, logger *zap.Logger) {
	payload, _ := json.Marshal(types.ClientMessage{Type: types.ClientHeartbeat})
	ticker := time.NewTicker(presence.HeartbeatInterval)
	defer ticker.Stop()

	for {
		now := time.Now()
		cache.RecordLocalHeartbeat(participant, now)
		wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := conn.Write(wctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			logger.Warn("heartbeat failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
