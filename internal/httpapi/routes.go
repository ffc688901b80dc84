package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
	"github.com/DoyleJ11/santa-draw-backend/internal/logging"
	"github.com/DoyleJ11/santa-draw-backend/internal/session"
	"github.com/DoyleJ11/santa-draw-backend/internal/ws"
)

type Deps struct {
	Lobby          *lobby.Lobby
	Sessions       *session.Manager
	Logger         *zap.Logger
	History        History // nil when the archive is disabled
	AllowedOrigins []string
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	s := &Server{
		lobby:    d.Lobby,
		sessions: d.Sessions,
		history:  d.History,
		validate: validator.New(),
		log:      d.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, logging.RequestLogger(d.Logger))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/roster", s.Roster)
	r.Get("/state", s.GetState)
	r.Get("/ws", ws.Handler(d.Lobby, d.Sessions, ws.Options{
		OriginPatterns: d.AllowedOrigins,
		Logger:         d.Logger,
	}))

	r.Route("/session", func(r chi.Router) {
		r.Post("/identify", s.Identify)
		r.Post("/admin", s.IdentifyAdmin)
		r.Post("/logout", s.Logout)
		r.Post("/heartbeat", s.Heartbeat)
		r.Get("/status", s.SessionStatus)
	})

	// Identity comes from the session cookie; the engine decides who may act.
	r.Route("/draw", func(r chi.Router) {
		r.Post("/options", s.PrepareOptions)
		r.Post("/select", s.MakeSelection)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Post("/start", s.StartGame)
		r.Post("/override", s.OverrideAssignment)
		r.Post("/draw", s.QuickDraw)
		r.Post("/skip", s.SkipTurn)
		r.Post("/unlock", s.ForceUnlock)
		if d.History != nil {
			r.Get("/history", s.History)
		}
	})
	r.Delete("/state", s.ResetState)

	return r
}
