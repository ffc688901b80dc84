package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/archive"
	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
	"github.com/DoyleJ11/santa-draw-backend/internal/session"
	"github.com/DoyleJ11/santa-draw-backend/internal/types"
)

const commandTimeout = 5 * time.Second

// History lists the draws archived for the current round.
type History interface {
	Round(ctx context.Context) ([]archive.DrawRecord, error)
}

type Server struct {
	lobby    *lobby.Lobby
	sessions *session.Manager
	history  History
	validate *validator.Validate
	log      *zap.Logger
}

type identifyRequest struct {
	ParticipantID string `json:"participantId" validate:"required"`
}

type adminLoginRequest struct {
	Code string `json:"code" validate:"required"`
}

type selectRequest struct {
	ChoiceIndex *int `json:"choiceIndex" validate:"required,min=0"`
}

type overrideRequest struct {
	GifteeID string `json:"gifteeId" validate:"required"`
}

type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	Role          engine.Role `json:"role"`
	ParticipantID string      `json:"participantId,omitempty"`
	Name          string      `json:"name,omitempty"`
	AdminID       string      `json:"adminId,omitempty"`
}

type rosterResponse struct {
	Participants []roster.Participant `json:"participants"`
	Groups       []roster.Group       `json:"groups"`
	DrawOrder    []string             `json:"drawOrder"`
}

type commandResponse struct {
	Version int          `json:"version"`
	State   engine.State `json:"state"`
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) Roster(w http.ResponseWriter, r *http.Request) {
	ros := s.lobby.Roster()
	writeJSON(w, http.StatusOK, rosterResponse{
		Participants: ros.Participants(),
		Groups:       ros.Groups(),
		DrawOrder:    ros.DrawOrder(),
	})
}

// GetState returns the authoritative snapshot. Reading it sweeps stale
// presence first.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	view, err := s.lobby.View(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := types.StateResponse{Exists: view.Exists, Version: view.Version}
	if view.Exists {
		st := view.State
		resp.State = &st
		resp.Board = engine.Board(s.lobby.Roster(), st)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ResetState(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, engine.Command{Type: engine.CmdReset})
}

func (s *Server) StartGame(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, engine.Command{Type: engine.CmdStartGame})
}

func (s *Server) PrepareOptions(w http.ResponseWriter, r *http.Request) {
	out, ok := s.submit(w, r, engine.Command{Type: engine.CmdPrepareOptions})
	if !ok {
		return
	}
	for _, ev := range out.Events {
		if ev.Type == engine.EvtOptionsPrepared && ev.Options != nil {
			writeJSON(w, http.StatusOK, ev.Options)
			return
		}
	}
	s.writeError(w, r, errors.New("options were not prepared"))
}

func (s *Server) MakeSelection(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, ok := s.submit(w, r, engine.Command{Type: engine.CmdMakeSelection, ChoiceIndex: *req.ChoiceIndex})
	if !ok {
		return
	}
	writeDrawResult(w, out)
}

func (s *Server) OverrideAssignment(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, ok := s.submit(w, r, engine.Command{Type: engine.CmdOverrideAssignment, GifteeID: req.GifteeID})
	if !ok {
		return
	}
	writeDrawResult(w, out)
}

// QuickDraw completes the current turn with a random solvable giftee.
func (s *Server) QuickDraw(w http.ResponseWriter, r *http.Request) {
	out, ok := s.submit(w, r, engine.Command{Type: engine.CmdQuickDraw})
	if !ok {
		return
	}
	writeDrawResult(w, out)
}

func (s *Server) SkipTurn(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, engine.Command{Type: engine.CmdSkipTurn})
}

func (s *Server) ForceUnlock(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, engine.Command{Type: engine.CmdForceUnlock})
}

func (s *Server) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	if _, err := s.lobby.Submit(ctx, engine.Command{Type: engine.CmdIdentify, ParticipantID: req.ParticipantID}); err != nil {
		s.writeError(w, r, err)
		return
	}

	actor := engine.Actor{Role: engine.RolePlayer, ParticipantID: req.ParticipantID}
	if err := s.sessions.SetCookie(w, actor); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		Role:          actor.Role,
		ParticipantID: actor.ParticipantID,
		Name:          s.lobby.Roster().Name(actor.ParticipantID),
	})
}

func (s *Server) IdentifyAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.sessions.CheckAdminCode(req.Code) {
		s.log.Warn("admin login rejected", zap.String("remote", r.RemoteAddr))
		s.writeError(w, r, engine.ErrAdminOnly)
		return
	}

	actor := engine.Actor{Role: engine.RoleAdmin}
	adminID := uuid.NewString()
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	if _, err := s.lobby.Submit(ctx, engine.Command{Type: engine.CmdIdentifyAdmin, Actor: actor, AdminID: adminID}); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.SetCookie(w, actor); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, Role: actor.Role, AdminID: adminID})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if actor, err := s.sessions.FromRequest(r); err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
		defer cancel()
		if _, err := s.lobby.Submit(ctx, engine.Command{Type: engine.CmdLogout, Actor: actor}); err != nil {
			s.log.Warn("logout presence update failed", zap.Error(err))
		}
	}
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Heartbeat(w http.ResponseWriter, r *http.Request) {
	out, ok := s.submit(w, r, engine.Command{Type: engine.CmdHeartbeat})
	if !ok {
		return
	}
	for _, ev := range out.Events {
		if ev.Session != nil {
			writeJSON(w, http.StatusOK, ev.Session)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) SessionStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := s.sessions.FromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusOK, sessionResponse{Role: engine.RoleSpectator})
		return
	}
	resp := sessionResponse{Authenticated: true, Role: actor.Role, ParticipantID: actor.ParticipantID}
	if actor.ParticipantID != "" {
		resp.Name = s.lobby.Roster().Name(actor.ParticipantID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	actor, err := s.sessions.FromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if actor.Role != engine.RoleAdmin {
		s.writeError(w, r, engine.ErrAdminOnly)
		return
	}
	recs, err := s.history.Round(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// submit attaches the caller's identity to cmd and applies it. On failure the
// error response has already been written.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd engine.Command) (lobby.Outcome, bool) {
	actor, err := s.sessions.FromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return lobby.Outcome{}, false
	}
	cmd.Actor = actor

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	out, err := s.lobby.Submit(ctx, cmd)
	if err != nil {
		s.writeError(w, r, err)
		return lobby.Outcome{}, false
	}
	return out, true
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, cmd engine.Command) {
	out, ok := s.submit(w, r, cmd)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Version: out.Version, State: out.State})
}

func writeDrawResult(w http.ResponseWriter, out lobby.Outcome) {
	if !engine.ContainsEvent(out.Events, engine.EvtDrawExecuted) {
		writeJSON(w, http.StatusOK, commandResponse{Version: out.Version, State: out.State})
		return
	}
	for _, ev := range out.Events {
		if ev.Type == engine.EvtDrawExecuted && ev.Result != nil {
			writeJSON(w, http.StatusOK, struct {
				engine.DrawResult
				AdminOverride bool `json:"adminOverride"`
				Version       int  `json:"version"`
			}{*ev.Result, ev.AdminOverride, out.Version})
			return
		}
	}
	writeJSON(w, http.StatusOK, commandResponse{Version: out.Version, State: out.State})
}
