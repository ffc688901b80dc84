package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/DoyleJ11/santa-draw-backend/internal/presence"
	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Actor is the already-verified identity of a caller.
type Actor struct {
	Role          Role   `json:"role"`
	ParticipantID string `json:"participantId,omitempty"`
}

type CommandType string

const (
	CmdStartGame          CommandType = "StartGame"
	CmdPrepareOptions     CommandType = "PrepareOptions"
	CmdMakeSelection      CommandType = "MakeSelection"
	CmdOverrideAssignment CommandType = "OverrideAssignment"
	CmdQuickDraw          CommandType = "QuickDraw"
	CmdSkipTurn           CommandType = "SkipTurn"
	CmdForceUnlock        CommandType = "ForceUnlock"
	CmdReset              CommandType = "Reset"
	CmdIdentify           CommandType = "Identify"
	CmdIdentifyAdmin      CommandType = "IdentifyAdmin"
	CmdHeartbeat          CommandType = "Heartbeat"
	CmdLogout             CommandType = "Logout"
	CmdSweepPresence      CommandType = "SweepPresence"
)

/*
	CmdStartGame          -> EvtStateUpdated
	CmdPrepareOptions     -> EvtTurnLocked -> EvtOptionsPrepared
	CmdMakeSelection      -> EvtSelectionRevealing -> EvtDrawExecuted -> EvtTurnUnlocked
	CmdOverrideAssignment -> EvtSelectionRevealing -> EvtDrawExecuted
	CmdQuickDraw          -> EvtSelectionRevealing -> EvtDrawExecuted
	CmdSkipTurn           -> (EvtTurnUnlocked) -> EvtStateUpdated
	CmdForceUnlock        -> EvtTurnUnlocked -> EvtStateUpdated
	CmdReset              -> EvtGameReset
	CmdIdentify, CmdHeartbeat -> EvtPresenceConnected
	CmdLogout, CmdSweepPresence -> EvtPresenceDisconnected (one per session)
	CmdIdentifyAdmin      -> EvtAdminIdentified
*/

type Command struct {
	Type  CommandType
	Actor Actor
	Now   time.Time

	ChoiceIndex   int           // MakeSelection
	GifteeID      string        // OverrideAssignment
	ParticipantID string        // Identify
	AdminID       string        // IdentifyAdmin
	StaleAfter    time.Duration // SweepPresence
}

type EventType string

const (
	EvtOptionsPrepared      EventType = "options-prepared"
	EvtSelectionRevealing   EventType = "selection-revealing"
	EvtDrawExecuted         EventType = "draw-executed"
	EvtTurnLocked           EventType = "turn-locked"
	EvtTurnUnlocked         EventType = "turn-unlocked"
	EvtStateUpdated         EventType = "state-updated"
	EvtGameReset            EventType = "game-reset"
	EvtPresenceConnected    EventType = "presence-connected"
	EvtPresenceDisconnected EventType = "presence-disconnected"
	EvtAdminIdentified      EventType = "admin-identified"
)

// Event describes one transition. State is the snapshot right after it, so an
// observer can overwrite its cache without re-deriving anything.
type Event struct {
	Type          EventType         `json:"type"`
	DrawerID      string            `json:"drawerId,omitempty"`
	Options       *DrawOptions      `json:"options,omitempty"`
	SelectedIndex *int              `json:"selectedIndex,omitempty"`
	Result        *DrawResult       `json:"drawResult,omitempty"`
	Session       *presence.Session `json:"session,omitempty"`
	AdminID       string            `json:"adminId,omitempty"`
	AdminOverride bool              `json:"adminOverride,omitempty"`
	Skipped       bool              `json:"skipped,omitempty"`
	State         State             `json:"state"`
}

// Apply validates cmd against s and returns the resulting events and state.
// On error s is returned untouched and no events are produced.
func Apply(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdStartGame:
		return startGame(r, s, cmd)
	case CmdPrepareOptions:
		return prepareOptions(r, s, cmd)
	case CmdMakeSelection:
		return makeSelection(r, s, cmd)
	case CmdOverrideAssignment:
		return overrideAssignment(r, s, cmd)
	case CmdQuickDraw:
		return quickDraw(r, s, cmd)
	case CmdSkipTurn:
		return skipTurn(r, s, cmd)
	case CmdForceUnlock:
		return forceUnlock(r, s, cmd)
	case CmdReset:
		return reset(r, s, cmd)
	case CmdIdentify:
		return identify(r, s, cmd)
	case CmdIdentifyAdmin:
		return identifyAdmin(s, cmd)
	case CmdHeartbeat:
		return heartbeat(r, s, cmd)
	case CmdLogout:
		return logout(s, cmd)
	case CmdSweepPresence:
		return sweepPresence(s, cmd)
	default:
		return nil, s, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Type)
	}
}

func requireAdmin(a Actor) error {
	if a.Role != RoleAdmin {
		return ErrAdminOnly
	}
	return nil
}

// requireDrawerOrAdmin lets the admin act for anyone and a player act only on
// their own turn.
func requireDrawerOrAdmin(r *roster.Roster, s State, a Actor) error {
	switch a.Role {
	case RoleAdmin:
		return nil
	case RolePlayer:
		drawer, ok := s.CurrentDrawer(r)
		if !ok || a.ParticipantID != drawer {
			return ErrNotYourTurn
		}
		return nil
	default:
		return ErrForbidden
	}
}

func requireInProgress(s State) error {
	switch s.Lifecycle {
	case LifecycleNotStarted:
		return ErrNotStarted
	case LifecycleCompleted:
		return ErrGameAlreadyComplete
	}
	if s.IsComplete {
		return ErrGameAlreadyComplete
	}
	return nil
}

func startGame(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return nil, s, err
	}
	if s.Lifecycle != LifecycleNotStarted {
		return nil, s, ErrAlreadyStarted
	}
	if !CanComplete(r, s.CurrentDrawerIndex, s.AvailableGiftees) {
		return nil, s, ErrInfeasible
	}

	next := s.Clone()
	next.Lifecycle = LifecycleInProgress
	if next.CurrentDrawerIndex >= r.Len() {
		next.IsComplete = true
		next.Lifecycle = LifecycleCompleted
		next.SelectionPhase = PhaseComplete
	}
	return []Event{{Type: EvtStateUpdated, State: next.Clone()}}, next, nil
}

func prepareOptions(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if err := requireInProgress(s); err != nil {
		return nil, s, err
	}
	if err := requireDrawerOrAdmin(r, s, cmd.Actor); err != nil {
		return nil, s, err
	}
	// Lock check comes before the phase check so a losing concurrent caller
	// sees the concurrency error it can back off on.
	if s.TurnLocked {
		return nil, s, ErrTurnInProgress
	}
	if s.SelectionPhase != PhaseWaiting {
		return nil, s, ErrWrongPhase
	}

	opts, ok := PrepareOptions(r, s)
	if !ok {
		return nil, s, ErrInfeasible
	}

	next := s.Clone()
	next.TurnLocked = true
	next.SelectionPhase = PhaseSelecting
	next.CurrentOptions = slices.Clone(opts.ViableIDs)
	next.SelectedIndex = nil

	snap := next.Clone()
	return []Event{
		{Type: EvtTurnLocked, DrawerID: opts.DrawerID, State: snap},
		{Type: EvtOptionsPrepared, DrawerID: opts.DrawerID, Options: &opts, State: snap},
	}, next, nil
}

func makeSelection(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if err := requireInProgress(s); err != nil {
		return nil, s, err
	}
	if err := requireDrawerOrAdmin(r, s, cmd.Actor); err != nil {
		return nil, s, err
	}
	if !s.TurnLocked {
		return nil, s, ErrTurnNotLocked
	}
	if s.SelectionPhase != PhaseSelecting {
		return nil, s, ErrWrongPhase
	}

	res, ok := Finalize(r, s, cmd.ChoiceIndex)
	if !ok {
		return nil, s, fmt.Errorf("%w: %d of %d", ErrInvalidChoice, cmd.ChoiceIndex, len(s.CurrentOptions))
	}

	idx := cmd.ChoiceIndex
	revealing := s.Clone()
	revealing.SelectionPhase = PhaseRevealing
	revealing.SelectedIndex = &idx

	committed := Commit(r, revealing, res)
	adminOverride := cmd.Actor.Role == RoleAdmin

	return []Event{
		{Type: EvtSelectionRevealing, DrawerID: res.DrawerID, SelectedIndex: &idx, AdminOverride: adminOverride, State: revealing},
		{Type: EvtDrawExecuted, DrawerID: res.DrawerID, Result: &res, AdminOverride: adminOverride, State: committed.Clone()},
		{Type: EvtTurnUnlocked, DrawerID: res.DrawerID, State: committed.Clone()},
	}, committed, nil
}

func overrideAssignment(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if err := requireInProgress(s); err != nil {
		return nil, s, err
	}
	if err := requireDrawerOrAdmin(r, s, cmd.Actor); err != nil {
		return nil, s, err
	}
	if s.SelectionPhase != PhaseWaiting {
		return nil, s, ErrWrongPhase
	}
	if s.TurnLocked {
		return nil, s, ErrTurnInProgress
	}

	drawer, _ := s.CurrentDrawer(r)
	if !r.Has(cmd.GifteeID) {
		return nil, s, fmt.Errorf("%w: %q", ErrUnknownParticipant, cmd.GifteeID)
	}
	if !slices.Contains(s.AvailableGiftees, cmd.GifteeID) {
		return nil, s, ErrGifteeUnavailable
	}
	if !IsValidPair(r, drawer, cmd.GifteeID) {
		return nil, s, ErrInvalidPair
	}

	res := DrawResult{DrawerID: drawer, GifteeID: cmd.GifteeID, GifteeName: r.Name(cmd.GifteeID)}

	revealing := s.Clone()
	revealing.SelectionPhase = PhaseRevealing
	revealing.SelectedIndex = nil

	committed := Commit(r, revealing, res)
	return []Event{
		{Type: EvtSelectionRevealing, DrawerID: drawer, AdminOverride: true, State: revealing},
		{Type: EvtDrawExecuted, DrawerID: drawer, Result: &res, AdminOverride: true, State: committed.Clone()},
	}, committed, nil
}

// quickDraw completes the current turn with a random solvable giftee, without
// offering options first.
func quickDraw(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return nil, s, err
	}
	if err := requireInProgress(s); err != nil {
		return nil, s, err
	}
	if s.TurnLocked {
		return nil, s, ErrTurnInProgress
	}
	if s.SelectionPhase != PhaseWaiting {
		return nil, s, ErrWrongPhase
	}

	opts, ok := PrepareOptions(r, s)
	if !ok {
		return nil, s, ErrInfeasible
	}
	giftee := opts.ViableIDs[0]
	res := DrawResult{DrawerID: opts.DrawerID, GifteeID: giftee, GifteeName: r.Name(giftee)}

	revealing := s.Clone()
	revealing.SelectionPhase = PhaseRevealing
	revealing.SelectedIndex = nil

	committed := Commit(r, revealing, res)
	return []Event{
		{Type: EvtSelectionRevealing, DrawerID: res.DrawerID, Options: &opts, State: revealing},
		{Type: EvtDrawExecuted, DrawerID: res.DrawerID, Result: &res, State: committed.Clone()},
	}, committed, nil
}

func skipTurn(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if err := requireInProgress(s); err != nil {
		return nil, s, err
	}
	if err := requireDrawerOrAdmin(r, s, cmd.Actor); err != nil {
		return nil, s, err
	}

	drawer, _ := s.CurrentDrawer(r)
	next := advance(r, s.Clone())

	var events []Event
	if s.TurnLocked {
		events = append(events, Event{Type: EvtTurnUnlocked, DrawerID: drawer, Skipped: true, State: next.Clone()})
	}
	events = append(events, Event{Type: EvtStateUpdated, DrawerID: drawer, Skipped: true, State: next.Clone()})
	return events, next, nil
}

func forceUnlock(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return nil, s, err
	}
	if !s.TurnLocked {
		return nil, s, ErrTurnNotLocked
	}

	drawer, _ := s.CurrentDrawer(r)
	next := s.Clone()
	next.TurnLocked = false
	next.SelectionPhase = PhaseWaiting
	next.CurrentOptions = nil
	next.SelectedIndex = nil

	snap := next.Clone()
	return []Event{
		{Type: EvtTurnUnlocked, DrawerID: drawer, State: snap},
		{Type: EvtStateUpdated, State: snap},
	}, next, nil
}

// reset rebuilds the draw from scratch. Presence and the admin id describe who
// is connected, not the draw, so they survive.
func reset(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return nil, s, err
	}

	next := NewState(r)
	next.Sessions = s.Sessions.Clone()
	next.AdminID = s.AdminID
	return []Event{{Type: EvtGameReset, State: next.Clone()}}, next, nil
}

func identify(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if !r.Has(cmd.ParticipantID) {
		return nil, s, fmt.Errorf("%w: %q", ErrUnknownParticipant, cmd.ParticipantID)
	}
	next := s.Clone()
	sess, _ := next.Sessions.Touch(cmd.ParticipantID, cmd.Now)
	return []Event{{Type: EvtPresenceConnected, Session: &sess, State: next.Clone()}}, next, nil
}

func identifyAdmin(s State, cmd Command) ([]Event, State, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return nil, s, err
	}
	next := s.Clone()
	next.AdminID = cmd.AdminID
	return []Event{{Type: EvtAdminIdentified, AdminID: cmd.AdminID, State: next.Clone()}}, next, nil
}

func heartbeat(r *roster.Roster, s State, cmd Command) ([]Event, State, error) {
	if cmd.Actor.Role != RolePlayer {
		return nil, s, ErrForbidden
	}
	if !r.Has(cmd.Actor.ParticipantID) {
		return nil, s, fmt.Errorf("%w: %q", ErrUnknownParticipant, cmd.Actor.ParticipantID)
	}
	next := s.Clone()
	sess, _ := next.Sessions.Touch(cmd.Actor.ParticipantID, cmd.Now)
	return []Event{{Type: EvtPresenceConnected, Session: &sess, State: next.Clone()}}, next, nil
}

func logout(s State, cmd Command) ([]Event, State, error) {
	if cmd.Actor.Role != RolePlayer {
		// Admins and spectators carry no presence.
		return nil, s, nil
	}
	next := s.Clone()
	sess, ok := next.Sessions.Logout(cmd.Actor.ParticipantID, cmd.Now)
	if !ok {
		return nil, s, nil
	}
	return []Event{{Type: EvtPresenceDisconnected, Session: &sess, State: next.Clone()}}, next, nil
}

func sweepPresence(s State, cmd Command) ([]Event, State, error) {
	staleAfter := cmd.StaleAfter
	if staleAfter <= 0 {
		staleAfter = presence.DefaultStaleAfter
	}

	next := s.Clone()
	flipped := next.Sessions.Sweep(cmd.Now, staleAfter)
	if len(flipped) == 0 {
		return nil, s, nil
	}

	snap := next.Clone()
	events := make([]Event, 0, len(flipped))
	for _, id := range flipped {
		sess := next.Sessions[id]
		events = append(events, Event{Type: EvtPresenceDisconnected, Session: &sess, State: snap})
	}
	return events, next, nil
}
