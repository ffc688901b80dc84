// Package lobby owns the single authoritative draw state. Every command is
// applied by one goroutine, so the engine's check-and-set on the turn lock
// never races.
package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/presence"
	"github.com/DoyleJ11/santa-draw-backend/internal/roster"
	"github.com/DoyleJ11/santa-draw-backend/internal/types"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

// FromClient applies Cmd. Reply is optional; when set it receives exactly one
// Outcome.
type FromClient struct {
	Cmd   engine.Command
	Reply chan Outcome
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

// GetState runs a presence sweep and replies with the current view.
type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// Snapshot is one versioned message to subscribers. Event is nil for the
// full snapshot sent on join.
type Snapshot struct {
	Version int
	Exists  bool
	Event   *engine.Event
	State   engine.State
}

// Message converts s to its wire form.
func (s Snapshot) Message() types.ServerMessage {
	state := s.State
	msg := types.ServerMessage{
		Type:    types.MsgStateSnapshot,
		Version: s.Version,
		Exists:  s.Exists,
		State:   &state,
	}
	if s.Event != nil {
		ev := *s.Event
		msg.Type = string(ev.Type)
		msg.Event = &ev
	}
	return msg
}

type View struct {
	Version    int
	NumClients int
	Exists     bool
	State      engine.State
}

// Outcome is the result of one command.
type Outcome struct {
	Events  []engine.Event
	Version int
	State   engine.State
	Err     error
}

// Sink receives every committed snapshot after the state has been replaced.
// Forward must not block.
type Sink interface {
	Forward(Snapshot)
}

type Option func(*Lobby)

func WithLogger(log *zap.Logger) Option { return func(l *Lobby) { l.log = log } }

func WithSink(s Sink) Option { return func(l *Lobby) { l.sinks = append(l.sinks, s) } }

func WithClock(now func() time.Time) Option { return func(l *Lobby) { l.now = now } }

func WithStaleAfter(d time.Duration) Option { return func(l *Lobby) { l.staleAfter = d } }

// WithState seeds the lobby with an existing state instead of creating one on
// first use.
func WithState(s engine.State) Option {
	return func(l *Lobby) {
		c := s.Clone()
		l.state = &c
	}
}

type Lobby struct {
	inbox      chan Msg
	roster     *roster.Roster
	state      *engine.State // nil until the first command
	version    int
	clients    map[string]chan Snapshot
	sinks      []Sink
	log        *zap.Logger
	now        func() time.Time
	staleAfter time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewLobby(parent context.Context, r *roster.Roster, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:      make(chan Msg, 64),
		roster:     r,
		clients:    make(map[string]chan Snapshot),
		log:        zap.NewNop(),
		now:        time.Now,
		staleAfter: presence.DefaultStaleAfter,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.sweep()
				l.clients[msg.ClientID] = msg.Outbox
				select {
				case msg.Outbox <- l.snapshot(nil):
				default:
					l.drop(msg.ClientID, msg.Outbox)
				}

			case Leave:
				// drop may already have closed and removed it
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case FromClient:
				out := l.apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- out
				}

			case GetState:
				l.sweep()
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Exists:     l.state != nil,
					State:      l.current(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// apply runs cmd against the authoritative state. The state is replaced
// before any snapshot leaves the goroutine.
func (l *Lobby) apply(cmd engine.Command) Outcome {
	if cmd.Now.IsZero() {
		cmd.Now = l.now()
	}
	if cmd.Type == engine.CmdSweepPresence && cmd.StaleAfter == 0 {
		cmd.StaleAfter = l.staleAfter
	}

	events, next, err := engine.Apply(l.roster, l.current(), cmd)
	if err != nil {
		l.logRejected(cmd, err)
		return Outcome{Version: l.version, State: l.current(), Err: err}
	}
	if len(events) == 0 {
		return Outcome{Version: l.version, State: l.current()}
	}

	l.state = &next
	for i := range events {
		l.version++
		ev := events[i]
		l.logCommitted(ev)
		l.publish(l.snapshot(&ev))
	}
	if next.IsComplete && engine.ContainsEvent(events, engine.EvtDrawExecuted) {
		l.log.Info("draw complete", zap.Int("assignments", len(next.Assignments)), zap.Int("version", l.version))
	}
	return Outcome{Events: events, Version: l.version, State: next.Clone()}
}

func (l *Lobby) sweep() {
	if l.state == nil {
		return
	}
	l.apply(engine.Command{Type: engine.CmdSweepPresence})
}

// current returns a private copy of the authoritative state, or a fresh one
// when none has been created yet.
func (l *Lobby) current() engine.State {
	if l.state == nil {
		return engine.NewState(l.roster)
	}
	return l.state.Clone()
}

func (l *Lobby) snapshot(ev *engine.Event) Snapshot {
	return Snapshot{Version: l.version, Exists: l.state != nil, Event: ev, State: l.current()}
}

func (l *Lobby) publish(snap Snapshot) {
	l.broadcast(snap)
	for _, s := range l.sinks {
		s.Forward(snap)
	}
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			l.drop(id, ch)
		}
	}
}

func (l *Lobby) drop(id string, ch chan Snapshot) {
	l.log.Warn("dropping slow subscriber", zap.String("client", id))
	close(ch)
	delete(l.clients, id)
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) logRejected(cmd engine.Command, err error) {
	fields := []zap.Field{
		zap.String("command", string(cmd.Type)),
		zap.String("role", string(cmd.Actor.Role)),
		zap.String("participant", cmd.Actor.ParticipantID),
		zap.String("kind", string(engine.KindOf(err))),
		zap.Error(err),
	}
	if errors.Is(err, engine.ErrInfeasible) {
		l.log.Error("draw cannot be completed", fields...)
		return
	}
	l.log.Debug("command rejected", fields...)
}

func (l *Lobby) logCommitted(ev engine.Event) {
	if ev.Options != nil && ev.Options.Fallback {
		l.log.Error("no option preserves solvability, offering raw legal set",
			zap.String("drawer", ev.DrawerID),
			zap.Strings("options", ev.Options.ViableIDs))
	}
	l.log.Info("transition",
		zap.String("event", string(ev.Type)),
		zap.Int("version", l.version),
		zap.String("drawer", ev.DrawerID),
		zap.Int("index", ev.State.CurrentDrawerIndex),
		zap.String("phase", string(ev.State.SelectionPhase)))
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Roster() *roster.Roster { return l.roster }

// Submit applies cmd and waits for its outcome. Engine rejections are
// returned as the error; the Outcome still carries the unchanged state.
func (l *Lobby) Submit(ctx context.Context, cmd engine.Command) (Outcome, error) {
	reply := make(chan Outcome, 1)
	if err := l.send(ctx, FromClient{Cmd: cmd, Reply: reply}); err != nil {
		return Outcome{}, err
	}
	select {
	case out := <-reply:
		return out, out.Err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-l.ctx.Done():
		return Outcome{}, ErrClosed
	}
}

// View fetches the current state after the lazy presence sweep.
func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-l.ctx.Done():
		return View{}, ErrClosed
	}
}

func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrClosed
	}
}

// Done is closed once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }
