package types

import "github.com/DoyleJ11/santa-draw-backend/internal/engine"

const (
	MsgStateSnapshot = "StateSnapshot"
	MsgError         = "Error"
)

// Client message types accepted over the WebSocket.
const (
	ClientHeartbeat = "Heartbeat"
	ClientPrepare   = "PrepareOptions"
	ClientSelect    = "MakeSelection"
)

type ClientMessage struct {
	Type        string `json:"type" validate:"required,oneof=Heartbeat PrepareOptions MakeSelection"`
	ChoiceIndex *int   `json:"choiceIndex,omitempty" validate:"omitempty,min=0"`
}

// ServerMessage is what subscribers receive, over the WebSocket and the
// external pub/sub channel alike. Type is MsgStateSnapshot, MsgError or the
// engine event type.
type ServerMessage struct {
	Type    string        `json:"type"`
	Version int           `json:"version"`
	Exists  bool          `json:"exists"`
	Event   *engine.Event `json:"event,omitempty"`
	State   *engine.State `json:"state,omitempty"`
	Error   string        `json:"error,omitempty"`
	Code    string        `json:"code,omitempty"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Exists  bool          `json:"exists"`
	Version int           `json:"version"`
	State   *engine.State `json:"state"`
	Board   []engine.Seat `json:"board"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
