package engine

import "github.com/DoyleJ11/santa-draw-backend/internal/roster"

type SeatStatus string

const (
	SeatWaiting   SeatStatus = "waiting"
	SeatDrawing   SeatStatus = "drawing"
	SeatCompleted SeatStatus = "completed"
)

// Seat is one row of the player board: a participant in draw order.
type Seat struct {
	ParticipantID string     `json:"participantId"`
	Name          string     `json:"name"`
	Order         int        `json:"order"`
	Status        SeatStatus `json:"status"`
	Online        bool       `json:"online"`
}

// Board derives the player board from the draw cursor.
func Board(r *roster.Roster, s State) []Seat {
	order := r.DrawOrder()
	seats := make([]Seat, len(order))
	for i, id := range order {
		status := SeatWaiting
		switch {
		case i < s.CurrentDrawerIndex:
			status = SeatCompleted
		case i == s.CurrentDrawerIndex:
			status = SeatDrawing
		}
		seats[i] = Seat{
			ParticipantID: id,
			Name:          r.Name(id),
			Order:         i + 1,
			Status:        status,
			Online:        s.Sessions[id].IsOnline,
		}
	}
	return seats
}
