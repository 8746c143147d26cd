package brackets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MessageScoreEntered  = "SCORE_ENTERED"
	MessageBracketUpdate = "BRACKET_UPDATED"
)

type WebSocketMessage struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

// ScoreEntered is pushed for every playoff score, verified or not.
type ScoreEntered struct {
	TournamentID int      `json:"tournament_id"`
	Bracket      string   `json:"bracket_name"`
	TeamNumber   int      `json:"team_number"`
	RunNumber    int      `json:"run_number"`
	LineNumber   int      `json:"line_number"`
	Score        *float64 `json:"score"`
	NoShow       bool     `json:"no_show"`
	Verified     bool     `json:"verified"`
	Table        *string  `json:"table,omitempty"`
}

// BracketUpdate is pushed when a slot of a bracket changes.
type BracketUpdate struct {
	TournamentID int      `json:"tournament_id"`
	Bracket      string   `json:"bracket_name"`
	LineNumber   int      `json:"line_number"`
	RunNumber    int      `json:"run_number"`
	TeamNumber   int      `json:"team_number"`
	Score        *float64 `json:"score"`
	NoShow       bool     `json:"no_show"`
	Verified     bool     `json:"verified"`
	Table        *string  `json:"table,omitempty"`
}

// Notifier pushes live updates to displays. Implementations must not block
// and have no way to fail the caller.
type Notifier interface {
	NotifyScoreEntered(ctx context.Context, e ScoreEntered)
	NotifyBracketUpdate(ctx context.Context, u BracketUpdate)
}

// Notification is a queued update, sent once the store transaction committed.
type Notification struct {
	ScoreEntered  *ScoreEntered
	BracketUpdate *BracketUpdate
}

// Dispatch sends the queued notifications in order.
func Dispatch(ctx context.Context, n Notifier, notes []Notification) {
	if n == nil {
		return
	}
	for _, note := range notes {
		switch {
		case note.ScoreEntered != nil:
			n.NotifyScoreEntered(ctx, *note.ScoreEntered)
		case note.BracketUpdate != nil:
			n.NotifyBracketUpdate(ctx, *note.BracketUpdate)
		}
	}
}

type NopNotifier struct{}

func (NopNotifier) NotifyScoreEntered(context.Context, ScoreEntered)   {}
func (NopNotifier) NotifyBracketUpdate(context.Context, BracketUpdate) {}

// TournamentRoom is the hub room of a tournament's displays.
func TournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}

func newMessage(msgType, room string, payload interface{}) WebSocketMessage {
	return WebSocketMessage{
		ID:      uuid.NewString(),
		Type:    msgType,
		Payload: payload,
		RoomID:  room,
		SentAt:  time.Now().UTC(),
	}
}

func (h *Hub) NotifyScoreEntered(_ context.Context, e ScoreEntered) {
	room := TournamentRoom(e.TournamentID)
	h.BroadcastToRoom(room, newMessage(MessageScoreEntered, room, e))
}

func (h *Hub) NotifyBracketUpdate(_ context.Context, u BracketUpdate) {
	room := TournamentRoom(u.TournamentID)
	h.BroadcastToRoom(room, newMessage(MessageBracketUpdate, room, u))
}
