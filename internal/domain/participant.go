package domain

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantID string

type ParticipantState string

const (
	ParticipantWaiting      ParticipantState = "waiting"
	ParticipantMatched      ParticipantState = "matched"
	ParticipantConnected    ParticipantState = "connected"
	ParticipantDisconnected ParticipantState = "disconnected"
)

// Participant is one side of a translation conversation.
type Participant struct {
	ID       ParticipantID    `json:"id"`
	Language Language         `json:"language"`
	State    ParticipantState `json:"state"`
	JoinedAt time.Time        `json:"joined_at"`
	Speaking bool             `json:"speaking"`
}

// NewParticipant generates an id when the caller did not supply one.
func NewParticipant(id string, lang Language) *Participant {
	if id == "" {
		id = uuid.NewString()
	}
	return &Participant{
		ID:       ParticipantID(id),
		Language: lang,
		State:    ParticipantWaiting,
		JoinedAt: time.Now(),
	}
}
