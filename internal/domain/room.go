package domain

import "time"

type RoomID string

type RoomState string

const (
	// RoomWaiting: both sides are matched but media is not ready on both yet.
	RoomWaiting RoomState = "waiting"
	RoomActive  RoomState = "active"
	RoomClosing RoomState = "closing"
	RoomClosed  RoomState = "closed"
)

// Room pairs exactly two participants translating for each other.
type Room struct {
	ID    RoomID
	State RoomState

	SideA ParticipantID
	SideB ParticipantID
	LangA Language
	LangB Language

	ConnectedA bool
	ConnectedB bool

	// SpeakingA/B mark whose synthesized audio is currently playing.
	SpeakingA bool
	SpeakingB bool

	CreatedAt         time.Time
	LastTranslationAt time.Time
	TranslationCount  int
}

// Has reports whether pid occupies one of the two slots.
func (r *Room) Has(pid ParticipantID) bool {
	return r.SideA == pid || r.SideB == pid
}

// Partner returns the opposite slot for pid.
func (r *Room) Partner(pid ParticipantID) (ParticipantID, bool) {
	switch pid {
	case r.SideA:
		return r.SideB, true
	case r.SideB:
		return r.SideA, true
	}
	return "", false
}

// LanguageOf returns the declared language of pid's slot.
func (r *Room) LanguageOf(pid ParticipantID) (Language, bool) {
	switch pid {
	case r.SideA:
		return r.LangA, true
	case r.SideB:
		return r.LangB, true
	}
	return "", false
}
