package core

import (
	"encoding/json"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

type EventKind string

const (
	EventWaiting               EventKind = "waiting"
	EventMatchFound            EventKind = "match_found"
	EventUserSpeech            EventKind = "user_speech"
	EventPartnerSpeech         EventKind = "partner_speech"
	EventTranslationText       EventKind = "translation_text"
	EventTranslationSuppressed EventKind = "translation_suppressed"
	EventAudio                 EventKind = "audio"
	EventPartnerReady          EventKind = "partner_ready"
	EventPartnerDisconnected   EventKind = "partner_disconnected"
	EventSynthesisStarted      EventKind = "translation_audio_started"
	EventSynthesisStopped      EventKind = "translation_audio_stopped"
)

// Event is the closed set of outbound messages a client can receive.
// Each variant carries only the fields its kind needs; encoding to the
// wire envelope happens at the adapter boundary via Encode.
type Event interface {
	Kind() EventKind
}

type Waiting struct {
	Language domain.Language `json:"language"`
}

type MatchFound struct {
	RoomID          domain.RoomID        `json:"room_id"`
	PartnerID       domain.ParticipantID `json:"partner_id"`
	PartnerLanguage domain.Language      `json:"partner_language"`
}

// UserSpeech echoes a transcript back to its speaker for on-screen feedback.
type UserSpeech struct {
	RoomID   domain.RoomID   `json:"room_id"`
	Text     string          `json:"text"`
	Language domain.Language `json:"language"`
}

type PartnerSpeech struct {
	RoomID       domain.RoomID   `json:"room_id"`
	Text         string          `json:"text"`
	FromLanguage domain.Language `json:"from_language"`
}

type TranslationText struct {
	RoomID         domain.RoomID   `json:"room_id"`
	Text           string          `json:"text"`
	TargetLanguage domain.Language `json:"target_language"`
}

// TranslationSuppressed is a flow-control outcome, not a failure.
type TranslationSuppressed struct {
	RoomID       domain.RoomID `json:"room_id"`
	RetryAfterMS int64         `json:"retry_after_ms"`
}

// Audio is the JSON fallback for clients that cannot take binary frames;
// Data is base64-encoded by encoding/json.
type Audio struct {
	RoomID     domain.RoomID `json:"room_id"`
	Data       []byte        `json:"data"`
	SampleRate int           `json:"sample_rate"`
	Format     string        `json:"format"`
}

type PartnerReady struct {
	RoomID          domain.RoomID        `json:"room_id"`
	PartnerID       domain.ParticipantID `json:"partner_id"`
	PartnerLanguage domain.Language      `json:"partner_language"`
}

type PartnerDisconnected struct {
	RoomID domain.RoomID `json:"room_id"`
	Reason string        `json:"reason"`
}

type SynthesisStarted struct {
	RoomID domain.RoomID `json:"room_id"`
}

type SynthesisStopped struct {
	RoomID domain.RoomID `json:"room_id"`
}

func (Waiting) Kind() EventKind               { return EventWaiting }
func (MatchFound) Kind() EventKind            { return EventMatchFound }
func (UserSpeech) Kind() EventKind            { return EventUserSpeech }
func (PartnerSpeech) Kind() EventKind         { return EventPartnerSpeech }
func (TranslationText) Kind() EventKind       { return EventTranslationText }
func (TranslationSuppressed) Kind() EventKind { return EventTranslationSuppressed }
func (Audio) Kind() EventKind                 { return EventAudio }
func (PartnerReady) Kind() EventKind          { return EventPartnerReady }
func (PartnerDisconnected) Kind() EventKind   { return EventPartnerDisconnected }
func (SynthesisStarted) Kind() EventKind      { return EventSynthesisStarted }
func (SynthesisStopped) Kind() EventKind      { return EventSynthesisStopped }

// Encode wraps an event into its wire envelope: the variant's own fields
// plus a "type" discriminator.
func Encode(e Event) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(e.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = kind
	return json.Marshal(fields)
}
