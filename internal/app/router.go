package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

// CoordinationRouter turns an inbound domain event from one side of a room
// into outbound events for the other side, applying the translation cooldown.
//
// Delivery failures never tear a room down: a peer with no live connection
// just means the event is dropped, while room bookkeeping still applies
// where the operation calls for it. Only explicit disconnect or idle timeout
// closes a room.
type CoordinationRouter struct {
	Registry *ConnectionRegistry
	Rooms    *RoomStore

	// Cooldown is the minimum interval between accepted translations per room.
	Cooldown time.Duration
	// EchoTranslationToPartner also delivers translation_text to the partner,
	// not just the originating side.
	EchoTranslationToPartner bool
}

// RouteSpeech fans a transcript out: partner_speech to the other side and a
// user_speech echo back to the speaker. Raw speech has no cooldown.
func (rt *CoordinationRouter) RouteSpeech(roomID domain.RoomID, from domain.ParticipantID, text string) error {
	room, err := rt.Rooms.Get(roomID)
	if err != nil {
		return err
	}
	partner, ok := room.Partner(from)
	if !ok {
		return domain.ErrNotFound
	}
	fromLang, _ := room.LanguageOf(from)

	rt.deliver(from, core.UserSpeech{RoomID: roomID, Text: text, Language: fromLang})
	rt.deliver(partner, core.PartnerSpeech{RoomID: roomID, Text: text, FromLanguage: fromLang})
	return nil
}

// RouteTranslation applies the cooldown window. A suppressed translation
// produces a translation_suppressed diagnostic for the originator only and
// leaves the room's translation bookkeeping untouched. Returns whether the
// translation was delivered.
func (rt *CoordinationRouter) RouteTranslation(roomID domain.RoomID, from domain.ParticipantID, text string, target domain.Language) (bool, error) {
	room, err := rt.Rooms.Get(roomID)
	if err != nil {
		return false, err
	}
	partner, ok := room.Partner(from)
	if !ok {
		return false, domain.ErrNotFound
	}

	allowed, err := rt.Rooms.AllowTranslation(roomID, rt.Cooldown)
	if err != nil {
		return false, err
	}
	if !allowed {
		log.Debug().Str("module", "app.router").Str("room", string(roomID)).Msg("translation suppressed by cooldown")
		rt.deliver(from, core.TranslationSuppressed{RoomID: roomID, RetryAfterMS: rt.Cooldown.Milliseconds()})
		return false, nil
	}

	ev := core.TranslationText{RoomID: roomID, Text: text, TargetLanguage: target}
	rt.deliver(from, ev)
	if rt.EchoTranslationToPartner {
		rt.deliver(partner, ev)
	}
	return true, nil
}

// RouteAudio forwards a binary frame to the partner. No cooldown: audio is
// latency-sensitive and the handle drops frames under backpressure instead
// of queuing.
func (rt *CoordinationRouter) RouteAudio(roomID domain.RoomID, from domain.ParticipantID, chunk []byte) error {
	room, err := rt.Rooms.Get(roomID)
	if err != nil {
		return err
	}
	partner, ok := room.Partner(from)
	if !ok {
		return domain.ErrNotFound
	}
	cid, ok := rt.Registry.ConnectionOf(partner)
	if !ok {
		return nil
	}
	if err := rt.Registry.DeliverAudio(cid, chunk); err != nil {
		log.Debug().Str("module", "app.router").Str("room", string(roomID)).Err(err).Msg("audio frame dropped")
	}
	return nil
}

// RouteStatus delivers a status event to a single participant.
func (rt *CoordinationRouter) RouteStatus(to domain.ParticipantID, ev core.Event) {
	rt.deliver(to, ev)
}

// RouteSynthesis reports TTS start/stop to both sides and tracks the
// speaking flag of the side whose audio is playing.
func (rt *CoordinationRouter) RouteSynthesis(roomID domain.RoomID, from domain.ParticipantID, started bool) error {
	room, err := rt.Rooms.Get(roomID)
	if err != nil {
		return err
	}
	partner, ok := room.Partner(from)
	if !ok {
		return domain.ErrNotFound
	}
	rt.Rooms.SetSpeaking(from, started)
	var ev core.Event
	if started {
		ev = core.SynthesisStarted{RoomID: roomID}
	} else {
		ev = core.SynthesisStopped{RoomID: roomID}
	}
	rt.deliver(from, ev)
	rt.deliver(partner, ev)
	return nil
}

// deliver drops the event silently when the participant has no live
// connection or its queue is saturated.
func (rt *CoordinationRouter) deliver(to domain.ParticipantID, ev core.Event) {
	cid, ok := rt.Registry.ConnectionOf(to)
	if !ok {
		return
	}
	if err := rt.Registry.Deliver(cid, ev); err != nil {
		log.Debug().Str("module", "app.router").Str("pid", string(to)).Str("kind", string(ev.Kind())).Err(err).Msg("event dropped")
	}
}
