package app

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

// SessionFacade is the boundary API the transport and AI collaborators talk
// to. It drives the registry, matcher, store and router and emits outbound
// events through the registry; adapters never reach into those components
// directly.
type SessionFacade struct {
	Registry *ConnectionRegistry
	Matcher  *RoomMatcher
	Rooms    *RoomStore
	Router   *CoordinationRouter
}

type JoinResult struct {
	ParticipantID   domain.ParticipantID
	ConnectionID    core.ConnectionID
	Status          MatchStatus
	RoomID          domain.RoomID
	PartnerID       domain.ParticipantID
	PartnerLanguage domain.Language
}

// Join registers the connection and runs the matcher. On a match the
// previously-waiting partner is notified out-of-band through its own
// connection; the caller gets the result directly.
func (f *SessionFacade) Join(participantID string, lang domain.Language, handle core.DeliveryHandle) (JoinResult, error) {
	p := domain.NewParticipant(participantID, lang)
	pid := p.ID
	cid := core.ConnectionID(uuid.NewString())

	if err := f.Registry.Register(cid, pid, handle); err != nil {
		return JoinResult{}, err
	}

	res, err := f.Matcher.Enqueue(pid, lang)
	if err != nil {
		f.Registry.Unregister(cid)
		return JoinResult{}, err
	}

	out := JoinResult{
		ParticipantID:   pid,
		ConnectionID:    cid,
		Status:          res.Status,
		RoomID:          res.RoomID,
		PartnerID:       res.PartnerID,
		PartnerLanguage: res.PartnerLanguage,
	}
	if res.Status == StatusMatched {
		f.Router.RouteStatus(res.PartnerID, core.MatchFound{
			RoomID:          res.RoomID,
			PartnerID:       pid,
			PartnerLanguage: lang,
		})
	} else {
		f.Router.RouteStatus(pid, core.Waiting{Language: lang})
	}
	return out, nil
}

// Touch refreshes the connection's liveness for the background sweep.
func (f *SessionFacade) Touch(cid core.ConnectionID) {
	f.Registry.Touch(cid)
}

// MarkConnected is the media-ready signal from the transport layer.
// Idempotent per side; the waiting→active transition notifies both sides
// that their partner is ready.
func (f *SessionFacade) MarkConnected(cid core.ConnectionID) error {
	pid, ok := f.Registry.ParticipantOf(cid)
	if !ok {
		return domain.ErrNotFound
	}
	f.Registry.Touch(cid)
	room, err := f.Rooms.LookupByParticipant(pid)
	if err != nil {
		return err
	}
	active, err := f.Rooms.MarkConnected(room.ID, pid)
	if err != nil {
		return err
	}
	if active {
		f.Router.RouteStatus(room.SideA, core.PartnerReady{
			RoomID: room.ID, PartnerID: room.SideB, PartnerLanguage: room.LangB,
		})
		f.Router.RouteStatus(room.SideB, core.PartnerReady{
			RoomID: room.ID, PartnerID: room.SideA, PartnerLanguage: room.LangA,
		})
	}
	return nil
}

// OnTranscript is the speech ingress from the transcription collaborator.
func (f *SessionFacade) OnTranscript(cid core.ConnectionID, text string, detected domain.Language) error {
	pid, ok := f.Registry.ParticipantOf(cid)
	if !ok {
		return domain.ErrNotFound
	}
	f.Registry.Touch(cid)
	room, err := f.Rooms.LookupByParticipant(pid)
	if err != nil {
		return err
	}
	_ = detected // declared language drives routing; detection is advisory
	return f.Router.RouteSpeech(room.ID, pid, text)
}

// OnTranslation is the ingress from the translation/synthesis collaborator.
// Reports whether the translation passed the cooldown gate.
func (f *SessionFacade) OnTranslation(cid core.ConnectionID, text string, target domain.Language) (bool, error) {
	pid, ok := f.Registry.ParticipantOf(cid)
	if !ok {
		return false, domain.ErrNotFound
	}
	f.Registry.Touch(cid)
	room, err := f.Rooms.LookupByParticipant(pid)
	if err != nil {
		return false, err
	}
	return f.Router.RouteTranslation(room.ID, pid, text, target)
}

// OnAudio forwards a raw audio frame to the partner.
func (f *SessionFacade) OnAudio(cid core.ConnectionID, chunk []byte) error {
	pid, ok := f.Registry.ParticipantOf(cid)
	if !ok {
		return domain.ErrNotFound
	}
	f.Registry.Touch(cid)
	room, err := f.Rooms.LookupByParticipant(pid)
	if err != nil {
		return err
	}
	return f.Router.RouteAudio(room.ID, pid, chunk)
}

// OnSynthesis relays TTS start/stop from the synthesis collaborator.
func (f *SessionFacade) OnSynthesis(cid core.ConnectionID, started bool) error {
	pid, ok := f.Registry.ParticipantOf(cid)
	if !ok {
		return domain.ErrNotFound
	}
	f.Registry.Touch(cid)
	room, err := f.Rooms.LookupByParticipant(pid)
	if err != nil {
		return err
	}
	return f.Router.RouteSynthesis(room.ID, pid, started)
}

// OnDisconnect unregisters the connection, cancels any pending wait and
// tears down the participant's room, notifying the remaining side.
func (f *SessionFacade) OnDisconnect(cid core.ConnectionID, reason string) {
	pid, ok := f.Registry.ParticipantOf(cid)
	f.Registry.Unregister(cid)
	if !ok {
		return
	}
	f.Matcher.Cancel(pid)

	room, err := f.Rooms.LookupByParticipant(pid)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Str("module", "app.facade").Err(err).Msg("room lookup on disconnect")
		}
		return
	}
	snap, closed := f.Rooms.Close(room.ID, reason)
	if !closed {
		return
	}
	if partner, ok := snap.Partner(pid); ok {
		f.Router.RouteStatus(partner, core.PartnerDisconnected{RoomID: snap.ID, Reason: reason})
	}
	log.Info().Str("module", "app.facade").Str("pid", string(pid)).Str("reason", reason).Msg("participant disconnected")
}

// CloseRoom tears a room down by id, notifying both sides. Used by the
// background sweep for idle rooms.
func (f *SessionFacade) CloseRoom(id domain.RoomID, reason string) {
	snap, closed := f.Rooms.Close(id, reason)
	if !closed {
		return
	}
	f.Router.RouteStatus(snap.SideA, core.PartnerDisconnected{RoomID: snap.ID, Reason: reason})
	f.Router.RouteStatus(snap.SideB, core.PartnerDisconnected{RoomID: snap.ID, Reason: reason})
}

type Stats struct {
	ActiveRooms       int                     `json:"active_rooms"`
	WaitingByLanguage map[domain.Language]int `json:"waiting_by_language"`
	TotalParticipants int                     `json:"total_participants"`
}

// Stats is a read-only snapshot; each component copies its own state under
// its own lock, no global freeze. ActiveRooms counts every open room: a
// matched pair still negotiating media already occupies a room, so
// total == Σ waiting + 2·active holds through the pre-media window too.
func (f *SessionFacade) Stats() Stats {
	return Stats{
		ActiveRooms:       f.Rooms.Count(),
		WaitingByLanguage: f.Matcher.WaitingByLanguage(),
		TotalParticipants: f.Registry.Count(),
	}
}
