package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

// RoomStore is the authoritative map of room id → room state.
// It owns the room map and the participant index exclusively.
// Rooms move waiting → active → closing → closed; closed is terminal and a
// closed room is removed, so a participant who wants to continue re-enters
// the matcher and gets a fresh room id.
type RoomStore struct {
	mu            sync.RWMutex
	rooms         map[domain.RoomID]*domain.Room
	byParticipant map[domain.ParticipantID]domain.RoomID
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:         make(map[domain.RoomID]*domain.Room),
		byParticipant: make(map[domain.ParticipantID]domain.RoomID),
	}
}

// Create pairs two previously-unmatched participants into a waiting room.
func (s *RoomStore) Create(pa domain.ParticipantID, la domain.Language, pb domain.ParticipantID, lb domain.Language) domain.Room {
	room := &domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		State:     domain.RoomWaiting,
		SideA:     pa,
		SideB:     pb,
		LangA:     la,
		LangB:     lb,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.rooms[room.ID] = room
	s.byParticipant[pa] = room.ID
	s.byParticipant[pb] = room.ID
	s.mu.Unlock()
	log.Info().Str("module", "app.roomstore").
		Str("room", string(room.ID)).
		Str("side_a", string(pa)).Str("lang_a", string(la)).
		Str("side_b", string(pb)).Str("lang_b", string(lb)).
		Msg("room created")
	return *room
}

// MarkConnected records that one side's media transport is ready.
// Idempotent per side; once both sides are connected the room goes active.
// Returns true on the waiting→active transition.
func (s *RoomStore) MarkConnected(id domain.RoomID, pid domain.ParticipantID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok || !room.Has(pid) {
		return false, domain.ErrNotFound
	}
	switch pid {
	case room.SideA:
		room.ConnectedA = true
	case room.SideB:
		room.ConnectedB = true
	}
	if room.State == domain.RoomWaiting && room.ConnectedA && room.ConnectedB {
		room.State = domain.RoomActive
		log.Info().Str("module", "app.roomstore").Str("room", string(id)).Msg("room active")
		return true, nil
	}
	return false, nil
}

// Get returns a snapshot of the room.
func (s *RoomStore) Get(id domain.RoomID) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return *room, nil
}

// LookupByParticipant returns a snapshot of the room holding pid.
func (s *RoomStore) LookupByParticipant(pid domain.ParticipantID) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byParticipant[pid]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return *room, nil
}

// PartnerOf resolves the opposite slot of pid's room.
func (s *RoomStore) PartnerOf(pid domain.ParticipantID) (domain.ParticipantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byParticipant[pid]
	if !ok {
		return "", domain.ErrNotFound
	}
	room, ok := s.rooms[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	partner, ok := room.Partner(pid)
	if !ok {
		return "", domain.ErrNotFound
	}
	return partner, nil
}

// AllowTranslation applies the cooldown gate atomically: if the window since
// the last accepted translation is open it records the new one and reports
// true; otherwise bookkeeping is left untouched.
func (s *RoomStore) AllowTranslation(id domain.RoomID, cooldown time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	now := time.Now()
	if !room.LastTranslationAt.IsZero() && now.Sub(room.LastTranslationAt) < cooldown {
		return false, nil
	}
	room.LastTranslationAt = now
	room.TranslationCount++
	return true, nil
}

// SetSpeaking toggles the speaking flag for pid's slot. The flag follows
// synthesis playback: set while pid's translated audio is on the air,
// cleared on tts_stopped. Transcripts arrive after an utterance ends and
// never touch it.
func (s *RoomStore) SetSpeaking(pid domain.ParticipantID, speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byParticipant[pid]
	if !ok {
		return
	}
	room, ok := s.rooms[id]
	if !ok {
		return
	}
	switch pid {
	case room.SideA:
		room.SpeakingA = speaking
	case room.SideB:
		room.SpeakingB = speaking
	}
}

// Close transitions a room to closed and removes it from the store.
// Idempotent: closing an absent or already-closed room reports ok=false.
// The returned snapshot lets the caller notify whichever side remains.
func (s *RoomStore) Close(id domain.RoomID, reason string) (domain.Room, bool) {
	s.mu.Lock()
	room, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return domain.Room{}, false
	}
	room.State = domain.RoomClosing
	if s.byParticipant[room.SideA] == id {
		delete(s.byParticipant, room.SideA)
	}
	if s.byParticipant[room.SideB] == id {
		delete(s.byParticipant, room.SideB)
	}
	delete(s.rooms, id)
	room.State = domain.RoomClosed
	snap := *room
	s.mu.Unlock()
	log.Info().Str("module", "app.roomstore").Str("room", string(id)).Str("reason", reason).Msg("room closed")
	return snap, true
}

// IdleRooms snapshots rooms with no translation activity since before cutoff.
// Connection liveness is the caller's concern; it is checked against the
// registry before the room is actually closed.
func (s *RoomStore) IdleRooms(cutoff time.Time) []domain.RoomID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RoomID
	for id, room := range s.rooms {
		last := room.LastTranslationAt
		if last.IsZero() {
			last = room.CreatedAt
		}
		if last.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

// Count reports how many rooms are open. Closed rooms are removed on Close,
// so every counted room holds a matched pair, media-ready or not.
func (s *RoomStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
