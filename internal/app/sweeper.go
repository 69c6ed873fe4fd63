package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

// Sweeper is the background cleanup loop: it expires connections that have
// been silent past ConnTimeout (treated as disconnects) and closes rooms
// with no translation activity and no live-ish connection past RoomIdle.
type Sweeper struct {
	Facade *SessionFacade

	Interval    time.Duration
	ConnTimeout time.Duration
	RoomIdle    time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one cleanup pass.
func (s *Sweeper) Sweep() {
	now := time.Now()

	for _, cid := range s.Facade.Registry.Expired(now.Add(-s.ConnTimeout)) {
		log.Info().Str("module", "app.sweeper").Str("cid", string(cid)).Msg("expiring silent connection")
		s.Facade.OnDisconnect(cid, "liveness_timeout")
	}

	cutoff := now.Add(-s.RoomIdle)
	for _, id := range s.Facade.Rooms.IdleRooms(cutoff) {
		room, err := s.Facade.Rooms.Get(id)
		if err != nil {
			continue
		}
		// A room stays open while either side's connection is still active.
		if s.recentlyActive(room.SideA, cutoff) || s.recentlyActive(room.SideB, cutoff) {
			continue
		}
		log.Info().Str("module", "app.sweeper").Str("room", string(id)).Msg("closing idle room")
		s.Facade.CloseRoom(id, "idle_timeout")
	}
}

func (s *Sweeper) recentlyActive(pid domain.ParticipantID, cutoff time.Time) bool {
	last, ok := s.Facade.Registry.LastActivityOf(pid)
	return ok && last.After(cutoff)
}
