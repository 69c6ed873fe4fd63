package app

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

type MatchStatus string

const (
	StatusMatched MatchStatus = "matched"
	StatusWaiting MatchStatus = "waiting"
)

// MatchResult is the outcome of an enqueue: either a fresh pairing or a
// place in the waiting pool.
type MatchResult struct {
	Status          MatchStatus
	RoomID          domain.RoomID
	PartnerID       domain.ParticipantID
	PartnerLanguage domain.Language
}

type waiter struct {
	id         domain.ParticipantID
	lang       domain.Language
	seq        uint64
	enqueuedAt time.Time
}

// RoomMatcher maintains per-language waiting pools and pairs compatible
// participants. A single mutex serializes Enqueue and Cancel so two
// concurrent enqueues can never both claim the same waiting participant,
// and a cancel is visible before any later enqueue scans the pools.
type RoomMatcher struct {
	mu    sync.Mutex
	pools map[domain.Language][]waiter
	seq   uint64
	rooms *RoomStore
}

func NewRoomMatcher(rooms *RoomStore) *RoomMatcher {
	return &RoomMatcher{
		pools: make(map[domain.Language][]waiter),
		rooms: rooms,
	}
}

// Enqueue pairs pid with the longest-waiting compatible participant, or
// inserts pid into its language pool. The partner is removed from its pool
// and the room is created under the matcher lock, so no participant ever
// exists in a pool and a room at the same time.
func (m *RoomMatcher) Enqueue(pid domain.ParticipantID, lang domain.Language) (MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.rooms.LookupByParticipant(pid); err == nil {
		return MatchResult{}, domain.ErrAlreadyMatched
	} else if !errors.Is(err, domain.ErrNotFound) {
		return MatchResult{}, err
	}
	for _, pool := range m.pools {
		for _, w := range pool {
			if w.id == pid {
				return MatchResult{}, domain.ErrAlreadyWaiting
			}
		}
	}

	if partner, ok := m.takeOldestCompatible(lang); ok {
		room := m.rooms.Create(partner.id, partner.lang, pid, lang)
		log.Info().Str("module", "app.matcher").
			Str("room", string(room.ID)).
			Str("pid", string(pid)).Str("lang", string(lang)).
			Str("partner", string(partner.id)).Str("partner_lang", string(partner.lang)).
			Msg("matched")
		return MatchResult{
			Status:          StatusMatched,
			RoomID:          room.ID,
			PartnerID:       partner.id,
			PartnerLanguage: partner.lang,
		}, nil
	}

	m.seq++
	m.pools[lang] = append(m.pools[lang], waiter{
		id:         pid,
		lang:       lang,
		seq:        m.seq,
		enqueuedAt: time.Now(),
	})
	log.Info().Str("module", "app.matcher").Str("pid", string(pid)).Str("lang", string(lang)).Msg("waiting")
	return MatchResult{Status: StatusWaiting}, nil
}

// takeOldestCompatible picks the longest-waiting candidate across every
// compatible pool, not just the first pool scanned. Pools are FIFO, so the
// head of each pool is its oldest entry; the enqueue sequence number gives a
// stable cross-pool order.
func (m *RoomMatcher) takeOldestCompatible(lang domain.Language) (waiter, bool) {
	var (
		best     waiter
		bestLang domain.Language
		found    bool
	)
	for poolLang, pool := range m.pools {
		if len(pool) == 0 || !lang.CompatibleWith(poolLang) {
			continue
		}
		head := pool[0]
		if !found || head.seq < best.seq {
			best, bestLang, found = head, poolLang, true
		}
	}
	if !found {
		return waiter{}, false
	}
	m.pools[bestLang] = m.pools[bestLang][1:]
	if len(m.pools[bestLang]) == 0 {
		delete(m.pools, bestLang)
	}
	return best, true
}

// Cancel removes pid from whatever pool holds it; a no-op when pid is
// already matched or absent.
func (m *RoomMatcher) Cancel(pid domain.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for lang, pool := range m.pools {
		for i, w := range pool {
			if w.id != pid {
				continue
			}
			m.pools[lang] = append(pool[:i:i], pool[i+1:]...)
			if len(m.pools[lang]) == 0 {
				delete(m.pools, lang)
			}
			log.Info().Str("module", "app.matcher").Str("pid", string(pid)).Msg("canceled wait")
			return
		}
	}
}

// WaitingByLanguage snapshots pool sizes for the stats endpoint.
func (m *RoomMatcher) WaitingByLanguage() map[domain.Language]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.Language]int, len(m.pools))
	for lang, pool := range m.pools {
		out[lang] = len(pool)
	}
	return out
}

// WaitingCount totals participants across all pools.
func (m *RoomMatcher) WaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, pool := range m.pools {
		n += len(pool)
	}
	return n
}
