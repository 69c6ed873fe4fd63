package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

type connEntry struct {
	ParticipantID domain.ParticipantID
	Handle        core.DeliveryHandle
	LastActivity  time.Time
}

// ConnectionRegistry tracks every live logical connection and its outbound
// delivery handle. It owns the connection map exclusively; other components
// go through its API.
type ConnectionRegistry struct {
	mu            sync.RWMutex
	conns         map[core.ConnectionID]*connEntry
	byParticipant map[domain.ParticipantID]core.ConnectionID
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:         make(map[core.ConnectionID]*connEntry),
		byParticipant: make(map[domain.ParticipantID]core.ConnectionID),
	}
}

// Register binds a connection id to a participant and its delivery handle.
// A participant keeps at most one live connection: a second register for the
// same participant is rejected and the existing binding stays untouched, so
// a rejected caller cannot strand the original connection.
func (r *ConnectionRegistry) Register(cid core.ConnectionID, pid domain.ParticipantID, h core.DeliveryHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[cid]; ok {
		return domain.ErrDuplicateConnection
	}
	if _, ok := r.byParticipant[pid]; ok {
		return domain.ErrDuplicateConnection
	}
	r.conns[cid] = &connEntry{ParticipantID: pid, Handle: h, LastActivity: time.Now()}
	r.byParticipant[pid] = cid
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("pid", string(pid)).Msg("connection registered")
	return nil
}

// Unregister is idempotent; removing an absent id is a no-op.
func (r *ConnectionRegistry) Unregister(cid core.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return
	}
	if r.byParticipant[e.ParticipantID] == cid {
		delete(r.byParticipant, e.ParticipantID)
	}
	delete(r.conns, cid)
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("connection unregistered")
}

// Deliver pushes an event to the connection's outbound handle.
// A missing connection returns ErrNotFound without side effects:
// a disconnected peer is an expected, common case.
func (r *ConnectionRegistry) Deliver(cid core.ConnectionID, ev core.Event) error {
	r.mu.RLock()
	e, ok := r.conns[cid]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}
	// Send outside the lock: the handle may block briefly.
	return e.Handle.TrySend(ev)
}

// DeliverAudio forwards a binary frame; the handle drops under backpressure.
func (r *ConnectionRegistry) DeliverAudio(cid core.ConnectionID, chunk []byte) error {
	r.mu.RLock()
	e, ok := r.conns[cid]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}
	return e.Handle.TrySendAudio(chunk)
}

// Touch updates the liveness timestamp used by the periodic sweep.
func (r *ConnectionRegistry) Touch(cid core.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[cid]; ok {
		e.LastActivity = time.Now()
	}
}

// ParticipantOf resolves the participant behind a connection.
func (r *ConnectionRegistry) ParticipantOf(cid core.ConnectionID) (domain.ParticipantID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return "", false
	}
	return e.ParticipantID, true
}

// ConnectionOf resolves the live connection for a participant, if any.
func (r *ConnectionRegistry) ConnectionOf(pid domain.ParticipantID) (core.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.byParticipant[pid]
	return cid, ok
}

// LastActivityOf reports the participant's connection liveness timestamp.
func (r *ConnectionRegistry) LastActivityOf(pid domain.ParticipantID) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.byParticipant[pid]
	if !ok {
		return time.Time{}, false
	}
	e, ok := r.conns[cid]
	if !ok {
		return time.Time{}, false
	}
	return e.LastActivity, true
}

// Expired snapshots connections silent since before cutoff.
func (r *ConnectionRegistry) Expired(cutoff time.Time) []core.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.ConnectionID
	for cid, e := range r.conns {
		if e.LastActivity.Before(cutoff) {
			out = append(out, cid)
		}
	}
	return out
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
