package rtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/app"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
)

// Manager keeps one media connection per logical connection id and wires
// its lifecycle into the session facade: connected → MarkConnected, inbound
// audio → OnAudio, closed → drop.
type Manager struct {
	Facade *app.SessionFacade

	mu    sync.Mutex
	conns map[core.ConnectionID]*MediaConnection
	cfg   webrtc.Configuration
}

func NewManager(facade *app.SessionFacade, cfg webrtc.Configuration) *Manager {
	return &Manager{
		Facade: facade,
		conns:  make(map[core.ConnectionID]*MediaConnection),
		cfg:    cfg,
	}
}

// Negotiate applies an SDP offer for the given connection and returns the
// answer. A second offer for the same connection renegotiates the existing
// peer connection's replacement: the old one is closed and a fresh one
// negotiated, matching how clients recover from ICE failures.
func (m *Manager) Negotiate(ctx context.Context, cid core.ConnectionID, sdp string) (string, error) {
	m.mu.Lock()
	old := m.conns[cid]
	delete(m.conns, cid)
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	mc, err := NewMediaConnection(m.cfg, cid)
	if err != nil {
		return "", err
	}

	mc.OnConnected(func() {
		if err := m.Facade.MarkConnected(cid); err != nil {
			log.Debug().Err(err).Str("module", "rtc").Str("cid", string(cid)).Msg("mark connected")
		}
	})
	mc.OnAudio(func(payload []byte) {
		if err := m.Facade.OnAudio(cid, payload); err != nil {
			log.Debug().Err(err).Str("module", "rtc").Str("cid", string(cid)).Msg("audio forward")
		}
	})
	mc.OnClosed(func() {
		m.remove(cid, mc)
	})

	if err := mc.Start(ctx); err != nil {
		mc.Close()
		return "", err
	}

	answer, err := mc.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
	if err != nil {
		mc.Close()
		return "", err
	}

	m.mu.Lock()
	m.conns[cid] = mc
	m.mu.Unlock()
	return answer.SDP, nil
}

func (m *Manager) remove(cid core.ConnectionID, mc *MediaConnection) {
	m.mu.Lock()
	if cur, ok := m.conns[cid]; ok && cur == mc {
		delete(m.conns, cid)
	}
	m.mu.Unlock()
}

// Close tears down the media connection for cid, if any.
func (m *Manager) Close(cid core.ConnectionID) {
	m.mu.Lock()
	mc, ok := m.conns[cid]
	delete(m.conns, cid)
	m.mu.Unlock()
	if ok {
		mc.Close()
	}
}
