package rtc

import (
	"context"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
)

// MediaConnection wraps one participant's peer connection. The coordination
// layer never sees pion types: it gets a connected signal once negotiation
// completes and raw payloads from inbound audio tracks.
type MediaConnection struct {
	pc     *webrtc.PeerConnection
	cid    core.ConnectionID
	cancel context.CancelFunc

	onICE       func(webrtc.ICECandidateInit)
	onConnected func()
	onAudio     func(payload []byte)
	onClosed    func()
}

func Config(stunURL string) webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{stunURL}},
		},
	}
}

func NewMediaConnection(cfg webrtc.Configuration, cid core.ConnectionID) (*MediaConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &MediaConnection{pc: pc, cid: cid}, nil
}

func (c *MediaConnection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("cid", string(c.cid)).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("cid", string(c.cid)).Str("peer_state", s.String()).Msg("peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			if c.onConnected != nil {
				c.onConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if c.onClosed != nil {
				c.onClosed()
			}
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("cid", string(c.cid)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("track received")
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			go c.readTrack(ctx, track)
		}
	})

	return nil
}

// readTrack pulls RTP packets off the inbound audio track and hands their
// payloads to the coordination layer until the track or context ends.
func (c *MediaConnection) readTrack(ctx context.Context, track *webrtc.TrackRemote) {
	var pkt *rtp.Packet
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		var err error
		pkt, _, err = track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "rtc").Str("cid", string(c.cid)).Msg("track read ended")
			return
		}
		if c.onAudio != nil && len(pkt.Payload) > 0 {
			c.onAudio(pkt.Payload)
		}
	}
}

// ApplyOfferAndCreateAnswer runs non-trickle negotiation: the answer is
// returned only after candidate gathering completes.
func (c *MediaConnection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return c.pc.LocalDescription(), nil
}

func (c *MediaConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *MediaConnection) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("cid", string(c.cid)).Msg("close error")
		}
	}
}

// OnICECandidate sets the trickle callback (used when the client supports it).
func (c *MediaConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }

// OnConnected fires once when the peer connection reaches connected state.
func (c *MediaConnection) OnConnected(fn func()) { c.onConnected = fn }

// OnAudio receives raw RTP payloads from the participant's audio track.
func (c *MediaConnection) OnAudio(fn func(payload []byte)) { c.onAudio = fn }

// OnClosed fires when the peer connection fails or closes.
func (c *MediaConnection) OnClosed(fn func()) { c.onClosed = fn }
