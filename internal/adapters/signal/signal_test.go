package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/app"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/config"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

func newTestController() (*Controller, *app.SessionFacade) {
	registry := app.NewConnectionRegistry()
	rooms := app.NewRoomStore()
	facade := &app.SessionFacade{
		Registry: registry,
		Matcher:  app.NewRoomMatcher(rooms),
		Rooms:    rooms,
		Router: &app.CoordinationRouter{
			Registry: registry,
			Rooms:    rooms,
			Cooldown: time.Minute,
		},
	}
	cfg := &config.Config{
		EventQueueSize:         8,
		AudioQueueSize:         8,
		TranscriptRateLimit:    10,
		TranscriptRateInterval: time.Second,
	}
	return NewController(facade, cfg), facade
}

// TrySend and TrySendAudio only touch the queues, so a nil websocket is fine
// here as long as Close is never called.

func TestWSConn_TrySendEncodesEnvelope(t *testing.T) {
	c := newWSConn(nil, 4, 4)

	err := c.TrySend(core.PartnerSpeech{RoomID: "r1", Text: "hi", FromLanguage: domain.LangEnglish})
	if err != nil {
		t.Fatalf("try send: %v", err)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(<-c.send, &env); err != nil {
		t.Fatalf("unmarshal queued frame: %v", err)
	}
	if !bytes.Equal(env["type"], []byte(`"partner_speech"`)) {
		t.Fatalf("type = %s", env["type"])
	}
	if !bytes.Equal(env["text"], []byte(`"hi"`)) {
		t.Fatalf("text = %s", env["text"])
	}
}

func TestWSConn_TrySendBackpressure(t *testing.T) {
	c := newWSConn(nil, 1, 1)
	if err := c.TrySend(core.Waiting{}); err != nil {
		t.Fatalf("first send: %v", err)
	}

	// Queue full and nobody draining: the bounded wait must end in
	// ErrBackpressure, not a hang.
	done := make(chan error, 1)
	go func() { done <- c.TrySend(core.Waiting{}) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrBackpressure) {
			t.Fatalf("expected ErrBackpressure, got %v", err)
		}
	case <-time.After(eventSendTimeout + time.Second):
		t.Fatal("TrySend did not give up")
	}
}

func TestWSConn_AudioDropsOldest(t *testing.T) {
	c := newWSConn(nil, 1, 2)

	for i := byte(1); i <= 3; i++ {
		if err := c.TrySendAudio([]byte{i}); err != nil {
			t.Fatalf("audio frame %d: %v", i, err)
		}
	}

	// Frame 1 was shed to make room; 2 and 3 survive in order.
	got := [][]byte{<-c.audio, <-c.audio}
	if got[0][0] != 2 || got[1][0] != 3 {
		t.Fatalf("surviving frames = %v", got)
	}
	select {
	case extra := <-c.audio:
		t.Fatalf("unexpected extra frame %v", extra)
	default:
	}
}

func TestWSConn_JSONAudioFallback(t *testing.T) {
	c := newWSConn(nil, 4, 4)
	c.jsonAudio = true

	if err := c.TrySendAudio([]byte{0x01, 0x02}); err != nil {
		t.Fatalf("try send audio: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(<-c.audio, &m); err != nil {
		t.Fatalf("fallback frame is not JSON: %v", err)
	}
	if m["type"] != "audio" {
		t.Fatalf("type = %v, want audio", m["type"])
	}
	if m["data"] != "AQI=" {
		t.Fatalf("data = %v, want base64 AQI=", m["data"])
	}
	if m["format"] != "pcm" || m["sample_rate"] != float64(16000) {
		t.Fatalf("framing = %v/%v", m["format"], m["sample_rate"])
	}
}

// An idle client that keeps pinging must not be expired by the sweeper.
func TestHandlePing_RefreshesLiveness(t *testing.T) {
	ctl, facade := newTestController()
	conn := newWSConn(nil, 8, 8)

	res, err := facade.Join("p1", domain.LangEnglish, conn)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	s := &session{ctl: ctl, conn: conn, cid: res.ConnectionID, joined: true}

	time.Sleep(10 * time.Millisecond)
	ctl.handleMessage(s, []byte(`{"type":"ping"}`))

	sweeper := &app.Sweeper{Facade: facade, ConnTimeout: 5 * time.Millisecond, RoomIdle: time.Hour}
	sweeper.Sweep()
	if _, ok := facade.Registry.ParticipantOf(res.ConnectionID); !ok {
		t.Fatal("pinging connection expired by the sweep")
	}

	var m map[string]any
	drained := false
	for !drained {
		select {
		case b := <-conn.send:
			if json.Unmarshal(b, &m) == nil && m["type"] == "pong" {
				drained = true
			}
		default:
			t.Fatal("no pong queued for ping")
		}
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewMessageRateLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.Allow("c1") {
			t.Fatalf("attempt %d rejected inside limit", i)
		}
	}
	if rl.Allow("c1") {
		t.Fatal("fourth attempt allowed over the limit")
	}
	// Other connections have their own window.
	if !rl.Allow("c2") {
		t.Fatal("independent connection throttled")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("c1") {
		t.Fatal("attempt rejected after the window slid past")
	}
}

func TestRateLimiter_Forget(t *testing.T) {
	rl := NewMessageRateLimiter(1, time.Minute)
	if !rl.Allow("c1") {
		t.Fatal("first attempt rejected")
	}
	if rl.Allow("c1") {
		t.Fatal("second attempt allowed")
	}
	rl.Forget("c1")
	if !rl.Allow("c1") {
		t.Fatal("window survived Forget")
	}
}
