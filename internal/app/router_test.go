package app

import (
	"errors"
	"testing"
	"time"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

type routerFixture struct {
	router *CoordinationRouter
	rooms  *RoomStore
	roomID domain.RoomID
	ha, hb *fakeHandle
}

func newRouterFixture(t *testing.T, cooldown time.Duration) *routerFixture {
	t.Helper()
	registry := NewConnectionRegistry()
	rooms := NewRoomStore()
	room := rooms.Create("pa", domain.LangEnglish, "pb", domain.LangHindi)

	ha, hb := &fakeHandle{}, &fakeHandle{}
	if err := registry.Register("ca", "pa", ha); err != nil {
		t.Fatalf("register ca: %v", err)
	}
	if err := registry.Register("cb", "pb", hb); err != nil {
		t.Fatalf("register cb: %v", err)
	}

	return &routerFixture{
		router: &CoordinationRouter{
			Registry:                 registry,
			Rooms:                    rooms,
			Cooldown:                 cooldown,
			EchoTranslationToPartner: true,
		},
		rooms:  rooms,
		roomID: room.ID,
		ha:     ha,
		hb:     hb,
	}
}

func TestRouter_RouteSpeechFansOut(t *testing.T) {
	f := newRouterFixture(t, time.Second)

	if err := f.router.RouteSpeech(f.roomID, "pa", "hello"); err != nil {
		t.Fatalf("route speech: %v", err)
	}

	if n := f.hb.countKind(core.EventPartnerSpeech); n != 1 {
		t.Fatalf("partner got %d partner_speech events", n)
	}
	ev := f.hb.lastEvent().(core.PartnerSpeech)
	if ev.Text != "hello" || ev.FromLanguage != domain.LangEnglish {
		t.Fatalf("partner_speech = %+v", ev)
	}

	if n := f.ha.countKind(core.EventUserSpeech); n != 1 {
		t.Fatalf("speaker got %d user_speech echoes", n)
	}

	// The speaking flag follows synthesis playback, not transcripts: an
	// utterance is already over when its transcript arrives.
	room, _ := f.rooms.Get(f.roomID)
	if room.SpeakingA {
		t.Fatal("transcript must not mark the speaker as speaking")
	}
}

// Cooldown idempotence: two translations inside the window yield exactly one
// translation_text and one translation_suppressed.
func TestRouter_TranslationCooldown(t *testing.T) {
	f := newRouterFixture(t, time.Minute)

	delivered, err := f.router.RouteTranslation(f.roomID, "pa", "नमस्ते", domain.LangHindi)
	if err != nil || !delivered {
		t.Fatalf("first translation: delivered=%v err=%v", delivered, err)
	}
	delivered, err = f.router.RouteTranslation(f.roomID, "pa", "फिर से", domain.LangHindi)
	if err != nil {
		t.Fatalf("second translation: %v", err)
	}
	if delivered {
		t.Fatal("second translation inside window must be suppressed")
	}

	if n := f.ha.countKind(core.EventTranslationText); n != 1 {
		t.Fatalf("originator got %d translation_text events, want 1", n)
	}
	if n := f.ha.countKind(core.EventTranslationSuppressed); n != 1 {
		t.Fatalf("originator got %d translation_suppressed events, want 1", n)
	}
	// Echo mode delivers the accepted translation to the partner too, but
	// never the suppression diagnostic.
	if n := f.hb.countKind(core.EventTranslationText); n != 1 {
		t.Fatalf("partner got %d translation_text events, want 1", n)
	}
	if n := f.hb.countKind(core.EventTranslationSuppressed); n != 0 {
		t.Fatalf("partner got %d translation_suppressed events, want 0", n)
	}

	room, _ := f.rooms.Get(f.roomID)
	if room.TranslationCount != 1 {
		t.Fatalf("translation count = %d, want 1", room.TranslationCount)
	}
}

func TestRouter_RouteAudioForwardsToPartner(t *testing.T) {
	f := newRouterFixture(t, time.Second)

	if err := f.router.RouteAudio(f.roomID, "pb", []byte{9, 9}); err != nil {
		t.Fatalf("route audio: %v", err)
	}
	if len(f.ha.audio) != 1 || len(f.ha.audio[0]) != 2 {
		t.Fatalf("side a audio = %v", f.ha.audio)
	}
	if len(f.hb.audio) != 0 {
		t.Fatal("audio echoed to its own sender")
	}
}

// A partner with no live connection means the event is dropped, not an
// error, and the room survives; bookkeeping still applies.
func TestRouter_DeliveryFailureKeepsRoom(t *testing.T) {
	f := newRouterFixture(t, time.Minute)
	f.router.Registry.Unregister("cb")

	if err := f.router.RouteSpeech(f.roomID, "pa", "anyone there?"); err != nil {
		t.Fatalf("route speech without partner conn: %v", err)
	}
	delivered, err := f.router.RouteTranslation(f.roomID, "pa", "text", domain.LangHindi)
	if err != nil || !delivered {
		t.Fatalf("translation without partner conn: delivered=%v err=%v", delivered, err)
	}
	if err := f.router.RouteAudio(f.roomID, "pa", []byte{1}); err != nil {
		t.Fatalf("audio without partner conn: %v", err)
	}

	room, err := f.rooms.Get(f.roomID)
	if err != nil {
		t.Fatalf("room torn down by delivery failure: %v", err)
	}
	if room.TranslationCount != 1 {
		t.Fatalf("bookkeeping skipped: count = %d", room.TranslationCount)
	}
}

func TestRouter_UnknownRoom(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	if err := f.router.RouteSpeech("ghost", "pa", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.router.RouteTranslation("ghost", "pa", "x", domain.LangHindi); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRouter_RouteSynthesis(t *testing.T) {
	f := newRouterFixture(t, time.Second)

	if err := f.router.RouteSynthesis(f.roomID, "pa", true); err != nil {
		t.Fatalf("synthesis start: %v", err)
	}
	if f.ha.countKind(core.EventSynthesisStarted) != 1 || f.hb.countKind(core.EventSynthesisStarted) != 1 {
		t.Fatal("both sides must see translation_audio_started")
	}
	room, _ := f.rooms.Get(f.roomID)
	if !room.SpeakingA {
		t.Fatal("speaking flag not set while synthesis plays")
	}

	if err := f.router.RouteSynthesis(f.roomID, "pa", false); err != nil {
		t.Fatalf("synthesis stop: %v", err)
	}
	room, _ = f.rooms.Get(f.roomID)
	if room.SpeakingA {
		t.Fatal("speaking flag not cleared after synthesis stopped")
	}
}
