package core

import (
	"encoding/json"
	"testing"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

func TestEncode_AddsTypeDiscriminator(t *testing.T) {
	b, err := Encode(PartnerSpeech{RoomID: "r1", Text: "hello", FromLanguage: domain.LangEnglish})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if m["type"] != "partner_speech" {
		t.Errorf("type = %v, want partner_speech", m["type"])
	}
	if m["room_id"] != "r1" || m["text"] != "hello" || m["from_language"] != "en" {
		t.Errorf("unexpected payload: %v", m)
	}
}

func TestEncode_AudioBase64(t *testing.T) {
	b, err := Encode(Audio{RoomID: "r1", Data: []byte{0x01, 0x02}, SampleRate: 16000, Format: "pcm"})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if m["type"] != "audio" {
		t.Errorf("type = %v, want audio", m["type"])
	}
	if m["data"] != "AQI=" {
		t.Errorf("data = %v, want base64 AQI=", m["data"])
	}
}

func TestEventKinds_AreDistinct(t *testing.T) {
	events := []Event{
		Waiting{}, MatchFound{}, UserSpeech{}, PartnerSpeech{},
		TranslationText{}, TranslationSuppressed{}, Audio{},
		PartnerReady{}, PartnerDisconnected{}, SynthesisStarted{}, SynthesisStopped{},
	}
	seen := make(map[EventKind]bool)
	for _, ev := range events {
		if seen[ev.Kind()] {
			t.Fatalf("duplicate event kind %q", ev.Kind())
		}
		seen[ev.Kind()] = true
	}
}
