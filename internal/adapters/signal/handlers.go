package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/app"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/domain"
)

func (ctl *Controller) handleJoin(s *session, data []byte) {
	if s.joined {
		ctl.sendError(s.conn, "already_joined")
		return
	}
	type joinPayload struct {
		Type          string `json:"type"`
		Language      string `json:"language" validate:"required"`
		ParticipantID string `json:"participant_id"`
		// AudioTransport selects "binary" (default) or "json" fallback frames.
		AudioTransport string `json:"audio_transport" validate:"omitempty,oneof=binary json"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(s.conn, "bad_payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		ctl.sendError(s.conn, "missing_language")
		return
	}
	lang, err := domain.ParseLanguage(p.Language)
	if err != nil {
		ctl.sendError(s.conn, "unknown_language")
		return
	}
	s.conn.jsonAudio = p.AudioTransport == "json"

	res, err := ctl.Facade.Join(p.ParticipantID, lang, s.conn)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("join rejected")
		ctl.sendError(s.conn, "join_failed")
		return
	}
	s.cid = res.ConnectionID
	s.joined = true

	resp := struct {
		Type            string               `json:"type"`
		ParticipantID   domain.ParticipantID `json:"participant_id"`
		ConnectionID    string               `json:"connection_id"`
		Status          app.MatchStatus      `json:"status"`
		RoomID          domain.RoomID        `json:"room_id,omitempty"`
		PartnerID       domain.ParticipantID `json:"partner_id,omitempty"`
		PartnerLanguage domain.Language      `json:"partner_language,omitempty"`
	}{
		Type:            "joined",
		ParticipantID:   res.ParticipantID,
		ConnectionID:    string(res.ConnectionID),
		Status:          res.Status,
		RoomID:          res.RoomID,
		PartnerID:       res.PartnerID,
		PartnerLanguage: res.PartnerLanguage,
	}
	ctl.sendJSON(s.conn, resp)
}

func (ctl *Controller) handleMediaReady(s *session) {
	if !s.joined {
		ctl.sendError(s.conn, "not_joined")
		return
	}
	if err := ctl.Facade.MarkConnected(s.cid); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("cid", string(s.cid)).Msg("media_ready ignored")
	}
}

func (ctl *Controller) handleTranscript(s *session, data []byte) {
	if !s.joined {
		ctl.sendError(s.conn, "not_joined")
		return
	}
	if !ctl.Limiter.Allow(s.cid) {
		ctl.sendError(s.conn, "rate_limited")
		return
	}
	type transcriptPayload struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	var p transcriptPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Text == "" {
		ctl.sendError(s.conn, "bad_payload")
		return
	}
	detected := domain.Language(p.Language)
	if err := ctl.Facade.OnTranscript(s.cid, p.Text, detected); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("cid", string(s.cid)).Msg("transcript dropped")
	}
}

func (ctl *Controller) handleTranslation(s *session, data []byte) {
	if !s.joined {
		ctl.sendError(s.conn, "not_joined")
		return
	}
	type translationPayload struct {
		Type           string `json:"type"`
		Text           string `json:"text"`
		TargetLanguage string `json:"target_language"`
	}
	var p translationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Text == "" {
		ctl.sendError(s.conn, "bad_payload")
		return
	}
	target, err := domain.ParseLanguage(p.TargetLanguage)
	if err != nil {
		ctl.sendError(s.conn, "unknown_language")
		return
	}
	if _, err := ctl.Facade.OnTranslation(s.cid, p.Text, target); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("cid", string(s.cid)).Msg("translation dropped")
	}
}

func (ctl *Controller) handleSynthesis(s *session, started bool) {
	if !s.joined {
		return
	}
	if err := ctl.Facade.OnSynthesis(s.cid, started); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("cid", string(s.cid)).Msg("synthesis event dropped")
	}
}

func (ctl *Controller) handleAudio(s *session, chunk []byte) {
	if !s.joined {
		return
	}
	if err := ctl.Facade.OnAudio(s.cid, chunk); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("cid", string(s.cid)).Msg("audio frame dropped")
	}
}

// handleLeave tears the logical session down but keeps the socket open, so
// the client can join again for a fresh match.
func (ctl *Controller) handleLeave(s *session) {
	if !s.joined {
		return
	}
	ctl.Facade.OnDisconnect(s.cid, "left")
	ctl.Limiter.Forget(s.cid)
	s.joined = false
	s.cid = ""
	ctl.sendJSON(s.conn, map[string]any{"type": "left"})
}

// handlePing keeps an idle but attentive client alive: the keepalive counts
// as activity so the sweeper does not expire a connection between utterances.
func (ctl *Controller) handlePing(s *session) {
	if s.joined {
		ctl.Facade.Touch(s.cid)
	}
	ctl.sendJSON(s.conn, struct {
		Type string `json:"type"`
	}{Type: "pong"})
}
