package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ping := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ping.Stop()
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case chunk := <-c.audio:
			if err := c.conn.SetWriteDeadline(time.Now().Add(time.Second)); err != nil {
				return
			}
			msgType := websocket.BinaryMessage
			if c.jsonAudio {
				msgType = websocket.TextMessage
			}
			if err := c.conn.WriteMessage(msgType, chunk); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump audio write error")
				return
			}
		case <-ping.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, s *session) {
	defer func() {
		if s.joined {
			ctl.Facade.OnDisconnect(s.cid, "connection_closed")
			ctl.Limiter.Forget(s.cid)
		}
		s.conn.Close()
		log.Info().Str("module", "signal").Str("cid", string(s.cid)).Msg("readPump closing")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msgType, data, err := s.conn.conn.ReadMessage()
		if err != nil {
			return
		}
		// Any inbound frame is a sign of life for the sweeper.
		if s.joined {
			ctl.Facade.Touch(s.cid)
		}
		if msgType == websocket.BinaryMessage {
			ctl.handleAudio(s, data)
			continue
		}
		ctl.handleMessage(s, data)
	}
}

func (ctl *Controller) handleMessage(s *session, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(s.conn, "bad_payload")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(s, data)
	case "media_ready":
		ctl.handleMediaReady(s)
	case "transcript":
		ctl.handleTranscript(s, data)
	case "translation":
		ctl.handleTranslation(s, data)
	case "tts_started":
		ctl.handleSynthesis(s, true)
	case "tts_stopped":
		ctl.handleSynthesis(s, false)
	case "leave":
		ctl.handleLeave(s)
	case "ping":
		ctl.handlePing(s)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	t := time.NewTimer(eventSendTimeout)
	defer t.Stop()
	select {
	case c.send <- b:
	case <-c.done:
	case <-t.C:
	}
}

func (ctl *Controller) sendError(c *wsConn, code string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": code})
}
