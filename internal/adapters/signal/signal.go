package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/app"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/config"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// eventSendTimeout bounds how long a text/status event may wait for queue
// space before it is reported as backpressure. Audio never waits.
const eventSendTimeout = 2 * time.Second

// Framing for the JSON audio fallback, for clients that asked for
// audio_transport "json" at join and cannot take binary frames.
const (
	audioSampleRate = 16000
	audioFormat     = "pcm"
)

// Controller owns the websocket endpoint: one goroutine pair per
// connection, all domain work delegated to the session facade.
type Controller struct {
	Facade  *app.SessionFacade
	Cfg     *config.Config
	Limiter *MessageRateLimiter

	validate *validator.Validate
}

func NewController(facade *app.SessionFacade, cfg *config.Config) *Controller {
	return &Controller{
		Facade:   facade,
		Cfg:      cfg,
		Limiter:  NewMessageRateLimiter(cfg.TranscriptRateLimit, cfg.TranscriptRateInterval),
		validate: validator.New(),
	}
}

// wsConn implements core.DeliveryHandle over a gorilla websocket.
// Events go through a bounded queue with a short blocking window; audio
// frames go through their own queue with drop-oldest on overflow so a slow
// reader loses continuity, not the room's text traffic.
type wsConn struct {
	conn  *websocket.Conn
	send  chan []byte
	audio chan []byte

	// jsonAudio switches outbound audio from binary frames to audio events
	// with base64 data, for clients that opted in at join.
	jsonAudio bool

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newWSConn(conn *websocket.Conn, eventQueue, audioQueue int) *wsConn {
	return &wsConn{
		conn:  conn,
		send:  make(chan []byte, eventQueue),
		audio: make(chan []byte, audioQueue),
		done:  make(chan struct{}),
	}
}

func (c *wsConn) TrySend(ev core.Event) error {
	b, err := core.Encode(ev)
	if err != nil {
		return err
	}
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errors.New("connection closed")
	}
	c.mu.RUnlock()

	t := time.NewTimer(eventSendTimeout)
	defer t.Stop()
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	case <-t.C:
		return ErrBackpressure
	}
}

func (c *wsConn) TrySendAudio(chunk []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errors.New("connection closed")
	}
	c.mu.RUnlock()

	if c.jsonAudio {
		b, err := core.Encode(core.Audio{Data: chunk, SampleRate: audioSampleRate, Format: audioFormat})
		if err != nil {
			return err
		}
		chunk = b
	}

	select {
	case c.audio <- chunk:
		return nil
	default:
	}
	// Queue full: shed the oldest frame, recency beats completeness.
	select {
	case <-c.audio:
	default:
	}
	select {
	case c.audio <- chunk:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the read/write pumps. The
// connection is not registered with the facade until the client sends a
// join message.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := newWSConn(ws, ctl.Cfg.EventQueueSize, ctl.Cfg.AudioQueueSize)
	sess := &session{ctl: ctl, conn: conn}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		ctl.writePump(ctx, conn)
	}()
	go func() {
		defer cancel()
		ctl.readPump(ctx, sess)
	}()
}

// session is the per-connection state of the ws controller: which logical
// connection (if any) this socket was bound to by a join.
type session struct {
	ctl  *Controller
	conn *wsConn

	cid    core.ConnectionID
	joined bool
}
