package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/fanout"
	"github.com/nerrad567/homytech-core/internal/infrastructure/config"
	"github.com/nerrad567/homytech-core/internal/infrastructure/logging"
)

// Push channel defaults, used when the websocket config leaves them unset.
const (
	defaultSendBuffer     = 64
	defaultMaxMessageSize = 8192
	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second
)

// wsSettings is the resolved websocket configuration.
type wsSettings struct {
	sendBuffer     int
	maxMessageSize int64
	pingInterval   time.Duration
	pongWait       time.Duration
}

func resolveWS(cfg config.WebSocketConfig) wsSettings {
	ws := wsSettings{
		sendBuffer:     cfg.SendBuffer,
		maxMessageSize: int64(cfg.MaxMessageSize),
		pingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		pongWait:       time.Duration(cfg.PongTimeout) * time.Second,
	}
	if ws.sendBuffer <= 0 {
		ws.sendBuffer = defaultSendBuffer
	}
	if ws.maxMessageSize <= 0 {
		ws.maxMessageSize = defaultMaxMessageSize
	}
	if ws.pingInterval <= 0 {
		ws.pingInterval = defaultPingInterval
	}
	if ws.pongWait <= 0 {
		ws.pongWait = defaultPongTimeout
	}
	return ws
}

// wsSubscriber is one push channel socket registered with the fan-out hub.
//
// Send only queues; writePump owns all writes to the connection. After a
// write failure or Close, Send reports fanout.ErrSubscriberClosed so the
// broadcaster prunes it on the next pass.
type wsSubscriber struct {
	conn    *websocket.Conn
	channel device.Channel
	cfg     wsSettings
	logger  *logging.Logger

	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ fanout.Subscriber = (*wsSubscriber)(nil)

func newWSSubscriber(conn *websocket.Conn, ch device.Channel, cfg wsSettings, logger *logging.Logger) *wsSubscriber {
	return &wsSubscriber{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		logger:  logger,
		send:    make(chan []byte, cfg.sendBuffer),
		done:    make(chan struct{}),
	}
}

// Send queues data for the write pump without blocking.
func (c *wsSubscriber) Send(data []byte) error {
	if c.closed.Load() {
		return fanout.ErrSubscriberClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fanout.ErrSubscriberBacklogged
	}
}

// Close marks the subscriber closed and stops the write pump. It is safe
// to call from any goroutine, any number of times.
func (c *wsSubscriber) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
	return nil
}

// writePump drains the send queue and keeps the socket alive with pings.
func (c *wsSubscriber) writePump() {
	ticker := time.NewTicker(c.cfg.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", "channel", c.channel, "error", err)
				c.Close() //nolint:errcheck // always nil
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close() //nolint:errcheck // always nil
				return
			}
		case <-c.done:
			//nolint:errcheck // Best-effort close frame
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// readPump discards client frames and returns when the socket closes.
// Any frame, or a pong, extends the read deadline.
func (c *wsSubscriber) readPump() {
	c.conn.SetReadLimit(c.cfg.maxMessageSize)
	deadline := c.cfg.pingInterval + c.cfg.pongWait
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "channel", c.channel, "error", err)
			} else {
				c.logger.Debug("websocket closed", "channel", c.channel, "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(deadline))
	}
}

// handleChannelSocket upgrades GET /ws/{channel}?ticket=... to a push
// channel subscription. Tickets come from POST /api/v1/auth/ws-ticket.
func (s *Server) handleChannelSocket(w http.ResponseWriter, r *http.Request) {
	ch, err := device.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		writeNotFound(w, "unknown channel")
		return
	}

	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.redeem(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "channel", ch, "error", err)
		return
	}

	sub := newWSSubscriber(conn, ch, resolveWS(s.wsCfg), s.logger)
	if err := s.hub.Register(ch, sub); err != nil {
		s.logger.Warn("websocket subscription refused", "channel", ch, "error", err)
		//nolint:errcheck // Best-effort close frame
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	s.logger.Debug("websocket subscriber connected", "channel", ch, "user_id", entry.userID)

	stop := context.AfterFunc(s.ctx, func() { sub.Close() }) //nolint:errcheck // always nil
	go sub.writePump()
	go func() {
		sub.readPump()
		stop()
		sub.Close() //nolint:errcheck // always nil
		if err := s.hub.Unregister(ch, sub); err != nil {
			s.logger.Debug("websocket unregister skipped", "channel", ch, "error", err)
		}
		s.logger.Debug("websocket subscriber disconnected", "channel", ch, "user_id", entry.userID)
	}()
}
