package signal

import (
	"encoding/json"
	"sync"
	"time"

	"classrelay/internal/core/domain"
	apperrors "classrelay/pkg/errors"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Envelope is the wire frame for both directions: an event name plus its
// payload. Unknown events yield an error event, never a disconnect.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventHandler is implemented by each namespace manager. HandleEvent errors
// are converted to an `error` event on the triggering connection; they never
// terminate the connection or the process.
type EventHandler interface {
	HandleConnect(c *Conn)
	HandleEvent(c *Conn, event string, data json.RawMessage) error
	HandleDisconnect(c *Conn)
}

// Conn wraps one WebSocket session. Outbound writes go through a buffered
// send channel drained by a single writePump goroutine, so broadcasters
// never block on a slow socket.
type Conn struct {
	id       domain.ConnectionID
	identity *domain.Identity
	hub      *Hub
	sock     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	limiter  *rate.Limiter

	closeOnce sync.Once

	mu   sync.Mutex
	room domain.RoomID
}

func newConn(id domain.ConnectionID, identity *domain.Identity, hub *Hub, sock *websocket.Conn) *Conn {
	return &Conn{
		id:       id,
		identity: identity,
		hub:      hub,
		sock:     sock,
		send:     make(chan []byte, hub.opts.SendBufferSize),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(rate.Limit(hub.opts.MessagesPerSecond), hub.opts.MessageBurst),
	}
}

func (c *Conn) ID() domain.ConnectionID {
	return c.id
}

// Identity is immutable for the lifetime of the connection.
func (c *Conn) Identity() *domain.Identity {
	return c.identity
}

// Room returns the meeting room this connection has joined, if any. Recorded
// here so disconnect cleanup finds it without a registry scan.
func (c *Conn) Room() domain.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Conn) SetRoom(id domain.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = id
}

// Emit queues an event for this connection. The enqueue is lossy: a full
// send buffer drops the event rather than blocking the caller.
func (c *Conn) Emit(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.hub.logger.Errorw("failed to marshal event payload",
			"event", event,
			"connection_id", c.id,
			"error", err,
		)
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// EmitError reports an application error to this connection only.
func (c *Conn) EmitError(appErr *apperrors.AppError) {
	c.Emit(EventError, map[string]interface{}{
		"code":    string(appErr.Code),
		"message": appErr.Message,
	})
}

func (c *Conn) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		if c.hub.metrics != nil {
			c.hub.metrics.EventDropped(c.hub.namespace)
		}
		c.hub.logger.Warnw("send buffer full, dropping event",
			"namespace", c.hub.namespace,
			"connection_id", c.id,
		)
	}
}

// rateLimitCloseAfter is the number of consecutive rate-limit violations
// tolerated before the connection is closed with a policy-violation code.
const rateLimitCloseAfter = 5

func (c *Conn) readPump(h EventHandler) {
	c.sock.SetReadLimit(c.hub.opts.MaxMessageBytes)
	c.sock.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))
		return nil
	})

	violations := 0
	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Infow("read error",
					"namespace", c.hub.namespace,
					"connection_id", c.id,
					"error", err,
				)
			}
			return
		}
		c.sock.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))

		if !c.limiter.Allow() {
			violations++
			if violations >= rateLimitCloseAfter {
				c.hub.logger.Warnw("closing connection after repeated rate limit violations",
					"namespace", c.hub.namespace,
					"connection_id", c.id,
				)
				c.sock.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit exceeded"),
					time.Now().Add(c.hub.opts.WriteTimeout))
				return
			}
			c.EmitError(apperrors.NewRateLimitError())
			continue
		}
		violations = 0

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.EmitError(apperrors.NewInvalidInputError("malformed event frame"))
			continue
		}

		c.dispatch(h, env)
	}
}

// dispatch runs one handler call, recovering panics at the boundary so a
// fault in one handler cannot take down other connections.
func (c *Conn) dispatch(h EventHandler, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.hub.logger.Errorw("handler panic",
				"namespace", c.hub.namespace,
				"connection_id", c.id,
				"event", env.Event,
				"panic", r,
			)
			c.EmitError(apperrors.NewInternalError("internal error"))
		}
	}()

	if err := h.HandleEvent(c, env.Event, env.Data); err != nil {
		if appErr := apperrors.GetAppError(err); appErr != nil {
			c.EmitError(appErr)
			return
		}
		c.EmitError(apperrors.NewInternalError("internal error"))
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.sock.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			c.sock.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.sock.Close()
	})
}
