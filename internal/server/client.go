package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alnah/go-mdpreview"
	"github.com/alnah/go-mdpreview/internal/engine"
)

// Connection timing.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var errClientGone = errors.New("client disconnected")

var _ mdpreview.Surface = (*client)(nil)

// client is one browser tab. It is the Surface of its session: frames,
// scroll offsets and notices become JSON messages on the socket.
type client struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	ctx      context.Context // canceled on disconnect
	cancel   context.CancelFunc
	readOnly bool
	logger   *slog.Logger
	session  *mdpreview.Session
}

func newClient(conn *websocket.Conn, readOnly bool, logger *slog.Logger) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		readOnly: readOnly,
		logger:   logger,
	}
}

func (c *client) Show(ctx context.Context, f mdpreview.Frame) error {
	return c.enqueue(ctx, renderMessage{
		Type:   msgRender,
		Cycle:  f.CycleID,
		State:  f.State.String(),
		HTML:   f.HTML,
		Digest: f.Digest,
	})
}

func (c *client) ScrollTo(ctx context.Context, offset float64) error {
	return c.enqueue(ctx, scrollMessage{Type: msgScroll, Offset: offset})
}

func (c *client) Notify(ctx context.Context, n mdpreview.Notice) error {
	return c.enqueue(ctx, noticeMessage{Type: msgNotice, Level: string(n.Level), Message: n.Message})
}

func (c *client) enqueue(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *client) sendError(text string) {
	ctx, cancel := context.WithTimeout(c.ctx, writeWait)
	defer cancel()
	if err := c.enqueue(ctx, noticeMessage{Type: msgError, Message: text}); err != nil {
		c.logger.Debug("error message not sent", "error", err)
	}
}

// close stops the writer. Safe to call more than once.
func (c *client) close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
	})
}

// writePump owns every write to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump dispatches browser messages until the connection fails.
func (c *client) readPump(limit int64) {
	c.conn.SetReadLimit(limit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("websocket closed", "session", c.session.ID(), "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("malformed message: " + err.Error())
			continue
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg inbound) {
	switch msg.Type {
	case msgEdit:
		if c.readOnly {
			c.sendError("the editor is read-only; edit the source file instead")
			return
		}
		if msg.Text == nil {
			c.sendError("edit message without text")
			return
		}
		c.session.Edit(*msg.Text)

	case msgMarkup:
		if err := c.session.SetMarkupEngine(engineID(msg.Engine)); err != nil {
			c.sendError(err.Error())
		}

	case msgMath:
		if err := c.session.SetMathEngine(engineID(msg.Engine)); err != nil {
			c.sendError(err.Error())
		}

	case msgLayout:
		if msg.Viewport == nil {
			c.sendError("layout message without viewport")
			return
		}
		c.session.ReportLayout(msg.Cycle, *msg.Viewport)

	default:
		c.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func engineID(s string) engine.ID {
	return engine.ID(strings.ToLower(strings.TrimSpace(s)))
}
