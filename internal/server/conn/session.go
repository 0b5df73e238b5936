// Package conn serves viewers over websocket connections.
package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	queueHeadroom  = 256
)

// queueSize holds a full view square of chunk packets, which a join or a
// radius change queues at once, plus room for replies and updates.
func queueSize(viewDistance int) int {
	side := 2*max(viewDistance, 1) + 1
	return side*side + queueHeadroom
}

// ErrQueueFull is returned when a client does not keep up with its packets.
// The session is closed when it happens.
var ErrQueueFull = errors.New("send queue full")

type message struct {
	kind int
	data []byte
}

// Session is one websocket connection. Packets are encoded by the caller's
// goroutine and written by a single writer.
type Session struct {
	ws     *websocket.Conn
	log    *slog.Logger
	out    chan message
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func newSession(ctx context.Context, ws *websocket.Conn, log *slog.Logger, queue int) *Session {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		ws:     ws,
		log:    log,
		out:    make(chan message, queue),
		ctx:    ctx,
		cancel: cancel,
	}
}

// WritePacket encodes p and queues it as a binary frame.
func (s *Session) WritePacket(p protocol.Packet) error {
	frame, err := protocol.Encode(p)
	if err != nil {
		return fmt.Errorf("encode packet 0x%02x: %w", p.PacketID(), err)
	}
	return s.enqueue(message{kind: websocket.BinaryMessage, data: frame})
}

// WriteReply queues r as a text frame.
func (s *Session) WriteReply(r Reply) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	return s.enqueue(message{kind: websocket.TextMessage, data: data})
}

func (s *Session) enqueue(m message) error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	select {
	case s.out <- m:
		return nil
	default:
		s.log.Warn("client too slow, closing")
		s.Close()
		return ErrQueueFull
	}
}

// Close stops the session. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.ws.Close()
	})
}

// writeLoop drains the queue until the session is closed.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case <-s.ctx.Done():
			_ = s.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case m := <-s.out:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(m.kind, m.data); err != nil {
				s.log.Debug("write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// read returns the next message. Any message or pong extends the deadline.
func (s *Session) read() (int, []byte, error) {
	kind, data, err := s.ws.ReadMessage()
	if err == nil {
		_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	}
	return kind, data, err
}

func (s *Session) configureReads() {
	s.ws.SetReadLimit(maxMessageSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}
