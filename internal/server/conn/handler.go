package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/packet"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/viewer"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
)

const helloWait = 5 * time.Second

// Options configures new sessions.
type Options struct {
	// Radius is used when the hello does not ask for one.
	Radius int
	// BlobCache allows clients to opt in to cached chunks.
	BlobCache bool
}

// Handler upgrades HTTP requests and runs a session per connection.
type Handler struct {
	log      *slog.Logger
	world    *world.World
	viewers  *viewer.Manager
	blocks   *gamedata.Registry
	opts     Options
	queue    int
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, w *world.World, viewers *viewer.Manager, blocks *gamedata.Registry, opts Options) *Handler {
	return &Handler{
		log:     log.With("component", "conn"),
		world:   w,
		viewers: viewers,
		blocks:  blocks,
		opts:    opts,
		queue:   queueSize(viewers.ViewDistance()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		h.log.Debug("upgrade", "remote", r.RemoteAddr, "error", err)
		return
	}
	s := newSession(r.Context(), ws, h.log.With("remote", r.RemoteAddr), h.queue)
	h.handle(s)
}

func (h *Handler) handle(s *Session) {
	defer s.Close()

	hello, err := h.handshake(s)
	if err != nil {
		s.log.Debug("handshake failed", "error", err)
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(time.Second))
		return
	}

	name := hello.Name
	if name == "" {
		name = "viewer"
	}
	radius := hello.Radius
	if radius <= 0 {
		radius = h.opts.Radius
	}
	radius = h.viewers.ClampRadius(radius)
	blobCache := hello.BlobCache && h.opts.BlobCache
	v := viewer.New(uuid.New(), name, radius, blobCache, s.WritePacket)
	s.log = s.log.With("viewer", v.ID())

	go s.writeLoop()

	_ = s.WriteReply(Reply{Type: TypeWelcome, ID: v.ID().String(), Radius: radius, BlobCache: blobCache})
	h.viewers.Add(v)
	defer h.viewers.Remove(v)

	x, y, z := h.world.Spawn()
	h.viewers.Move(v, int(x), int(y), int(z))

	for {
		kind, msg, err := s.read()
		if err != nil {
			if s.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read message", "error", err)
			}
			return
		}
		switch kind {
		case websocket.TextMessage:
			h.handleCommand(s, v, msg)
		case websocket.BinaryMessage:
			h.handlePacket(s, v, msg)
		}
	}
}

func (h *Handler) handshake(s *Session) (Command, error) {
	_ = s.ws.SetReadDeadline(time.Now().Add(helloWait))
	kind, msg, err := s.ws.ReadMessage()
	if err != nil {
		return Command{}, fmt.Errorf("read hello: %w", err)
	}
	if kind != websocket.TextMessage {
		return Command{}, errors.New("expected hello")
	}
	cmd, err := decodeCommand(msg)
	if err != nil {
		return Command{}, fmt.Errorf("decode hello: %w", err)
	}
	if cmd.Type != TypeHello {
		return Command{}, errors.New("expected hello")
	}
	s.configureReads()
	return cmd, nil
}

func (h *Handler) handleCommand(s *Session, v *viewer.Viewer, msg []byte) {
	cmd, err := decodeCommand(msg)
	if err != nil {
		_ = s.WriteReply(Reply{Type: TypeError, Error: "malformed command"})
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	switch cmd.Type {
	case TypeMove:
		h.viewers.Move(v, cmd.X, cmd.Y, cmd.Z)
	case TypeRadius:
		h.viewers.SetRadius(v, cmd.Radius)
	case TypeSetBlock:
		id, err := h.blocks.ID(cmd.Block)
		if err != nil {
			_ = s.WriteReply(Reply{Type: TypeError, X: cmd.X, Y: cmd.Y, Z: cmd.Z, Error: err.Error()})
			return
		}
		if err := h.world.SetBlock(ctx, cmd.X, cmd.Y, cmd.Z, id); err != nil {
			_ = s.WriteReply(Reply{Type: TypeError, X: cmd.X, Y: cmd.Y, Z: cmd.Z, Error: err.Error()})
		}
	case TypeGetBlock:
		id, err := h.world.GetBlock(ctx, cmd.X, cmd.Y, cmd.Z)
		if err != nil {
			_ = s.WriteReply(Reply{Type: TypeError, X: cmd.X, Y: cmd.Y, Z: cmd.Z, Error: err.Error()})
			return
		}
		state, _ := h.blocks.ByID(id)
		_ = s.WriteReply(Reply{Type: TypeBlock, X: cmd.X, Y: cmd.Y, Z: cmd.Z, Block: state.String()})
	default:
		_ = s.WriteReply(Reply{Type: TypeError, Error: fmt.Sprintf("unknown command %q", cmd.Type)})
	}
}

func (h *Handler) handlePacket(s *Session, v *viewer.Viewer, frame []byte) {
	id, _, err := protocol.SplitFrame(frame)
	if err != nil {
		s.log.Debug("split frame", "error", err)
		return
	}
	switch id {
	case packet.IDCacheBlobStatus:
		var status packet.CacheBlobStatus
		if err := protocol.Decode(frame, &status); err != nil {
			s.log.Debug("decode blob status", "error", err)
			return
		}
		h.viewers.HandleBlobStatus(v, &status)
	default:
		s.log.Debug("unhandled packet", "id", id)
	}
}
