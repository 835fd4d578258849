package ws

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/draw"
	"voxelpath.ai/internal/sim/encoding"
	"voxelpath.ai/internal/sim/grid"
)

// Info is the static part of every WELCOME.
type Info struct {
	Grid     protocol.GridParams
	Catalogs protocol.CatalogDigests
	Designs  []string
}

type Server struct {
	draws     *draw.Service
	wand      *draw.Wand
	validator *protocol.Validator
	info      Info
	log       *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(svc *draw.Service, wand *draw.Wand, v *protocol.Validator, info Info, logger *log.Logger) *Server {
	s := &Server{
		draws:     svc,
		wand:      wand,
		validator: v,
		info:      info,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		player := s.handshake(conn)
		if player == "" {
			return
		}
		if s.log != nil {
			s.log.Printf("ws: %s connected from %s", player, r.RemoteAddr)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, 16)

		// Writer goroutine.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.handle(ctx, player, msg)
			b, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done
		if s.log != nil {
			s.log.Printf("ws: %s disconnected", player)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return ""
	}
	if base.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return ""
	}
	if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
		closeWith(conn, "bad HELLO")
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}

	kinds := make([]string, len(curve.Kinds))
	for i, k := range curve.Kinds {
		kinds[i] = k.ID()
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		Player:          hello.Player,
		GridParams:      s.info.Grid,
		Catalogs:        s.info.Catalogs,
		Kinds:           kinds,
		Designs:         append([]string{}, s.info.Designs...),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	return hello.Player
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func (s *Server) handle(ctx context.Context, player string, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "invalid json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError(base.RequestID, protocol.ErrProtoVersion, fmt.Sprintf("protocol_version %q not supported", base.ProtocolVersion))
	}
	switch base.Type {
	case protocol.TypeDraw, protocol.TypeWandClick, protocol.TypeWandMode, protocol.TypeWandClear, protocol.TypeGetChunk:
	default:
		return protocol.NewError(base.RequestID, protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type))
	}
	if err := s.validator.Validate(base.Type, msg); err != nil {
		return protocol.NewError(base.RequestID, protocol.ErrProtoBadRequest, err.Error())
	}

	switch base.Type {
	case protocol.TypeDraw:
		var m protocol.DrawMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewError(base.RequestID, protocol.ErrProtoBadRequest, err.Error())
		}
		return s.handleDraw(player, m)

	case protocol.TypeWandClick:
		var m protocol.WandClickMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewError(base.RequestID, protocol.ErrProtoBadRequest, err.Error())
		}
		// A failed draw still consumes the click and clears pending points.
		res, err := s.wand.Click(ctx, player, curve.CoordFromArray(m.Pos))
		if err != nil {
			return errorFor(m.RequestID, err)
		}
		state := wandState(m.RequestID, res.Session)
		if res.Drawn != nil {
			dr := drawResult("", *res.Drawn)
			state.Drawn = &dr
		}
		return state

	case protocol.TypeWandMode:
		var m protocol.WandModeMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewError(base.RequestID, protocol.ErrProtoBadRequest, err.Error())
		}
		var kind curve.Kind
		if m.Kind != "" {
			if kind, err = curve.ParseKind(m.Kind); err != nil {
				return errorFor(m.RequestID, err)
			}
		}
		sess, err := s.wand.SetMode(ctx, player, kind, m.Design)
		if err != nil {
			return errorFor(m.RequestID, err)
		}
		return wandState(m.RequestID, sess)

	case protocol.TypeWandClear:
		sess, err := s.wand.Clear(ctx, player)
		if err != nil {
			return errorFor(base.RequestID, err)
		}
		return wandState(base.RequestID, sess)

	case protocol.TypeGetChunk:
		var m protocol.GetChunkMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewError(base.RequestID, protocol.ErrProtoBadRequest, err.Error())
		}
		return s.handleChunk(m)
	}
	return nil
}

func (s *Server) handleDraw(player string, m protocol.DrawMsg) any {
	kind, err := curve.ParseKind(m.Kind)
	if err != nil {
		return errorFor(m.RequestID, err)
	}
	points := make([]curve.Coord, len(m.Points))
	for i, p := range m.Points {
		points[i] = curve.CoordFromArray(p)
	}
	rec, err := s.draws.Draw(draw.Request{Actor: player, Kind: kind, Points: points, Design: m.Design})
	if err != nil {
		return errorFor(m.RequestID, err)
	}
	out := drawResult(m.RequestID, rec)
	if m.IncludePath {
		seq, err := curve.New(rec.Kind, rec.Points)
		if err == nil {
			it := seq.Iter()
			for len(out.Path) < rec.Result.Voxels {
				c, ok := it.Next()
				if !ok {
					break
				}
				out.Path = append(out.Path, c.ToArray())
			}
		}
	}
	return out
}

func (s *Server) handleChunk(m protocol.GetChunkMsg) any {
	cfg := s.draws.World.GridConfig()
	if r := cfg.BoundaryR; r > 0 {
		minX, maxX := m.CX*grid.ChunkSize, m.CX*grid.ChunkSize+grid.ChunkSize-1
		minZ, maxZ := m.CZ*grid.ChunkSize, m.CZ*grid.ChunkSize+grid.ChunkSize-1
		if maxX < -r || minX > r || maxZ < -r || minZ > r {
			return protocol.NewError(m.RequestID, protocol.ErrOutOfRange, fmt.Sprintf("chunk %d,%d is outside the grid", m.CX, m.CZ))
		}
	}
	blocks, digest := s.draws.World.ChunkBlocks(m.CX, m.CZ)
	return protocol.ChunkMsg{
		Type:            protocol.TypeChunk,
		ProtocolVersion: protocol.Version,
		RequestID:       m.RequestID,
		CX:              m.CX,
		CZ:              m.CZ,
		Height:          cfg.Height,
		MinY:            cfg.MinY,
		Encoding:        "RLE",
		Data:            encoding.EncodeRLE(blocks),
		Digest:          hex.EncodeToString(digest[:]),
	}
}

func drawResult(requestID string, rec draw.Record) protocol.DrawResultMsg {
	return protocol.DrawResultMsg{
		Type:            protocol.TypeDrawResult,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		DrawID:          rec.ID,
		Seq:             rec.Seq,
		Kind:            rec.Kind.ID(),
		Design:          rec.Design,
		Voxels:          rec.Result.Voxels,
		Placed:          rec.Result.Placed,
		Failed:          rec.Result.Failed,
		Truncated:       rec.Result.Truncated,
	}
}

func wandState(requestID string, sess draw.Session) protocol.WandStateMsg {
	pending := make([][3]int, len(sess.Pending))
	for i, p := range sess.Pending {
		pending[i] = p.ToArray()
	}
	return protocol.WandStateMsg{
		Type:            protocol.TypeWandState,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Kind:            sess.Kind.ID(),
		KindName:        sess.Kind.String(),
		Design:          sess.Design,
		Pending:         pending,
		Required:        sess.Kind.Arity(),
	}
}

func errorFor(requestID string, err error) protocol.ErrorMsg {
	code := protocol.ErrInternal
	switch {
	case errors.Is(err, curve.ErrInvalidConfig):
		code = protocol.ErrInvalidConfig
	case errors.Is(err, draw.ErrUnknownDesign):
		code = protocol.ErrUnknownDesign
	case errors.Is(err, draw.ErrOutOfRange):
		code = protocol.ErrOutOfRange
	}
	return protocol.NewError(requestID, code, err.Error())
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
