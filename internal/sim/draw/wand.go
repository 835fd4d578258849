package draw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voxelpath.ai/internal/curve"
)

// Session is one player's builder's wand state.
type Session struct {
	Player    string
	Kind      curve.Kind
	Design    string
	Pending   []curve.Coord
	UpdatedAt time.Time
}

// SessionStore persists wand sessions. Implemented in
// internal/persistence/indexdb.
type SessionStore interface {
	LoadSession(ctx context.Context, player string) (Session, bool, error)
	SaveSession(ctx context.Context, s Session) error
}

type MemorySessions struct {
	mu sync.Mutex
	m  map[string]Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{m: map[string]Session{}}
}

func (m *MemorySessions) LoadSession(_ context.Context, player string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.m[player]
	if ok {
		s.Pending = append([]curve.Coord(nil), s.Pending...)
	}
	return s, ok, nil
}

func (m *MemorySessions) SaveSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Pending = append([]curve.Coord(nil), s.Pending...)
	m.m[s.Player] = s
	return nil
}

// Wand collects control points click by click and draws once the current
// kind's arity is reached.
type Wand struct {
	Service  *Service
	Sessions SessionStore

	DefaultKind curve.Kind

	mu sync.Mutex
}

type ClickResult struct {
	Session Session
	// Drawn is set when the click completed a curve.
	Drawn *Record
}

func (w *Wand) load(ctx context.Context, player string) (Session, error) {
	s, ok, err := w.Sessions.LoadSession(ctx, player)
	if err != nil {
		return Session{}, fmt.Errorf("load wand session %s: %w", player, err)
	}
	if !ok || s.Kind.Arity() == 0 {
		s.Player = player
		s.Kind = w.DefaultKind
		if s.Kind.Arity() == 0 {
			s.Kind = curve.KindLinear
		}
	}
	if s.Design == "" {
		s.Design = w.Service.DefaultDesign
	}
	return s, nil
}

func (w *Wand) save(ctx context.Context, s *Session) error {
	s.UpdatedAt = w.Service.clock()
	if err := w.Sessions.SaveSession(ctx, *s); err != nil {
		return fmt.Errorf("save wand session %s: %w", s.Player, err)
	}
	return nil
}

func (w *Wand) State(ctx context.Context, player string) (Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load(ctx, player)
}

// Click appends pos to the player's pending points. When the kind's arity is
// reached the curve is drawn and the pending list cleared, even if the draw
// fails.
func (w *Wand) Click(ctx context.Context, player string, pos curve.Coord) (ClickResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.load(ctx, player)
	if err != nil {
		return ClickResult{}, err
	}
	s.Pending = append(s.Pending, pos)

	var res ClickResult
	var drawErr error
	if len(s.Pending) >= s.Kind.Arity() {
		rec, err := w.Service.Draw(Request{Actor: player, Kind: s.Kind, Points: s.Pending, Design: s.Design})
		if err != nil {
			drawErr = err
		} else {
			res.Drawn = &rec
		}
		s.Pending = nil
	}
	if err := w.save(ctx, &s); err != nil {
		return ClickResult{}, err
	}
	res.Session = s
	return res, drawErr
}

// SetMode switches the player's kind (the next kind in cycle order when kind is
// zero) and, when design is non-empty, the design. Switching kind clears the
// pending points.
func (w *Wand) SetMode(ctx context.Context, player string, kind curve.Kind, design string) (Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.load(ctx, player)
	if err != nil {
		return Session{}, err
	}
	if design != "" {
		if _, err := w.Service.Designs.Generator(design); err != nil {
			return Session{}, err
		}
		s.Design = design
	}
	switch {
	case kind == 0:
		s.Kind = s.Kind.Next()
		s.Pending = nil
	case kind.Arity() == 0:
		return Session{}, fmt.Errorf("wand mode %d: %w", int(kind), curve.ErrInvalidConfig)
	case kind != s.Kind:
		s.Kind = kind
		s.Pending = nil
	}
	if err := w.save(ctx, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (w *Wand) Clear(ctx context.Context, player string) (Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.load(ctx, player)
	if err != nil {
		return Session{}, err
	}
	s.Pending = nil
	if err := w.save(ctx, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}
