package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelpath.ai/internal/curve"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/sim/catalogs"
	"voxelpath.ai/internal/sim/draw"
	"voxelpath.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of draws, audits and snapshots,
// and the store of record for wand sessions. Draw, audit and snapshot rows are
// written by a background goroutine; session reads and writes are synchronous.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqDraw reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	draw     draw.Record
	audit    draw.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Seq    uint64
	Path   string
	Seed   int64
	Height int
	Chunks int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS draws (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			kind TEXT NOT NULL,
			design TEXT NOT NULL,
			points_json TEXT NOT NULL,
			voxels INTEGER NOT NULL,
			placed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			truncated INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_draws_actor_seq ON draws(actor, seq);`,
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER NOT NULL,
			n INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			from_block INTEGER NOT NULL,
			to_block INTEGER NOT NULL,
			reason TEXT,
			PRIMARY KEY (seq, n)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_seq ON audits(x, z, y, seq);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			seq INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			height INTEGER NOT NULL,
			chunks INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS wand_sessions (
			player TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			design TEXT NOT NULL,
			pending_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts rows discarded because the writer fell behind.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; JSONL audit logs remain the source of truth.
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) RecordDraw(rec draw.Record) {
	s.enqueue(req{kind: reqDraw, draw: rec})
}

func (s *SQLiteIndex) WriteAudit(entry draw.AuditEntry) error {
	s.enqueue(req{kind: reqAudit, audit: entry})
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Seq:    snap.Header.Seq,
		Path:   path,
		Seed:   snap.Seed,
		Height: snap.Height,
		Chunks: len(snap.Chunks),
	}})
}

func (s *SQLiteIndex) LoadSession(ctx context.Context, player string) (draw.Session, bool, error) {
	var (
		sess                   draw.Session
		kind, pending, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, design, pending_json, updated_at FROM wand_sessions WHERE player = ?`, player,
	).Scan(&kind, &sess.Design, &pending, &updated)
	if err == sql.ErrNoRows {
		return draw.Session{}, false, nil
	}
	if err != nil {
		return draw.Session{}, false, err
	}
	sess.Player = player
	if sess.Kind, err = curve.ParseKind(kind); err != nil {
		return draw.Session{}, false, fmt.Errorf("wand_sessions %s: %w", player, err)
	}
	var pts [][3]int
	if err := json.Unmarshal([]byte(pending), &pts); err != nil {
		return draw.Session{}, false, fmt.Errorf("wand_sessions %s: pending_json: %w", player, err)
	}
	for _, p := range pts {
		sess.Pending = append(sess.Pending, curve.CoordFromArray(p))
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		sess.UpdatedAt = t
	}
	return sess, true, nil
}

func (s *SQLiteIndex) SaveSession(ctx context.Context, sess draw.Session) error {
	b, err := json.Marshal(coordArrays(sess.Pending))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO wand_sessions(player,kind,design,pending_json,updated_at) VALUES(?,?,?,?,?)`,
		sess.Player, sess.Kind.ID(), sess.Design, string(b), sess.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func coordArrays(cs []curve.Coord) [][3]int {
	out := make([][3]int, len(cs))
	for i, c := range cs {
		out[i] = c.ToArray()
	}
	return out
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	{
		// Canonical JSON, ordered by id.
		ids := cats.Designs.DesignIDs()
		defs := make([]catalogs.DesignDef, 0, len(ids))
		for _, id := range ids {
			defs = append(defs, cats.Designs.ByID[id])
		}
		if b, _ := json.Marshal(defs); len(b) > 0 {
			rows = append(rows, kv{name: "designs", digest: cats.Designs.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDraw, _ := s.db.Prepare(`INSERT OR REPLACE INTO draws(id,seq,actor,kind,design,points_json,voxels,placed,failed,truncated,created_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(seq,n,actor,action,x,y,z,from_block,to_block,reason) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(seq,path,seed,height,chunks) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertDraw, insertAudit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditSeq uint64
		auditN       int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqDraw:
			d := r.draw
			pts, _ := json.Marshal(coordArrays(d.Points))
			truncated := 0
			if d.Result.Truncated {
				truncated = 1
			}
			exec(insertDraw,
				d.ID,
				int64(d.Seq),
				d.Actor,
				d.Kind.ID(),
				d.Design,
				string(pts),
				d.Result.Voxels,
				d.Result.Placed,
				d.Result.Failed,
				truncated,
				d.At.UTC().Format(time.RFC3339Nano),
			)

		case reqAudit:
			a := r.audit
			if a.Seq != lastAuditSeq {
				lastAuditSeq = a.Seq
				auditN = 0
			}
			n := auditN
			auditN++
			exec(insertAudit,
				int64(a.Seq),
				n,
				a.Actor,
				a.Action,
				a.Pos[0], a.Pos[1], a.Pos[2],
				int64(a.From),
				int64(a.To),
				a.Reason,
			)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Seq), sn.Path, sn.Seed, sn.Height, sn.Chunks)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
