package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "actor filter (draws)")
	at := fs.String("at", "", "x,y,z filter (audits)")
	player := fs.String("player", "", "player filter (sessions)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}
	filters := dbFilters{Limit: *limit, Actor: strings.TrimSpace(*actor), Player: strings.TrimSpace(*player)}
	if s := strings.TrimSpace(*at); s != "" {
		c, err := parseCoord(s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -at:", err)
			os.Exit(2)
		}
		v := c.ToArray()
		filters.At = &v
	}

	if err := runQuery(db, q, filters, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] snapshots|draws|audits|sessions|catalogs")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type dbFilters struct {
	Limit  int
	Actor  string
	Player string
	At     *[3]int
}

type snapshotRow struct {
	Seq    uint64 `json:"seq"`
	Path   string `json:"path"`
	Seed   int64  `json:"seed"`
	Height int    `json:"height"`
	Chunks int    `json:"chunks"`
}

type drawRow struct {
	ID        string          `json:"id"`
	Seq       uint64          `json:"seq"`
	Actor     string          `json:"actor"`
	Kind      string          `json:"kind"`
	Design    string          `json:"design"`
	Points    json.RawMessage `json:"points"`
	Voxels    int             `json:"voxels"`
	Placed    int             `json:"placed"`
	Failed    int             `json:"failed"`
	Truncated bool            `json:"truncated,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type auditRow struct {
	Seq    uint64         `json:"seq"`
	N      int            `json:"n"`
	Actor  string         `json:"actor"`
	Action string         `json:"action"`
	Pos    [3]int         `json:"pos"`
	From   uint16         `json:"from"`
	To     uint16         `json:"to"`
	Reason sql.NullString `json:"-"`
	Draw   string         `json:"draw,omitempty"`
}

type sessionRow struct {
	Player    string          `json:"player"`
	Kind      string          `json:"kind"`
	Design    string          `json:"design"`
	Pending   json.RawMessage `json:"pending"`
	UpdatedAt string          `json:"updated_at"`
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

// runQuery prints one row per emit call, newest first.
func runQuery(db *sql.DB, q string, f dbFilters, emit func(any)) error {
	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT seq,path,seed,height,chunks FROM snapshots ORDER BY seq DESC LIMIT ?`, f.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r snapshotRow
			if err := rows.Scan(&r.Seq, &r.Path, &r.Seed, &r.Height, &r.Chunks); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "draws":
		sqlq := `SELECT id,seq,actor,kind,design,points_json,voxels,placed,failed,truncated,created_at FROM draws ORDER BY seq DESC LIMIT ?`
		args := []any{f.Limit}
		if f.Actor != "" {
			sqlq = `SELECT id,seq,actor,kind,design,points_json,voxels,placed,failed,truncated,created_at FROM draws WHERE actor=? ORDER BY seq DESC LIMIT ?`
			args = []any{f.Actor, f.Limit}
		}
		rows, err := db.Query(sqlq, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r drawRow
			var points string
			if err := rows.Scan(&r.ID, &r.Seq, &r.Actor, &r.Kind, &r.Design, &points, &r.Voxels, &r.Placed, &r.Failed, &r.Truncated, &r.CreatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Points = json.RawMessage(points)
			emit(r)
		}
		return rows.Err()

	case "audits":
		sqlq := `SELECT seq,n,actor,action,x,y,z,from_block,to_block,reason FROM audits ORDER BY seq DESC, n DESC LIMIT ?`
		args := []any{f.Limit}
		if f.At != nil {
			sqlq = `SELECT seq,n,actor,action,x,y,z,from_block,to_block,reason FROM audits WHERE x=? AND z=? AND y=? ORDER BY seq DESC, n DESC LIMIT ?`
			args = []any{f.At[0], f.At[2], f.At[1], f.Limit}
		}
		rows, err := db.Query(sqlq, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r auditRow
			if err := rows.Scan(&r.Seq, &r.N, &r.Actor, &r.Action, &r.Pos[0], &r.Pos[1], &r.Pos[2], &r.From, &r.To, &r.Reason); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Draw = r.Reason.String
			emit(r)
		}
		return rows.Err()

	case "sessions":
		sqlq := `SELECT player,kind,design,pending_json,updated_at FROM wand_sessions ORDER BY updated_at DESC LIMIT ?`
		args := []any{f.Limit}
		if f.Player != "" {
			sqlq = `SELECT player,kind,design,pending_json,updated_at FROM wand_sessions WHERE player=?`
			args = []any{f.Player}
		}
		rows, err := db.Query(sqlq, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r sessionRow
			var pending string
			if err := rows.Scan(&r.Player, &r.Kind, &r.Design, &pending, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Pending = json.RawMessage(pending)
			emit(r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r catalogRow
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query: %s", q)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
