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

	persistlog "sandfall.io/internal/persistence/log"
	"sandfall.io/internal/persistence/snapshot"
	"sandfall.io/internal/sim/tuning"
)

// SQLiteIndex is a query-friendly read model of runs. Writes are queued to a
// single writer goroutine and dropped when the queue is full; the grain logs
// and snapshots on disk remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	insertGrain    *sql.Stmt
	insertRun      *sql.Stmt
	insertSnapshot *sql.Stmt

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropGrain    atomic.Uint64
	dropRun      atomic.Uint64
	dropSnapshot atomic.Uint64
	writeErr     atomic.Uint64
}

type reqKind int

const (
	reqGrain reqKind = iota + 1
	reqRun
	reqSnapshot
)

type req struct {
	kind reqKind

	grain    persistlog.GrainEntry
	run      RunRecord
	snapshot snapshotRow
}

// RunRecord summarises one finished run.
type RunRecord struct {
	RunID         string
	Mode          string
	SourceX       int
	SourceY       int
	Grains        int
	Outcome       string
	TerrainDigest string
	FinalDigest   string
	TerrainCells  int
	Left          int
	Right         int
	Top           int
	Bottom        int
	Duration      time.Duration
	Err           string
}

type snapshotRow struct {
	RunID  string
	Path   string
	Grains int
	Rocks  int
	Sand   int
	Digest string
}

// Stats counts writes dropped under back-pressure and writes the database
// rejected.
type Stats struct {
	DropGrainTotal    uint64
	DropRunTotal      uint64
	DropSnapshotTotal uint64
	WriteErrTotal     uint64
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
		// Floored runs can drop tens of thousands of grains back to back.
		ch: make(chan req, 65536),
	}
	if err := s.prepare(); err != nil {
		s.closeStmts()
		_ = db.Close()
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func (s *SQLiteIndex) prepare() error {
	var err error
	if s.insertGrain, err = s.db.Prepare(`INSERT OR REPLACE INTO grains(run_id,seq,outcome,x,y) VALUES(?,?,?,?,?)`); err != nil {
		return fmt.Errorf("prepare grains insert: %w", err)
	}
	if s.insertRun, err = s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,mode,source_x,source_y,grains,outcome,terrain_digest,final_digest,terrain_cells,min_x,max_x,min_y,max_y,duration_ms,error,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`); err != nil {
		return fmt.Errorf("prepare runs insert: %w", err)
	}
	if s.insertSnapshot, err = s.db.Prepare(`INSERT OR REPLACE INTO snapshots(run_id,path,grains,rocks,sand,digest) VALUES(?,?,?,?,?,?)`); err != nil {
		return fmt.Errorf("prepare snapshots insert: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) closeStmts() {
	for _, st := range []*sql.Stmt{s.insertGrain, s.insertRun, s.insertSnapshot} {
		if st != nil {
			_ = st.Close()
		}
	}
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
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			source_x INTEGER NOT NULL,
			source_y INTEGER NOT NULL,
			grains INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			terrain_digest TEXT NOT NULL,
			final_digest TEXT NOT NULL,
			terrain_cells INTEGER NOT NULL,
			min_x INTEGER NOT NULL,
			max_x INTEGER NOT NULL,
			min_y INTEGER NOT NULL,
			max_y INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_terrain_mode ON runs(terrain_digest, mode);`,
		`CREATE TABLE IF NOT EXISTS grains (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_grains_pos ON grains(x, y);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			grains INTEGER NOT NULL,
			rocks INTEGER NOT NULL,
			sand INTEGER NOT NULL,
			digest TEXT NOT NULL
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
		s.closeStmts()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropGrainTotal:    s.dropGrain.Load(),
		DropRunTotal:      s.dropRun.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteErrTotal:     s.writeErr.Load(),
	}
}

func (s *SQLiteIndex) WriteGrain(entry persistlog.GrainEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqGrain, grain: entry}:
	default:
		s.dropGrain.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordRun(r RunRecord) {
	if s == nil || s.closed.Load() || r.RunID == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		RunID:  snap.Header.RunID,
		Path:   path,
		Grains: snap.Header.Grains,
		Rocks:  len(snap.Rocks),
		Sand:   len(snap.Sand),
		Digest: snap.Digest,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertTuning stores the tuning actually applied, keyed by name, as canonical JSON.
func (s *SQLiteIndex) UpsertTuning(name string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`, name, digest, string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 4000
		commitMaxWait = 2 * time.Second
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
		if tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			s.writeErr.Add(1)
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
		case reqGrain:
			g := r.grain
			exec(s.insertGrain, g.RunID, g.Seq, g.Outcome, g.Pos[0], g.Pos[1])

		case reqRun:
			ru := r.run
			exec(s.insertRun,
				ru.RunID,
				ru.Mode,
				ru.SourceX, ru.SourceY,
				ru.Grains,
				ru.Outcome,
				ru.TerrainDigest,
				ru.FinalDigest,
				ru.TerrainCells,
				ru.Left, ru.Right, ru.Top, ru.Bottom,
				ru.Duration.Milliseconds(),
				ru.Err,
				time.Now().UTC().Format(time.RFC3339Nano),
			)
			// Run rows are rare and callers read them right after; commit now.
			commit()
			continue

		case reqSnapshot:
			sn := r.snapshot
			exec(s.insertSnapshot, sn.RunID, sn.Path, sn.Grains, sn.Rocks, sn.Sand, sn.Digest)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
