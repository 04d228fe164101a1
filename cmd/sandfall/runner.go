package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"sandfall.io/internal/persistence/archive"
	"sandfall.io/internal/persistence/indexdb"
	persistlog "sandfall.io/internal/persistence/log"
	"sandfall.io/internal/persistence/snapshot"
	"sandfall.io/internal/sim/grid"
	"sandfall.io/internal/sim/sand"
	"sandfall.io/internal/sim/tuning"
	"sandfall.io/internal/transport/observer"
)

type runner struct {
	tune    tuning.Tuning
	dataDir string
	idx     *indexdb.SQLiteIndex
	reg     *observer.Registry
	logger  *log.Logger
	render  io.Writer
}

type runOutput struct {
	RunID    string
	Grains   int
	Digest   string
	Snapshot string
	GrainLog string
}

// run simulates one floor mode on g, which must be a private copy of the terrain.
func (r *runner) run(g *grid.Grid, mode grid.FloorMode) (runOutput, error) {
	runID := uuid.NewString()
	runDir := filepath.Join(r.dataDir, "runs", runID)
	terrainDigest := g.Digest()
	terrainCells := g.TerrainLen()
	source := r.tune.Source.Coord()
	out := runOutput{RunID: runID}

	rec := observer.NewRecorder(runID)
	var (
		grainLog *persistlog.GrainLogger
		logErr   error
	)
	if r.tune.GrainLog {
		grainLog = persistlog.NewGrainLogger(runDir)
		out.GrainLog = grainLog.Path()
	}
	onGrain := func(seq int, o sand.Outcome) {
		rec.OnGrain(seq, o)
		e := persistlog.GrainEntry{RunID: runID, Seq: seq, Outcome: o.Kind.String(), Pos: [2]int{o.At.X, o.At.Y}}
		if grainLog != nil && logErr == nil {
			logErr = grainLog.WriteGrain(e)
		}
		_ = r.idx.WriteGrain(e)
	}

	res, runErr := sand.Run(g, source, mode, sand.WithMaxGrains(r.tune.MaxGrains), sand.WithGrainFunc(onGrain))
	if grainLog != nil {
		if err := grainLog.Close(); err != nil && logErr == nil {
			logErr = err
		}
	}

	b := g.Bounds()
	record := indexdb.RunRecord{
		RunID:         runID,
		Mode:          mode.String(),
		SourceX:       source.X,
		SourceY:       source.Y,
		Grains:        res.Grains,
		Outcome:       res.Last.Kind.String(),
		TerrainDigest: terrainDigest,
		FinalDigest:   res.Digest,
		TerrainCells:  terrainCells,
		Left:          b.Left,
		Right:         b.Right,
		Top:           b.Top,
		Bottom:        b.Bottom,
		Duration:      res.Duration,
	}
	if runErr != nil {
		record.Err = runErr.Error()
		r.idx.RecordRun(record)
		return out, fmt.Errorf("run %s: %w", runID, runErr)
	}
	r.idx.RecordRun(record)
	out.Grains = res.Grains
	out.Digest = res.Digest

	if logErr != nil {
		r.logger.Printf("%s: grain log: %v", mode, logErr)
	}

	if r.tune.Snapshot {
		snap := snapshot.Capture(runID, mode, source, res.Grains, res.Last.Kind.String(), terrainDigest, g)
		path := filepath.Join(runDir, "final.snap.zst")
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			r.logger.Printf("%s: snapshot write: %v", mode, err)
		} else {
			out.Snapshot = path
			r.idx.RecordSnapshot(path, snap)
			r.checkBaseline(mode, path, snap)
		}
	}

	r.reg.Add(rec.Finish(res, g))
	r.logger.Printf("%s: %d grains came to rest (run=%s last=%s bounds=%+v in %s)", mode, res.Grains, runID, res.Last.Kind, b, res.Duration)
	if r.render != nil {
		if err := grid.Render(r.render, g, source, mode); err != nil {
			r.logger.Printf("%s: render: %v", mode, err)
		}
	}
	return out, nil
}

// checkBaseline compares snap with the archived baseline for the same terrain,
// or archives it when none exists yet.
func (r *runner) checkBaseline(mode grid.FloorMode, path string, snap snapshot.SnapshotV1) {
	base, match, found, err := archive.CompareBaseline(r.dataDir, snap)
	if err != nil {
		r.logger.Printf("%s: baseline: %v", mode, err)
		return
	}
	if found {
		if !match {
			r.logger.Printf("%s: DIVERGED from baseline run %s (grains %d vs %d)", mode, base.RunID, snap.Header.Grains, base.Grains)
		}
		return
	}
	if dst, ok, err := archive.ArchiveBaseline(r.dataDir, path, snap); err != nil {
		r.logger.Printf("%s: archive baseline: %v", mode, err)
	} else if ok {
		r.logger.Printf("%s: archived baseline %s", mode, dst)
	}
}
