package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	persistlog "sandfall.io/internal/persistence/log"
	"sandfall.io/internal/persistence/snapshot"
	"sandfall.io/internal/sim/grid"
	"sandfall.io/internal/sim/sand"
	"sandfall.io/internal/sim/terrain"
)

const classicCave = "498,4 -> 498,6 -> 496,6\n503,4 -> 502,4 -> 502,9 -> 494,9\n"

// record runs mode over the classic cave and persists the snapshot and grain
// log the way the driver does.
func record(t *testing.T, mode grid.FloorMode) (snapshot.SnapshotV1, []persistlog.GrainEntry) {
	t.Helper()
	paths, err := terrain.ParseString(classicCave)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := terrain.Build(paths)
	terrainDigest := g.Digest()

	dir := t.TempDir()
	gl := persistlog.NewGrainLogger(dir)
	res, err := sand.Run(g, sand.DefaultSource, mode, sand.WithGrainFunc(func(seq int, o sand.Outcome) {
		if err := gl.WriteGrain(persistlog.GrainEntry{RunID: "r1", Seq: seq, Outcome: o.Kind.String(), Pos: [2]int{o.At.X, o.At.Y}}); err != nil {
			t.Fatalf("write grain: %v", err)
		}
	}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := gl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "final.snap.zst")
	if err := snapshot.WriteSnapshot(path, snapshot.Capture("r1", mode, sand.DefaultSource, res.Grains, res.Last.Kind.String(), terrainDigest, g)); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	entries, err := persistlog.ReadGrainLog(gl.Path())
	if err != nil {
		t.Fatalf("read grain log: %v", err)
	}
	return snap, entries
}

func TestVerify_Bounded(t *testing.T) {
	snap, entries := record(t, grid.Bounded)
	rep, err := verify(snap, entries, 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rep.Grains != 24 {
		t.Fatalf("grains=%d want 24", rep.Grains)
	}
	// 24 rested grains plus the one that fell forever.
	if rep.Checked != 25 {
		t.Fatalf("checked=%d want 25", rep.Checked)
	}
	if rep.Digest != snap.Digest {
		t.Fatalf("digest=%s want %s", rep.Digest, snap.Digest)
	}
}

func TestVerify_FlooredWithoutLog(t *testing.T) {
	snap, _ := record(t, grid.Floored)
	rep, err := verify(snap, nil, 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rep.Grains != 93 || rep.Checked != 0 {
		t.Fatalf("rep=%+v", rep)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	snap, entries := record(t, grid.Bounded)

	bad := append([]persistlog.GrainEntry(nil), entries...)
	bad[3].Pos[0]++
	if _, err := verify(snap, bad, 0); err == nil || !strings.Contains(err.Error(), "grain 4") {
		t.Fatalf("expected grain 4 mismatch, got %v", err)
	}

	short := entries[:10]
	if _, err := verify(snap, short, 0); err == nil {
		t.Fatalf("expected error for truncated log")
	}

	snap2 := snap
	snap2.Header.Grains++
	if _, err := verify(snap2, nil, 0); err == nil || !strings.Contains(err.Error(), "grain count") {
		t.Fatalf("expected grain count mismatch, got %v", err)
	}

	snap3 := snap
	snap3.Rocks = snap.Rocks[1:]
	if _, err := verify(snap3, nil, 0); err == nil || !strings.Contains(err.Error(), "terrain digest") {
		t.Fatalf("expected terrain digest mismatch, got %v", err)
	}
}

func TestVerify_GrainLimit(t *testing.T) {
	snap, _ := record(t, grid.Floored)
	if _, err := verify(snap, nil, 10); !errors.Is(err, sand.ErrGrainLimit) {
		t.Fatalf("err=%v want ErrGrainLimit", err)
	}
}
