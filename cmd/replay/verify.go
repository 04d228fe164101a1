package main

import (
	"fmt"

	persistlog "sandfall.io/internal/persistence/log"
	"sandfall.io/internal/persistence/snapshot"
	"sandfall.io/internal/sim/sand"
)

type report struct {
	Grains  int
	Checked int
	Digest  string
}

// verify re-runs the simulation from the snapshot's terrain and checks the
// result, and optionally every logged grain, against what was recorded.
func verify(snap snapshot.SnapshotV1, entries []persistlog.GrainEntry, maxGrains int) (report, error) {
	mode, err := snap.FloorMode()
	if err != nil {
		return report{}, err
	}
	g := snap.TerrainGrid()
	if got := g.Digest(); snap.TerrainDigest != "" && got != snap.TerrainDigest {
		return report{}, fmt.Errorf("terrain digest mismatch: snapshot=%s rebuilt=%s", snap.TerrainDigest, got)
	}

	var (
		rep      report
		mismatch error
	)
	onGrain := func(seq int, o sand.Outcome) {
		if mismatch != nil || len(entries) == 0 {
			return
		}
		i := seq - 1
		if i >= len(entries) {
			mismatch = fmt.Errorf("grain %d: not in log (%d entries)", seq, len(entries))
			return
		}
		e := entries[i]
		if e.Seq != seq || e.Outcome != o.Kind.String() || (o.Rested() && e.Pos != [2]int{o.At.X, o.At.Y}) {
			mismatch = fmt.Errorf("grain %d: log=%s@%d,%d replay=%s@%s", seq, e.Outcome, e.Pos[0], e.Pos[1], o.Kind, o.At)
			return
		}
		rep.Checked++
	}

	res, err := sand.Run(g, snap.SourceCoord(), mode, sand.WithMaxGrains(maxGrains), sand.WithGrainFunc(onGrain))
	if err != nil {
		return rep, err
	}
	if mismatch != nil {
		return rep, mismatch
	}
	if len(entries) > 0 && rep.Checked != len(entries) {
		return rep, fmt.Errorf("grain log has %d entries, replay produced %d", len(entries), rep.Checked)
	}
	if res.Grains != snap.Header.Grains {
		return rep, fmt.Errorf("grain count mismatch: snapshot=%d replay=%d", snap.Header.Grains, res.Grains)
	}
	if res.Digest != snap.Digest {
		return rep, fmt.Errorf("final digest mismatch: snapshot=%s replay=%s", snap.Digest, res.Digest)
	}
	rep.Grains = res.Grains
	rep.Digest = res.Digest
	return rep, nil
}
