package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"sandfall.io/internal/sim/grid"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Mode    string `json:"mode"`
	Grains  int    `json:"grains"`
}

// SnapshotV1 is the final state of one run.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Source  [2]int `json:"source"`
	Outcome string `json:"outcome"`

	Bounds        BoundsV1 `json:"bounds"`
	TerrainBounds BoundsV1 `json:"terrain_bounds"`

	TerrainDigest string `json:"terrain_digest"`
	Digest        string `json:"digest"`

	Rocks [][2]int `json:"rocks"`
	Sand  [][2]int `json:"sand"`
}

type BoundsV1 struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

func boundsV1(b grid.Bounds) BoundsV1 {
	return BoundsV1{Left: b.Left, Right: b.Right, Top: b.Top, Bottom: b.Bottom}
}

func pairs(cs []grid.Coord) [][2]int {
	out := make([][2]int, 0, len(cs))
	for _, c := range cs {
		out = append(out, [2]int{c.X, c.Y})
	}
	return out
}

// Capture builds a snapshot of g. terrainDigest identifies the grid the run
// started from.
func Capture(runID string, mode grid.FloorMode, source grid.Coord, grains int, outcome string, terrainDigest string, g *grid.Grid) SnapshotV1 {
	return SnapshotV1{
		Header: Header{
			Version: Version,
			RunID:   runID,
			Mode:    mode.String(),
			Grains:  grains,
		},
		Source:        [2]int{source.X, source.Y},
		Outcome:       outcome,
		Bounds:        boundsV1(g.Bounds()),
		TerrainBounds: boundsV1(g.TerrainBounds()),
		TerrainDigest: terrainDigest,
		Digest:        g.Digest(),
		Rocks:         pairs(g.CellsOf(grid.Rock)),
		Sand:          pairs(g.CellsOf(grid.Sand)),
	}
}

// Grid rebuilds the full final grid, rocks first.
func (s SnapshotV1) Grid() *grid.Grid {
	g := s.TerrainGrid()
	for _, p := range s.Sand {
		g.Insert(grid.Coord{X: p[0], Y: p[1]}, grid.Sand)
	}
	return g
}

// TerrainGrid rebuilds the grid the run started from.
func (s SnapshotV1) TerrainGrid() *grid.Grid {
	g := grid.New()
	for _, p := range s.Rocks {
		g.Insert(grid.Coord{X: p[0], Y: p[1]}, grid.Rock)
	}
	return g
}

func (s SnapshotV1) SourceCoord() grid.Coord { return grid.Coord{X: s.Source[0], Y: s.Source[1]} }

func (s SnapshotV1) FloorMode() (grid.FloorMode, error) { return grid.ParseFloorMode(s.Header.Mode) }

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeSnapshot(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// writeSnapshot encodes snap to w. Every buffered layer is flushed and its
// error returned, so a nil result means the whole snapshot reached w.
func writeSnapshot(w io.Writer, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is duplicated inside the gob body.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader reads only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
