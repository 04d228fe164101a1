package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"sandfall.io/internal/sim/grid"
)

// Raster returns the cells inside b in row-major order, top row first. Empty
// positions are the zero Cell.
func Raster(g *grid.Grid, b grid.Bounds) []grid.Cell {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return nil
	}
	out := make([]grid.Cell, 0, w*h)
	for y := b.Top; y <= b.Bottom; y++ {
		for x := b.Left; x <= b.Right; x++ {
			k, _ := g.CellAt(grid.Coord{X: x, Y: y})
			out = append(out, k)
		}
	}
	return out
}

// EncodeRLE encodes a sequence of cell kinds into base64(varint pairs).
// The pairs are (kind, run_len) repeated.
func EncodeRLE(cells []grid.Cell) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cells) {
		k := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == k && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(k))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]grid.Cell, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []grid.Cell
	for i := 0; i < len(raw); {
		k, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if k > uint64(grid.Sand) {
			return nil, fmt.Errorf("unknown cell kind: %d", k)
		}
		for r := uint64(0); r < run; r++ {
			out = append(out, grid.Cell(k))
		}
	}
	return out, nil
}
