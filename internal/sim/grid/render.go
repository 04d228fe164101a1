package grid

import (
	"bufio"
	"io"
)

// Render draws g as text: '#' rock, 'o' sand, '.' empty and '+' for an
// unoccupied source. Floored grids include the floor row.
func Render(w io.Writer, g *Grid, source Coord, mode FloorMode) error {
	b := g.Bounds()
	if g.Len() == 0 {
		b = pointBounds(source)
	}
	b.extend(source)
	floored := mode == Floored && g.TerrainLen() > 0
	if floored && g.FloorY() > b.Bottom {
		b.Bottom = g.FloorY()
	}

	bw := bufio.NewWriter(w)
	for y := b.Top; y <= b.Bottom; y++ {
		for x := b.Left; x <= b.Right; x++ {
			c := Coord{X: x, Y: y}
			ch := byte('.')
			if k, ok := g.CellAt(c); ok {
				ch = k.Glyph()
			} else if c == source {
				ch = '+'
			} else if floored && y == g.FloorY() {
				ch = Rock.Glyph()
			}
			if err := bw.WriteByte(ch); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
