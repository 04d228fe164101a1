package grid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
)

// Coord is a cell position. Y grows downward.
type Coord struct {
	X int
	Y int
}

func (c Coord) String() string { return fmt.Sprintf("%d,%d", c.X, c.Y) }

// Down, DownLeft and DownRight are the three fall candidates of c.
func (c Coord) Down() Coord      { return Coord{X: c.X, Y: c.Y + 1} }
func (c Coord) DownLeft() Coord  { return Coord{X: c.X - 1, Y: c.Y + 1} }
func (c Coord) DownRight() Coord { return Coord{X: c.X + 1, Y: c.Y + 1} }

// Cell is the kind of a stored (non-empty) cell. Both kinds block movement.
type Cell uint8

const (
	Rock Cell = iota + 1
	Sand
)

func (c Cell) Glyph() byte {
	switch c {
	case Rock:
		return '#'
	case Sand:
		return 'o'
	default:
		return '.'
	}
}

// State is the answer of a StateAt query.
type State uint8

const (
	Empty State = iota
	Blocked
	OutOfBounds
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Blocked:
		return "BLOCKED"
	case OutOfBounds:
		return "OUT_OF_BOUNDS"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Bounds is the smallest rectangle covering a set of cells (inclusive).
type Bounds struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

func (b Bounds) Width() int  { return b.Right - b.Left + 1 }
func (b Bounds) Height() int { return b.Bottom - b.Top + 1 }

func (b *Bounds) extend(c Coord) {
	if c.X < b.Left {
		b.Left = c.X
	}
	if c.X > b.Right {
		b.Right = c.X
	}
	if c.Y < b.Top {
		b.Top = c.Y
	}
	if c.Y > b.Bottom {
		b.Bottom = c.Y
	}
}

func pointBounds(c Coord) Bounds {
	return Bounds{Left: c.X, Right: c.X, Top: c.Y, Bottom: c.Y}
}

// Grid is a sparse occupancy map. Only blocked cells are stored and cells are
// never removed, so both extents only ever grow.
type Grid struct {
	cells map[Coord]Cell

	bounds  Bounds // all cells
	terrain Bounds // Rock cells only
	rocks   int
}

func New() *Grid {
	return &Grid{cells: map[Coord]Cell{}}
}

// Insert stores c with the given kind. An already blocked cell keeps its
// original kind.
func (g *Grid) Insert(c Coord, kind Cell) {
	if _, ok := g.cells[c]; ok {
		return
	}
	if kind != Rock && kind != Sand {
		kind = Rock
	}
	if len(g.cells) == 0 {
		g.bounds = pointBounds(c)
	} else {
		g.bounds.extend(c)
	}
	if kind == Rock {
		if g.rocks == 0 {
			g.terrain = pointBounds(c)
		} else {
			g.terrain.extend(c)
		}
		g.rocks++
	}
	g.cells[c] = kind
}

// InsertBlocked marks c as a settled grain.
func (g *Grid) InsertBlocked(c Coord) { g.Insert(c, Sand) }

func (g *Grid) Len() int { return len(g.cells) }

// TerrainLen is the number of Rock cells.
func (g *Grid) TerrainLen() int { return g.rocks }

func (g *Grid) Empty() bool { return len(g.cells) == 0 }

func (g *Grid) Has(c Coord) bool {
	_, ok := g.cells[c]
	return ok
}

func (g *Grid) CellAt(c Coord) (Cell, bool) {
	k, ok := g.cells[c]
	return k, ok
}

// Bounds covers every stored cell. The zero Bounds is returned for an empty grid.
func (g *Grid) Bounds() Bounds { return g.bounds }

// TerrainBounds covers Rock cells only.
func (g *Grid) TerrainBounds() Bounds { return g.terrain }

// FloorY is the row of the implicit floor used by Floored mode.
func (g *Grid) FloorY() int { return g.terrain.Bottom + 2 }

// StateAt classifies c under the given floor mode.
//
// Bounded: anything below the lowest blocked row or outside the lateral extent
// is OutOfBounds. Floored: the row two below the lowest terrain row is solid and
// everything else not stored is Empty.
func (g *Grid) StateAt(c Coord, mode FloorMode) State {
	if _, ok := g.cells[c]; ok {
		return Blocked
	}
	switch mode {
	case Floored:
		if c.Y == g.FloorY() {
			return Blocked
		}
		return Empty
	default:
		b := g.bounds
		if c.Y > b.Bottom || c.X < b.Left || c.X > b.Right {
			return OutOfBounds
		}
		return Empty
	}
}

// Cells returns stored cells sorted by row, then column.
func (g *Grid) Cells() []Coord {
	out := make([]Coord, 0, len(g.cells))
	for c := range g.cells {
		out = append(out, c)
	}
	SortCoords(out)
	return out
}

// CellsOf returns stored cells of one kind, sorted like Cells.
func (g *Grid) CellsOf(kind Cell) []Coord {
	out := make([]Coord, 0)
	for c, k := range g.cells {
		if k == kind {
			out = append(out, c)
		}
	}
	SortCoords(out)
	return out
}

func (g *Grid) Clone() *Grid {
	out := &Grid{
		cells:   make(map[Coord]Cell, len(g.cells)),
		bounds:  g.bounds,
		terrain: g.terrain,
		rocks:   g.rocks,
	}
	for c, k := range g.cells {
		out.cells[c] = k
	}
	return out
}

// Digest is a stable sha256 over the sorted cells and their kinds.
func (g *Grid) Digest() string {
	h := sha256.New()
	var tmp [17]byte
	for _, c := range g.Cells() {
		binary.LittleEndian.PutUint64(tmp[0:8], uint64(int64(c.X)))
		binary.LittleEndian.PutUint64(tmp[8:16], uint64(int64(c.Y)))
		tmp[16] = byte(g.cells[c])
		h.Write(tmp[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func SortCoords(cs []Coord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Y != cs[j].Y {
			return cs[i].Y < cs[j].Y
		}
		return cs[i].X < cs[j].X
	})
}
