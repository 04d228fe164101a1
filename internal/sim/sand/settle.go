package sand

import "sandfall.io/internal/sim/grid"

// DefaultSource is where grains enter unless configured otherwise.
var DefaultSource = grid.Coord{X: 500, Y: 0}

type OutcomeKind uint8

const (
	Rested OutcomeKind = iota + 1
	FellForever
)

func (k OutcomeKind) String() string {
	switch k {
	case Rested:
		return "RESTED"
	case FellForever:
		return "FELL_FOREVER"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the result of settling one grain. At is only meaningful when
// Kind is Rested.
type Outcome struct {
	Kind OutcomeKind
	At   grid.Coord
}

func (o Outcome) Rested() bool { return o.Kind == Rested }

// Settle drops one grain from source and follows it until it rests or leaves
// the map. The grid is not modified; the caller inserts a rested grain.
func Settle(g *grid.Grid, source grid.Coord, mode grid.FloorMode) (Outcome, error) {
	if err := checkSource(g, source, mode); err != nil {
		err.Op = "settle"
		return Outcome{}, err
	}
	cur := source
	for {
		next, st := step(g, cur, mode)
		switch st {
		case grid.OutOfBounds:
			return Outcome{Kind: FellForever}, nil
		case grid.Blocked:
			return Outcome{Kind: Rested, At: cur}, nil
		}
		cur = next
	}
}

// checkSource rejects inputs on which settling would not terminate.
func checkSource(g *grid.Grid, source grid.Coord, mode grid.FloorMode) *DomainError {
	if g == nil || g.TerrainLen() == 0 {
		return &DomainError{Err: ErrNoTerrain}
	}
	if mode == grid.Floored && source.Y >= g.FloorY() {
		return &DomainError{Err: ErrSourceBelowFloor}
	}
	return nil
}

// step picks the first non-blocked candidate in priority order: down,
// down-left, down-right. It returns Blocked when all three are blocked.
func step(g *grid.Grid, cur grid.Coord, mode grid.FloorMode) (grid.Coord, grid.State) {
	for _, c := range [3]grid.Coord{cur.Down(), cur.DownLeft(), cur.DownRight()} {
		switch st := g.StateAt(c, mode); st {
		case grid.Empty, grid.OutOfBounds:
			return c, st
		}
	}
	return cur, grid.Blocked
}
