package sand

import "sandfall.io/internal/sim/grid"

// rockPath inserts the straight segments joining pts as Rock cells.
func rockPath(g *grid.Grid, pts ...grid.Coord) {
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		for x := min(a.X, b.X); x <= max(a.X, b.X); x++ {
			for y := min(a.Y, b.Y); y <= max(a.Y, b.Y); y++ {
				g.Insert(grid.Coord{X: x, Y: y}, grid.Rock)
			}
		}
	}
	if len(pts) == 1 {
		g.Insert(pts[0], grid.Rock)
	}
}

func c(x, y int) grid.Coord { return grid.Coord{X: x, Y: y} }

// lineGrid is a single rock line on row 9, columns 494..503.
func lineGrid() *grid.Grid {
	g := grid.New()
	rockPath(g, c(494, 9), c(503, 9))
	return g
}

// classicGrid is the two-path cave used throughout the tests.
func classicGrid() *grid.Grid {
	g := grid.New()
	rockPath(g, c(498, 4), c(498, 6), c(496, 6))
	rockPath(g, c(503, 4), c(502, 4), c(502, 9), c(494, 9))
	return g
}
