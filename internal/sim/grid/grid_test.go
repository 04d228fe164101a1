package grid

import "testing"

func TestInsert_BoundsTrackInsertions(t *testing.T) {
	g := New()
	if !g.Empty() {
		t.Fatalf("new grid should be empty")
	}
	g.Insert(Coord{X: 500, Y: 9}, Rock)
	if got, want := g.Bounds(), (Bounds{Left: 500, Right: 500, Top: 9, Bottom: 9}); got != want {
		t.Fatalf("bounds after first insert: got %+v want %+v", got, want)
	}
	g.Insert(Coord{X: 494, Y: 4}, Rock)
	g.Insert(Coord{X: 503, Y: 12}, Rock)
	want := Bounds{Left: 494, Right: 503, Top: 4, Bottom: 12}
	if got := g.Bounds(); got != want {
		t.Fatalf("bounds: got %+v want %+v", got, want)
	}
	if got := g.TerrainBounds(); got != want {
		t.Fatalf("terrain bounds: got %+v want %+v", got, want)
	}
}

func TestInsert_Idempotent(t *testing.T) {
	g := New()
	c := Coord{X: 1, Y: 2}
	g.Insert(c, Rock)
	g.InsertBlocked(c)
	g.InsertBlocked(c)
	if g.Len() != 1 {
		t.Fatalf("len: got %d want 1", g.Len())
	}
	if k, _ := g.CellAt(c); k != Rock {
		t.Fatalf("kind should not be overwritten: got %v", k)
	}
	if g.TerrainLen() != 1 {
		t.Fatalf("terrain len: got %d want 1", g.TerrainLen())
	}
}

func TestInsert_SandDoesNotMoveTerrainBounds(t *testing.T) {
	g := New()
	g.Insert(Coord{X: 10, Y: 5}, Rock)
	g.InsertBlocked(Coord{X: 2, Y: 6})
	if got := g.TerrainBounds(); got != (Bounds{Left: 10, Right: 10, Top: 5, Bottom: 5}) {
		t.Fatalf("terrain bounds moved: %+v", got)
	}
	if got := g.Bounds(); got != (Bounds{Left: 2, Right: 10, Top: 5, Bottom: 6}) {
		t.Fatalf("bounds: %+v", got)
	}
	if g.FloorY() != 7 {
		t.Fatalf("floor: got %d want 7", g.FloorY())
	}
}

func TestStateAt_Bounded(t *testing.T) {
	g := New()
	for x := 494; x <= 503; x++ {
		g.Insert(Coord{X: x, Y: 9}, Rock)
	}
	cases := []struct {
		c    Coord
		want State
	}{
		{Coord{X: 500, Y: 9}, Blocked},
		{Coord{X: 500, Y: 8}, Empty},
		{Coord{X: 500, Y: 0}, Empty},
		{Coord{X: 494, Y: 3}, Empty},
		{Coord{X: 503, Y: 3}, Empty},
		{Coord{X: 493, Y: 3}, OutOfBounds},
		{Coord{X: 504, Y: 8}, OutOfBounds},
		{Coord{X: 500, Y: 10}, OutOfBounds},
	}
	for _, tc := range cases {
		if got := g.StateAt(tc.c, Bounded); got != tc.want {
			t.Fatalf("StateAt(%v, bounded): got %v want %v", tc.c, got, tc.want)
		}
	}
}

func TestStateAt_Floored(t *testing.T) {
	g := New()
	for x := 494; x <= 503; x++ {
		g.Insert(Coord{X: x, Y: 9}, Rock)
	}
	cases := []struct {
		c    Coord
		want State
	}{
		{Coord{X: 500, Y: 9}, Blocked},
		{Coord{X: 500, Y: 10}, Empty},
		{Coord{X: 500, Y: 11}, Blocked},
		{Coord{X: -10000, Y: 11}, Blocked},
		{Coord{X: 10000, Y: 5}, Empty},
		{Coord{X: 500, Y: 12}, Empty},
	}
	for _, tc := range cases {
		if got := g.StateAt(tc.c, Floored); got != tc.want {
			t.Fatalf("StateAt(%v, floored): got %v want %v", tc.c, got, tc.want)
		}
	}
}

func TestCells_SortedAndDigestStable(t *testing.T) {
	a := New()
	b := New()
	pts := []Coord{{X: 3, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 0}}
	for _, p := range pts {
		a.Insert(p, Rock)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		b.Insert(pts[i], Rock)
	}
	got := a.Cells()
	want := []Coord{{X: 2, Y: 0}, {X: 1, Y: 1}, {X: 3, Y: 1}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cells[%d]: got %v want %v", i, got[i], want[i])
		}
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digest depends on insertion order")
	}
	b.InsertBlocked(Coord{X: 9, Y: 9})
	if a.Digest() == b.Digest() {
		t.Fatalf("digest should change after insert")
	}
}

func TestClone_Independent(t *testing.T) {
	g := New()
	g.Insert(Coord{X: 0, Y: 0}, Rock)
	c := g.Clone()
	c.InsertBlocked(Coord{X: 1, Y: 1})
	if g.Len() != 1 || c.Len() != 2 {
		t.Fatalf("clone shares storage: g=%d c=%d", g.Len(), c.Len())
	}
	if g.Bounds() == c.Bounds() {
		t.Fatalf("clone bounds should diverge")
	}
}

func TestParseFloorMode(t *testing.T) {
	for in, want := range map[string]FloorMode{"bounded": Bounded, "FLOORED": Floored, " floor ": Floored} {
		got, err := ParseFloorMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFloorMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFloorMode("sideways"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
