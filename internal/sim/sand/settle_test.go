package sand

import (
	"errors"
	"testing"
	"time"

	"sandfall.io/internal/sim/grid"
)

func TestSettle_NoTerrainIsDomainError(t *testing.T) {
	_, err := Settle(grid.New(), DefaultSource, grid.Bounded)
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if !errors.Is(err, ErrNoTerrain) {
		t.Fatalf("expected ErrNoTerrain, got %v", err)
	}
	if _, err := New(nil, DefaultSource, grid.Floored); !errors.Is(err, ErrNoTerrain) {
		t.Fatalf("New(nil): expected ErrNoTerrain, got %v", err)
	}
}

func TestSettle_FirstGrainRestsOnLine(t *testing.T) {
	g := lineGrid()
	o, err := Settle(g, DefaultSource, grid.Bounded)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if o.Kind != Rested || o.At != c(500, 8) {
		t.Fatalf("got %+v want rested at 500,8", o)
	}
	if g.Len() != 10 {
		t.Fatalf("Settle must not mutate the grid: len=%d", g.Len())
	}
}

func TestSettle_PriorityDownFirst(t *testing.T) {
	// All three candidates stay open until row 5, so any sideways move would
	// land the grain off column 500.
	g := grid.New()
	rockPath(g, c(490, 6), c(510, 6))
	o, err := Settle(g, DefaultSource, grid.Bounded)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if o.At != c(500, 5) {
		t.Fatalf("straight-down priority violated: rested at %v", o.At)
	}
}

func TestSettle_DownLeftBeforeDownRight(t *testing.T) {
	g := grid.New()
	rockPath(g, c(495, 5), c(505, 5))
	g.InsertBlocked(c(500, 4))
	o, err := Settle(g, DefaultSource, grid.Bounded)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if o.At != c(499, 4) {
		t.Fatalf("expected down-left at 499,4, got %v", o.At)
	}
	g.InsertBlocked(c(499, 4))
	o, _ = Settle(g, DefaultSource, grid.Bounded)
	if o.At != c(501, 4) {
		t.Fatalf("expected down-right at 501,4, got %v", o.At)
	}
}

func TestSettle_OutOfBoundsFellForever(t *testing.T) {
	g := grid.New()
	rockPath(g, c(490, 5), c(492, 5))
	o, err := Settle(g, DefaultSource, grid.Bounded)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if o.Kind != FellForever {
		t.Fatalf("expected FellForever, got %+v", o)
	}
}

func TestSettle_FlooredNeverFalls(t *testing.T) {
	g := grid.New()
	rockPath(g, c(490, 5), c(492, 5))
	o, err := Settle(g, DefaultSource, grid.Floored)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if o.Kind != Rested || o.At != c(500, 6) {
		t.Fatalf("expected rest on floor at 500,6, got %+v", o)
	}
}

func TestSettle_BlockedSourceRestsAtSource(t *testing.T) {
	g := grid.New()
	rockPath(g, c(499, 0), c(499, 1), c(501, 1), c(501, 0))
	o, err := Settle(g, DefaultSource, grid.Bounded)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if o.Kind != Rested || o.At != DefaultSource {
		t.Fatalf("expected rest at source, got %+v", o)
	}
}

// settleWithin fails the test instead of hanging if Settle does not return.
func settleWithin(t *testing.T, g *grid.Grid, source grid.Coord, mode grid.FloorMode) (Outcome, error) {
	t.Helper()
	type result struct {
		o   Outcome
		err error
	}
	ch := make(chan result, 1)
	go func() {
		o, err := Settle(g, source, mode)
		ch <- result{o, err}
	}()
	select {
	case r := <-ch:
		return r.o, r.err
	case <-time.After(2 * time.Second):
		t.Fatalf("Settle(%s, %s) did not return", source, mode)
		return Outcome{}, nil
	}
}

func TestSettle_FlooredSourceOnOrBelowFloor(t *testing.T) {
	g := lineGrid() // floor at y=11
	for _, y := range []int{11, 12, 20} {
		_, err := settleWithin(t, g, c(500, y), grid.Floored)
		if !errors.Is(err, ErrSourceBelowFloor) {
			t.Fatalf("source y=%d: expected ErrSourceBelowFloor, got %v", y, err)
		}
		var de *DomainError
		if !errors.As(err, &de) || de.Op != "settle" {
			t.Fatalf("source y=%d: expected settle DomainError, got %v", y, err)
		}
	}
	if _, err := New(g, c(500, 11), grid.Floored, WithMaxGrains(5)); !errors.Is(err, ErrSourceBelowFloor) {
		t.Fatalf("New: expected ErrSourceBelowFloor, got %v", err)
	}
	if _, err := Run(g, c(500, 20), grid.Floored, WithMaxGrains(5)); !errors.Is(err, ErrSourceBelowFloor) {
		t.Fatalf("Run: expected ErrSourceBelowFloor, got %v", err)
	}

	// The row just above the floor is still a valid source: the grain rests there.
	o, err := settleWithin(t, g, c(500, 10), grid.Floored)
	if err != nil || o != (Outcome{Kind: Rested, At: c(500, 10)}) {
		t.Fatalf("source above floor: %+v %v", o, err)
	}
	// Bounded mode has no floor; a deep source simply falls forever.
	o, err = settleWithin(t, g, c(500, 20), grid.Bounded)
	if err != nil || o.Kind != FellForever {
		t.Fatalf("bounded deep source: %+v %v", o, err)
	}
}
