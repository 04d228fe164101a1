package grid

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	g := New()
	for x := 499; x <= 501; x++ {
		g.Insert(Coord{X: x, Y: 3}, Rock)
	}
	g.InsertBlocked(Coord{X: 500, Y: 2})
	src := Coord{X: 500, Y: 0}

	var sb strings.Builder
	if err := Render(&sb, g, src, Bounded); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := ".+.\n...\n.o.\n###\n"
	if sb.String() != want {
		t.Fatalf("bounded:\n%s\nwant:\n%s", sb.String(), want)
	}

	sb.Reset()
	if err := Render(&sb, g, src, Floored); err != nil {
		t.Fatalf("render: %v", err)
	}
	want = ".+.\n...\n.o.\n###\n...\n###\n"
	if sb.String() != want {
		t.Fatalf("floored:\n%s\nwant:\n%s", sb.String(), want)
	}

	// A plugged source shows the grain, not the marker.
	g.InsertBlocked(src)
	sb.Reset()
	_ = Render(&sb, g, src, Bounded)
	if !strings.HasPrefix(sb.String(), ".o.\n") {
		t.Fatalf("plugged source:\n%s", sb.String())
	}
}

func TestRender_EmptyGridShowsSource(t *testing.T) {
	var sb strings.Builder
	if err := Render(&sb, New(), Coord{X: 1, Y: 1}, Floored); err != nil {
		t.Fatalf("render: %v", err)
	}
	if sb.String() != "+\n" {
		t.Fatalf("got %q", sb.String())
	}
}
