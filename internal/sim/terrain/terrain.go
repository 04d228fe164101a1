// Package terrain reads polyline rock descriptions into an occupancy grid.
//
// Each non-blank line is one path: "x,y -> x,y -> ...". Consecutive points
// must share a row or a column; every cell on the segment becomes rock.
package terrain

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sandfall.io/internal/sim/grid"
)

const Separator = "->"

// Path is one polyline in input order.
type Path []grid.Coord

// FormatError reports malformed terrain input.
type FormatError struct {
	Line   int
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("terrain: line %d: %s: %q", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("terrain: %s: %q", e.Reason, e.Text)
}

func Parse(r io.Reader) ([]Path, error) {
	var out []Path
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p, err := parsePath(text)
		if err != nil {
			if fe, ok := err.(*FormatError); ok {
				fe.Line = line
			}
			return nil, err
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func ParseString(s string) ([]Path, error) { return Parse(strings.NewReader(s)) }

func parsePath(text string) (Path, error) {
	parts := strings.Split(text, Separator)
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		c, err := parsePoint(part)
		if err != nil {
			return nil, err
		}
		if n := len(p); n > 0 {
			prev := p[n-1]
			if prev.X != c.X && prev.Y != c.Y {
				return nil, &FormatError{Text: text, Reason: fmt.Sprintf("diagonal segment %v -> %v", prev, c)}
			}
		}
		p = append(p, c)
	}
	return p, nil
}

func parsePoint(s string) (grid.Coord, error) {
	s = strings.TrimSpace(s)
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return grid.Coord{}, &FormatError{Text: s, Reason: "expected x,y"}
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return grid.Coord{}, &FormatError{Text: s, Reason: "bad x coordinate"}
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return grid.Coord{}, &FormatError{Text: s, Reason: "bad y coordinate"}
	}
	return grid.Coord{X: x, Y: y}, nil
}

// Cells expands p into every cell it covers, endpoints included.
func (p Path) Cells() []grid.Coord {
	if len(p) == 1 {
		return []grid.Coord{p[0]}
	}
	var out []grid.Coord
	for i := 1; i < len(p); i++ {
		a, b := p[i-1], p[i]
		dx, dy := sign(b.X-a.X), sign(b.Y-a.Y)
		for cur := a; ; cur = (grid.Coord{X: cur.X + dx, Y: cur.Y + dy}) {
			out = append(out, cur)
			if cur == b {
				break
			}
		}
	}
	return out
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// Build inserts every path as rock into a fresh grid.
func Build(paths []Path) *grid.Grid {
	g := grid.New()
	for _, p := range paths {
		for _, c := range p.Cells() {
			g.Insert(c, grid.Rock)
		}
	}
	return g
}

func Load(path string) ([]Path, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// LoadGrid is Load followed by Build.
func LoadGrid(path string) (*grid.Grid, error) {
	paths, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Build(paths), nil
}

// Format writes paths back in the input syntax.
func Format(w io.Writer, paths []Path) error {
	bw := bufio.NewWriter(w)
	for _, p := range paths {
		for i, c := range p {
			if i > 0 {
				if _, err := bw.WriteString(" " + Separator + " "); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(c.String()); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
