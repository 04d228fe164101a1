package observer

import (
	"sort"
	"sync"

	"sandfall.io/internal/observerproto"
	"sandfall.io/internal/sim/encoding"
	"sandfall.io/internal/sim/grid"
	"sandfall.io/internal/sim/sand"
)

// Recording is the immutable history of one finished run.
type Recording struct {
	Info   observerproto.RunInfo
	Rocks  [][2]int
	Raster *observerproto.Raster
	Grains []observerproto.GrainMsg
}

// Recorder collects grains while a run is in progress. Hook OnGrain into
// sand.WithGrainFunc and call Finish once the run is over.
type Recorder struct {
	runID  string
	grains []observerproto.GrainMsg
}

func NewRecorder(runID string) *Recorder {
	return &Recorder{runID: runID}
}

func (r *Recorder) OnGrain(seq int, o sand.Outcome) {
	r.grains = append(r.grains, observerproto.GrainMsg{
		Type:            observerproto.TypeGrain,
		ProtocolVersion: observerproto.Version,
		RunID:           r.runID,
		Seq:             seq,
		Outcome:         o.Kind.String(),
		Pos:             [2]int{o.At.X, o.At.Y},
	})
}

func (r *Recorder) Finish(res sand.Result, g *grid.Grid) *Recording {
	info := observerproto.RunInfo{
		RunID:         r.runID,
		Mode:          res.Mode.String(),
		Source:        [2]int{res.Source.X, res.Source.Y},
		Grains:        res.Grains,
		Outcome:       res.Last.Kind.String(),
		TerrainBounds: protoBounds(g.TerrainBounds()),
		Bounds:        protoBounds(g.Bounds()),
		Digest:        res.Digest,
	}
	if res.Mode == grid.Floored {
		fy := g.FloorY()
		info.FloorY = &fy
	}
	rocks := g.CellsOf(grid.Rock)
	out := &Recording{
		Info:   info,
		Rocks:  make([][2]int, 0, len(rocks)),
		Grains: r.grains,
	}
	for _, c := range rocks {
		out.Rocks = append(out.Rocks, [2]int{c.X, c.Y})
	}
	if len(rocks) > 0 {
		out.Raster = terrainRaster(g)
	}
	return out
}

// terrainRaster encodes the rocks inside the terrain bounds; settled sand
// reads as empty.
func terrainRaster(g *grid.Grid) *observerproto.Raster {
	tb := g.TerrainBounds()
	cells := encoding.Raster(g, tb)
	for i, k := range cells {
		if k != grid.Rock {
			cells[i] = 0
		}
	}
	return &observerproto.Raster{
		Bounds:   protoBounds(tb),
		Encoding: observerproto.RasterRLE,
		Data:     encoding.EncodeRLE(cells),
	}
}

func protoBounds(b grid.Bounds) observerproto.Bounds {
	return observerproto.Bounds{Left: b.Left, Right: b.Right, Top: b.Top, Bottom: b.Bottom}
}

// RunSource is what the server reads runs from.
type RunSource interface {
	Runs() []observerproto.RunInfo
	Run(id string) (*Recording, bool)
}

// Registry is an in-memory RunSource.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Recording
	seq  map[string]int
	next int
}

func NewRegistry() *Registry {
	return &Registry{runs: map[string]*Recording{}, seq: map[string]int{}}
}

func (r *Registry) Add(rec *Recording) {
	if rec == nil || rec.Info.RunID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[rec.Info.RunID]; !ok {
		r.seq[rec.Info.RunID] = r.next
		r.next++
	}
	r.runs[rec.Info.RunID] = rec
}

// Runs lists runs in the order they were added.
func (r *Registry) Runs() []observerproto.RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]observerproto.RunInfo, 0, len(r.runs))
	for _, rec := range r.runs {
		out = append(out, rec.Info)
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].RunID] < r.seq[out[j].RunID] })
	return out
}

func (r *Registry) Run(id string) (*Recording, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.runs[id]
	return rec, ok
}
