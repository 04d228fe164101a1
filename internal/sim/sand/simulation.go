package sand

import (
	"time"

	"sandfall.io/internal/sim/grid"
)

type State uint8

const (
	Running State = iota
	Done
)

func (s State) String() string {
	if s == Done {
		return "DONE"
	}
	return "RUNNING"
}

// GrainFunc observes every dropped grain. seq starts at 1 and counts drops,
// including the final grain of a bounded run that fell forever.
type GrainFunc func(seq int, o Outcome)

type Option func(*Simulation)

// WithMaxGrains stops the run with ErrGrainLimit once n grains rested without
// reaching a terminal state. Zero disables the limit.
func WithMaxGrains(n int) Option {
	return func(s *Simulation) { s.maxGrains = n }
}

func WithGrainFunc(fn GrainFunc) Option {
	return func(s *Simulation) { s.onGrain = fn }
}

// Simulation owns a grid for one run and drops grains into it one at a time.
//
// Bounded runs end when a grain falls forever; that grain is not counted.
// Floored runs end when a grain rests on the source; that grain is counted.
// A bounded run whose source gets plugged ends the same way.
type Simulation struct {
	g      *grid.Grid
	source grid.Coord
	mode   grid.FloorMode

	state  State
	grains int
	drops  int
	last   Outcome

	maxGrains int
	onGrain   GrainFunc
}

func New(g *grid.Grid, source grid.Coord, mode grid.FloorMode, opts ...Option) (*Simulation, error) {
	if err := checkSource(g, source, mode); err != nil {
		err.Op = "new simulation"
		return nil, err
	}
	s := &Simulation{g: g, source: source, mode: mode}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Simulation) Grid() *grid.Grid     { return s.g }
func (s *Simulation) Source() grid.Coord   { return s.source }
func (s *Simulation) Mode() grid.FloorMode { return s.mode }
func (s *Simulation) State() State         { return s.state }
func (s *Simulation) Grains() int          { return s.grains }
func (s *Simulation) LastOutcome() Outcome { return s.last }

// Step drops a single grain. It is a no-op once the simulation is Done.
func (s *Simulation) Step() (Outcome, error) {
	if s.state == Done {
		return s.last, nil
	}
	if s.maxGrains > 0 && s.grains >= s.maxGrains {
		return s.last, &DomainError{Op: "step", Err: ErrGrainLimit}
	}
	o, err := Settle(s.g, s.source, s.mode)
	if err != nil {
		return Outcome{}, err
	}
	s.drops++
	s.last = o
	switch o.Kind {
	case FellForever:
		s.state = Done
	case Rested:
		s.g.InsertBlocked(o.At)
		s.grains++
		if o.At == s.source {
			s.state = Done
		}
	}
	if s.onGrain != nil {
		s.onGrain(s.drops, o)
	}
	return o, nil
}

// Run steps until Done.
func (s *Simulation) Run() (int, error) {
	for s.state == Running {
		if _, err := s.Step(); err != nil {
			return s.grains, err
		}
	}
	return s.grains, nil
}

// Result summarises a finished run.
type Result struct {
	Mode     grid.FloorMode
	Source   grid.Coord
	Grains   int
	Last     Outcome
	Bounds   grid.Bounds
	Digest   string
	Duration time.Duration
}

// Run builds a Simulation over g and runs it to completion.
func Run(g *grid.Grid, source grid.Coord, mode grid.FloorMode, opts ...Option) (Result, error) {
	start := time.Now()
	s, err := New(g, source, mode, opts...)
	if err != nil {
		return Result{}, err
	}
	n, err := s.Run()
	res := Result{
		Mode:     mode,
		Source:   source,
		Grains:   n,
		Last:     s.last,
		Bounds:   g.Bounds(),
		Duration: time.Since(start),
	}
	if err != nil {
		return res, err
	}
	res.Digest = g.Digest()
	return res, nil
}

// RunBounded counts the grains that rest on g before one falls forever.
func RunBounded(g *grid.Grid) (int, error) {
	res, err := Run(g, DefaultSource, grid.Bounded)
	return res.Grains, err
}

// RunFloored counts the grains that rest on g, floor included, until the
// source is blocked.
func RunFloored(g *grid.Grid) (int, error) {
	res, err := Run(g, DefaultSource, grid.Floored)
	return res.Grains, err
}
