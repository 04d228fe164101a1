package sand

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTerrain is returned when settling is attempted on a grid without any
	// terrain, where bounds are undefined.
	ErrNoTerrain = errors.New("grid has no terrain")

	// ErrSourceBelowFloor is returned for a Floored run whose source sits on or
	// under the floor row, where a grain could never come to rest.
	ErrSourceBelowFloor = errors.New("source is not above the floor")

	// ErrGrainLimit is returned when a run exceeds its configured grain budget.
	ErrGrainLimit = errors.New("grain limit reached")
)

// DomainError reports a violated simulation precondition. It wraps one of the
// sentinel errors above.
type DomainError struct {
	Op  string
	Err error
}

func (e *DomainError) Error() string { return fmt.Sprintf("sand: %s: %v", e.Op, e.Err) }
func (e *DomainError) Unwrap() error { return e.Err }
