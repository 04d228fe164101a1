package grid

import (
	"fmt"
	"strings"
)

// FloorMode selects how cells outside the stored set are classified.
type FloorMode uint8

const (
	// Bounded has no floor: grains leaving the terrain extent fall forever.
	Bounded FloorMode = iota
	// Floored adds an infinite floor two rows below the lowest terrain row.
	Floored
)

func (m FloorMode) String() string {
	switch m {
	case Bounded:
		return "bounded"
	case Floored:
		return "floored"
	default:
		return fmt.Sprintf("FloorMode(%d)", uint8(m))
	}
}

func ParseFloorMode(s string) (FloorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bounded", "void", "abyss":
		return Bounded, nil
	case "floored", "floor":
		return Floored, nil
	default:
		return Bounded, fmt.Errorf("unknown floor mode %q", s)
	}
}

func (m *FloorMode) UnmarshalText(b []byte) error {
	v, err := ParseFloorMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
