package terminal

import (
	"fmt"
	"math"
)

// Smallest geometry ever applied to a slave.
const (
	MinCols = 20
	MinRows = 8
)

// Geometry is a terminal size in character cells.
type Geometry struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Clamp bounds the geometry to [MinCols, MaxUint16] x [MinRows, MaxUint16].
func (g Geometry) Clamp() Geometry {
	return Geometry{
		Cols: clamp(g.Cols, MinCols),
		Rows: clamp(g.Rows, MinRows),
	}
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Cols, g.Rows)
}

func clamp(v, lo int) int {
	if v < lo {
		return lo
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return v
}
