// Package donut lays out multi-category statistics as ring segments and renders
// them as SVG icons whose size follows the map zoom.
package donut

import "math"

// ArcDescriptor is one category's segment of the ring. Angles are radians,
// measured clockwise from the positive x axis in screen space.
type ArcDescriptor struct {
	Category   string  `json:"category"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
	Color      string  `json:"color"`
}

// Sweep returns the angular extent of the arc.
func (a ArcDescriptor) Sweep() float64 {
	return a.EndAngle - a.StartAngle
}

// LargeArc reports whether the arc must be drawn the long way round.
func (a ArcDescriptor) LargeArc() bool {
	return a.Sweep() > math.Pi
}

// ComputeArcs lays out stats as contiguous arcs whose sweeps are proportional
// to each value's share of the total. Every boundary is derived from a single
// running cumulative value, so arc i ends exactly where arc i+1 starts and the
// last arc ends at 2π. Zero values produce zero-sweep arcs rather than being
// dropped. colors may be nil, in which case DefaultColors is used.
func ComputeArcs(stats StatSet, colors *ColorTable) ([]ArcDescriptor, error) {
	if err := stats.Validate(); err != nil {
		return nil, err
	}
	if colors == nil {
		colors = DefaultColors
	}

	total := stats.Total()
	arcs := make([]ArcDescriptor, 0, len(stats))
	cumulative := 0.0
	for _, st := range stats {
		start := cumulative / total * 2 * math.Pi
		cumulative += st.Value
		end := cumulative / total * 2 * math.Pi
		arcs = append(arcs, ArcDescriptor{
			Category:   st.Category,
			StartAngle: start,
			EndAngle:   end,
			Color:      colors.Lookup(st.Category),
		})
	}
	return arcs, nil
}
