// Package demo generates synthetic markers for local runs. It sits behind the
// Source interface so nothing else depends on randomness.
package demo

import (
	"math"
	"math/rand"

	"donut-map/internal/donut"

	"github.com/paulmach/orb"
)

// Seed is one generated marker.
type Seed struct {
	Position orb.Point
	Stats    donut.StatSet
}

// Source produces marker seeds.
type Source interface {
	Generate(n int) []Seed
}

// Spread is the width, in degrees, of the box markers are scattered in.
const Spread = 0.05

// statRange is an integer value drawn from [Min, Min+Span).
type statRange struct {
	Category string
	Min      float64
	Span     float64
}

var demoStats = []statRange{
	{Category: "population", Min: 500, Span: 2000},
	{Category: "revenue", Min: 200, Span: 1000},
	{Category: "growth", Min: 100, Span: 800},
}

// RandomSource scatters markers around a base point with random
// population/revenue/growth stats. It is not safe for concurrent use.
type RandomSource struct {
	base orb.Point
	rnd  *rand.Rand
}

// NewRandomSource returns a source around base. The same seed always yields
// the same markers.
func NewRandomSource(base orb.Point, seed int64) *RandomSource {
	return &RandomSource{base: base, rnd: rand.New(rand.NewSource(seed))}
}

// Generate implements Source.
func (s *RandomSource) Generate(n int) []Seed {
	if n <= 0 {
		return nil
	}
	out := make([]Seed, 0, n)
	for i := 0; i < n; i++ {
		latOffset := (s.rnd.Float64() - 0.5) * Spread
		lngOffset := (s.rnd.Float64() - 0.5) * Spread

		stats := make(donut.StatSet, 0, len(demoStats))
		for _, r := range demoStats {
			stats = append(stats, donut.Stat{
				Category: r.Category,
				Value:    math.Floor(s.rnd.Float64()*r.Span + r.Min),
			})
		}

		out = append(out, Seed{
			Position: orb.Point{s.base.Lon() + lngOffset, s.base.Lat() + latOffset},
			Stats:    stats,
		})
	}
	return out
}

