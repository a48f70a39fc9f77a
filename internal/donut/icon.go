package donut

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"

	svg "github.com/ajstarks/svgo"
)

// Defaults for Config.
const (
	DefaultBaseRadiusPx      = 18.0
	DefaultStrokeThicknessPx = 8.0
	DefaultMinRadiusPx       = 8.0
	DefaultReferenceZoom     = 10.0
)

// fullCircleEpsilon is how close a sweep must be to 2π to be drawn as a full ring.
const fullCircleEpsilon = 1e-9

// Config controls how an icon scales with zoom.
type Config struct {
	// BaseRadiusPx is the outer radius at ReferenceZoom.
	BaseRadiusPx float64
	// StrokeThicknessPx is the ring thickness.
	StrokeThicknessPx float64
	// MinRadiusPx is the floor applied at low zoom. It cannot be disabled:
	// non-positive values take DefaultMinRadiusPx.
	MinRadiusPx float64
	// ReferenceZoom is the zoom level at which the radius equals BaseRadiusPx.
	ReferenceZoom float64
}

// DefaultConfig returns the stock icon configuration.
func DefaultConfig() Config {
	return Config{
		BaseRadiusPx:      DefaultBaseRadiusPx,
		StrokeThicknessPx: DefaultStrokeThicknessPx,
		MinRadiusPx:       DefaultMinRadiusPx,
		ReferenceZoom:     DefaultReferenceZoom,
	}
}

// Validate reports a ring that would not fit: the stroke must not be wider
// than the radius floor.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.StrokeThicknessPx > c.MinRadiusPx {
		return fmt.Errorf("icon config: stroke %vpx exceeds min radius %vpx", c.StrokeThicknessPx, c.MinRadiusPx)
	}
	return nil
}

// withDefaults replaces non-positive fields with their defaults, so the radius
// floor always applies. A stroke wider than the floor is narrowed to it, which
// keeps the ring radius positive at every zoom.
func (c Config) withDefaults() Config {
	if c.BaseRadiusPx <= 0 {
		c.BaseRadiusPx = DefaultBaseRadiusPx
	}
	if c.StrokeThicknessPx <= 0 {
		c.StrokeThicknessPx = DefaultStrokeThicknessPx
	}
	if c.MinRadiusPx <= 0 {
		c.MinRadiusPx = DefaultMinRadiusPx
	}
	if c.ReferenceZoom <= 0 {
		c.ReferenceZoom = DefaultReferenceZoom
	}
	if c.StrokeThicknessPx > c.MinRadiusPx {
		c.StrokeThicknessPx = c.MinRadiusPx
	}
	return c
}

// ScaledRadius returns max(MinRadiusPx, BaseRadiusPx*zoom/ReferenceZoom).
// There is no upper bound.
func (c Config) ScaledRadius(zoom float64) float64 {
	c = c.withDefaults()
	return math.Max(c.MinRadiusPx, c.BaseRadiusPx*zoom/c.ReferenceZoom)
}

// Point is a pixel offset within an icon.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IconDefinition is a renderable icon: SVG markup, its square size in pixels,
// and the anchor that must sit on the marker's coordinate.
type IconDefinition struct {
	Markup string  `json:"markup"`
	Size   float64 `json:"size"`
	Anchor Point   `json:"anchor"`
}

// BuildIcon renders arcs as a stroked ring sized for zoom.
func BuildIcon(arcs []ArcDescriptor, zoom float64, cfg Config) IconDefinition {
	cfg = cfg.withDefaults()
	radius := cfg.ScaledRadius(zoom)
	size := 2 * radius

	var b bytes.Buffer
	// svgo's Start only takes integer sizes and icon sizes are fractional.
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		f64s(size), f64s(size), f64s(size), f64s(size))

	canvas := svg.New(&b)
	r := radius - cfg.StrokeThicknessPx/2
	for _, a := range arcs {
		canvas.Path(arcPath(radius, radius, r, a),
			`stroke="`+a.Color+`"`,
			`stroke-width="`+f64s(cfg.StrokeThicknessPx)+`"`,
			`fill="none"`,
			`data-category="`+html.EscapeString(a.Category)+`"`,
		)
	}
	canvas.End()

	return IconDefinition{
		Markup: b.String(),
		Size:   size,
		Anchor: Point{X: size / 2, Y: size / 2},
	}
}

// arcPath returns the SVG path data for a on a circle of radius r centered at (cx, cy).
func arcPath(cx, cy, r float64, a ArcDescriptor) string {
	x1, y1 := polarToCartesian(cx, cy, r, a.StartAngle)
	x2, y2 := polarToCartesian(cx, cy, r, a.EndAngle)

	// An SVG arc whose endpoints coincide draws nothing, so a full ring is
	// split into two half arcs within one path.
	if a.Sweep() >= 2*math.Pi-fullCircleEpsilon {
		mx, my := polarToCartesian(cx, cy, r, a.StartAngle+math.Pi)
		return fmt.Sprintf("M %s %s A %s %s 0 0 1 %s %s A %s %s 0 0 1 %s %s",
			f64s(x1), f64s(y1),
			f64s(r), f64s(r), f64s(mx), f64s(my),
			f64s(r), f64s(r), f64s(x1), f64s(y1))
	}

	large := 0
	if a.LargeArc() {
		large = 1
	}
	return fmt.Sprintf("M %s %s A %s %s 0 %d 1 %s %s",
		f64s(x1), f64s(y1), f64s(r), f64s(r), large, f64s(x2), f64s(y2))
}

func polarToCartesian(cx, cy, r, angle float64) (x, y float64) {
	return cx + r*math.Cos(angle), cy + r*math.Sin(angle)
}

// f64s formats v with at most four decimals.
func f64s(v float64) string {
	v = math.Round(v*1e4) / 1e4
	if v == 0 {
		v = 0 // drop negative zero
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
