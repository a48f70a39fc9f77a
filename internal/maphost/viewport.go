// Package maphost is the in-process map host the marker service places icons on.
// A Viewport owns the zoom level, notifies subscribers after each zoom change,
// and holds the icons currently displayed at their coordinates.
package maphost

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"donut-map/internal/donut"

	"github.com/paulmach/orb"
)

// Defaults for Options.
const (
	DefaultZoom            = 12
	DefaultMinZoom         = 0
	DefaultMaxZoom         = 20
	DefaultTileURLTemplate = "https://mts1.google.com/vt/lyrs=m&x={x}&y={y}&z={z}&key={key}"
	DefaultAttribution     = `&copy; <a href="https://maps.google.com/">Google Maps</a>`
)

var (
	// ErrInvalidZoom is returned for non-finite zoom levels or inverted zoom ranges.
	ErrInvalidZoom = errors.New("invalid zoom")

	// ErrInvalidPosition is returned for coordinates outside lat [-90,90], lng [-180,180].
	ErrInvalidPosition = errors.New("invalid position")
)

// Options configures a Viewport. The tile API key is injected here and is
// only ever used to build TileURL.
type Options struct {
	Center          orb.Point
	Zoom            float64
	MinZoom         float64
	MaxZoom         float64
	TileURLTemplate string
	APIKey          string
	Attribution     string
}

// DefaultOptions returns options centered on New Delhi at zoom 12.
func DefaultOptions() Options {
	return Options{
		Center:          orb.Point{77.2090, 28.6139},
		Zoom:            DefaultZoom,
		MinZoom:         DefaultMinZoom,
		MaxZoom:         DefaultMaxZoom,
		TileURLTemplate: DefaultTileURLTemplate,
		Attribution:     DefaultAttribution,
	}
}

// Placement is an icon displayed at a position.
type Placement struct {
	ID       string
	Position orb.Point
	Icon     donut.IconDefinition
}

type subscription struct {
	id uint64
	fn func(zoom float64)
}

// Viewport is a map view: a zoom level, its subscribers and its placed icons.
type Viewport struct {
	opts Options

	mu     sync.Mutex
	zoom   float64
	nextID uint64
	subs   []subscription
	placed map[string]Placement

	// deliverMu makes zoom-end notifications run one at a time, in order.
	deliverMu sync.Mutex
}

// NewViewport validates opts and returns a Viewport at opts.Zoom (clamped).
func NewViewport(opts Options) (*Viewport, error) {
	if !finite(opts.Zoom) || !finite(opts.MinZoom) || !finite(opts.MaxZoom) {
		return nil, fmt.Errorf("%w: zoom levels must be finite", ErrInvalidZoom)
	}
	if opts.MinZoom > opts.MaxZoom {
		return nil, fmt.Errorf("%w: min zoom %v above max zoom %v", ErrInvalidZoom, opts.MinZoom, opts.MaxZoom)
	}
	if !ValidPosition(opts.Center) {
		return nil, fmt.Errorf("%w: center %v", ErrInvalidPosition, opts.Center)
	}
	v := &Viewport{
		opts:   opts,
		placed: make(map[string]Placement),
	}
	v.zoom = v.clamp(opts.Zoom)
	return v, nil
}

// Zoom returns the current zoom level.
func (v *Viewport) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// Center returns the initial map center.
func (v *Viewport) Center() orb.Point {
	return v.opts.Center
}

// ZoomRange returns the allowed zoom bounds.
func (v *Viewport) ZoomRange() (lo, hi float64) {
	return v.opts.MinZoom, v.opts.MaxZoom
}

// Attribution returns the tile attribution markup.
func (v *Viewport) Attribution() string {
	return v.opts.Attribution
}

// TileURL returns the tile URL template with the API key filled in.
func (v *Viewport) TileURL() string {
	return strings.ReplaceAll(v.opts.TileURLTemplate, "{key}", v.opts.APIKey)
}

// OnZoomChange registers handler for zoom-end events. Handlers are called in
// registration order. The returned function is safe to call more than once.
func (v *Viewport) OnZoomChange(handler func(zoom float64)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs = append(v.subs, subscription{id: id, fn: handler})
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { v.removeSubscription(id) })
	}
}

// SetZoom applies a zoom-end event: the zoom is clamped to the viewport's range
// and every subscriber is notified before SetZoom returns. It returns the
// effective zoom and the number of subscribers notified. Handlers may call
// Place and Remove but must not call SetZoom.
func (v *Viewport) SetZoom(zoom float64) (effective float64, notified int, err error) {
	if !finite(zoom) {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidZoom, zoom)
	}

	v.deliverMu.Lock()
	defer v.deliverMu.Unlock()

	v.mu.Lock()
	effective = v.clamp(zoom)
	v.zoom = effective
	subs := make([]subscription, len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	for _, s := range subs {
		s.fn(effective)
	}
	return effective, len(subs), nil
}

// SubscriberCount returns the number of live zoom subscriptions.
func (v *Viewport) SubscriberCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Place displays icon at position under id, replacing any previous icon for id.
func (v *Viewport) Place(id string, position orb.Point, icon donut.IconDefinition) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.placed[id] = Placement{ID: id, Position: position, Icon: icon}
}

// Remove takes the icon for id off the map. It reports whether one was displayed.
func (v *Viewport) Remove(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.placed[id]; !ok {
		return false
	}
	delete(v.placed, id)
	return true
}

// Placement returns the icon displayed for id.
func (v *Viewport) Placement(id string) (Placement, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.placed[id]
	return p, ok
}

// Placed returns a snapshot of all displayed icons sorted by id.
func (v *Viewport) Placed() []Placement {
	v.mu.Lock()
	out := make([]Placement, 0, len(v.placed))
	for _, p := range v.placed {
		out = append(out, p)
	}
	v.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *Viewport) removeSubscription(id uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, s := range v.subs {
		if s.id == id {
			v.subs = append(v.subs[:i:i], v.subs[i+1:]...)
			return
		}
	}
}

func (v *Viewport) clamp(zoom float64) float64 {
	return math.Min(math.Max(zoom, v.opts.MinZoom), v.opts.MaxZoom)
}

// ValidPosition reports whether p is a finite lng/lat pair within range.
func ValidPosition(p orb.Point) bool {
	lng, lat := p.Lon(), p.Lat()
	return finite(lng) && finite(lat) && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
