package markers

import (
	"time"

	"donut-map/internal/donut"
	"donut-map/internal/maphost"

	"github.com/paulmach/orb"
)

// MapID uniquely identifies a map view.
type MapID string

// MarkerID identifies a marker within a map.
type MarkerID string

// LatLng is a geographic position as sent by map clients.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts p to an orb point (lng, lat).
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// LatLngFromPoint converts an orb point to a LatLng.
func LatLngFromPoint(pt orb.Point) LatLng {
	return LatLng{Lat: pt.Lat(), Lng: pt.Lon()}
}

// MarkerInput is the request payload for placing a marker.
// ID is optional; a UUID is assigned when it is empty.
type MarkerInput struct {
	ID       MarkerID      `json:"id"`
	Position LatLng        `json:"position"`
	Stats    donut.StatSet `json:"stats"`
}

// Marker is a donut marker placed on a map.
type Marker struct {
	ID       MarkerID
	Position LatLng
	Stats    donut.StatSet
	Arcs     []donut.ArcDescriptor

	// Metadata managed by the service.
	CreatedAt time.Time
	seq       uint64
	renderer  *donut.IconRenderer
}

// MapState is the in-memory representation of one map view and its markers.
type MapState struct {
	ID       MapID
	Viewport *maphost.Viewport
	Markers  map[MarkerID]*Marker
	nextSeq  uint64
}

// CreateMapRequest is the payload for creating a map. Omitted fields take the
// service defaults.
type CreateMapRequest struct {
	Center *LatLng  `json:"center,omitempty"`
	Zoom   *float64 `json:"zoom,omitempty"`
}

// MapInfo describes a map for clients.
type MapInfo struct {
	ID            MapID   `json:"id"`
	Zoom          float64 `json:"zoom"`
	MinZoom       float64 `json:"min_zoom"`
	MaxZoom       float64 `json:"max_zoom"`
	Center        LatLng  `json:"center"`
	TileURL       string  `json:"tile_url"`
	Attribution   string  `json:"attribution"`
	MarkerCount   int     `json:"marker_count"`
	Subscriptions int     `json:"zoom_subscriptions"`
}

// ZoomResult reports the outcome of a zoom change.
type ZoomResult struct {
	Zoom    float64 `json:"zoom"`
	Redrawn int     `json:"redrawn"`
}

// PlacedMarker is the response for a newly placed marker.
type PlacedMarker struct {
	ID       MarkerID              `json:"id"`
	Position LatLng                `json:"position"`
	Stats    donut.StatSet         `json:"stats"`
	Arcs     []donut.ArcDescriptor `json:"arcs"`
	Icon     donut.IconDefinition  `json:"icon"`
}
