package markers

import (
	"fmt"
	"math"
	"sync/atomic"

	"donut-map/internal/donut"
	"donut-map/internal/maphost"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Service places donut markers on map viewports and keeps their icons in step
// with each viewport's zoom. Storage is delegated to a Repository.
type Service struct {
	repo        Repository
	iconCfg     donut.Config
	colors      *donut.ColorTable
	mapDefaults maphost.Options
}

// NewService returns a Service. A nil colors uses donut.DefaultColors.
// mapDefaults supplies tile configuration and the zoom/center used when a
// create request omits them.
func NewService(repo Repository, iconCfg donut.Config, colors *donut.ColorTable, mapDefaults maphost.Options) *Service {
	if colors == nil {
		colors = donut.DefaultColors
	}
	return &Service{
		repo:        repo,
		iconCfg:     iconCfg,
		colors:      colors,
		mapDefaults: mapDefaults,
	}
}

// CreateMap creates a map view with the service defaults overridden by req.
func (s *Service) CreateMap(id MapID, req CreateMapRequest) (MapInfo, error) {
	opts := s.mapDefaults
	if req.Center != nil {
		opts.Center = req.Center.Point()
	}
	if req.Zoom != nil {
		opts.Zoom = *req.Zoom
	}

	vp, err := maphost.NewViewport(opts)
	if err != nil {
		return MapInfo{}, err
	}
	if err := s.repo.CreateMap(id, vp); err != nil {
		return MapInfo{}, err
	}
	return s.MapInfo(id)
}

// MapInfo describes the map id.
func (s *Service) MapInfo(id MapID) (MapInfo, error) {
	vp, ok := s.repo.Viewport(id)
	if !ok {
		return MapInfo{}, ErrMapNotFound
	}
	markers, _ := s.repo.MarkerSnapshot(id)
	lo, hi := vp.ZoomRange()
	return MapInfo{
		ID:            id,
		Zoom:          vp.Zoom(),
		MinZoom:       lo,
		MaxZoom:       hi,
		Center:        LatLngFromPoint(vp.Center()),
		TileURL:       vp.TileURL(),
		Attribution:   vp.Attribution(),
		MarkerCount:   len(markers),
		Subscriptions: vp.SubscriberCount(),
	}, nil
}

// DeleteMap removes the map and releases every marker's zoom subscription.
// It returns the number of markers removed.
func (s *Service) DeleteMap(id MapID) (int, error) {
	vp, ok := s.repo.Viewport(id)
	if !ok {
		return 0, ErrMapNotFound
	}
	markers, err := s.repo.DeleteMap(id)
	if err != nil {
		return 0, err
	}
	for _, mk := range markers {
		s.release(vp, mk)
	}
	return len(markers), nil
}

// AddMarker validates in, lays out its arcs, and places its icon on the map.
// The marker's renderer follows the map's zoom until RemoveMarker or DeleteMap.
// Invalid stats fail with donut.ErrInvalidInput and nothing is placed.
func (s *Service) AddMarker(mapID MapID, in MarkerInput) (PlacedMarker, error) {
	pos := in.Position.Point()
	if !maphost.ValidPosition(pos) {
		return PlacedMarker{}, fmt.Errorf("%w: lat %v lng %v", maphost.ErrInvalidPosition, in.Position.Lat, in.Position.Lng)
	}
	arcs, err := donut.ComputeArcs(in.Stats, s.colors)
	if err != nil {
		return PlacedMarker{}, err
	}
	vp, ok := s.repo.Viewport(mapID)
	if !ok {
		return PlacedMarker{}, ErrMapNotFound
	}

	id := in.ID
	if id == "" {
		id = MarkerID(uuid.NewString())
	}
	mk := &Marker{
		ID:       id,
		Position: in.Position,
		Stats:    in.Stats,
		Arcs:     arcs,
	}

	// Redraws stay off until the marker is stored, so a rejected marker never
	// touches the icon of an existing one with the same id.
	var live atomic.Bool
	cfg := s.iconCfg
	mk.renderer = donut.NewIconRenderer(vp, cfg, func(zoom float64) {
		if live.Load() {
			vp.Place(string(id), pos, donut.BuildIcon(arcs, zoom, cfg))
		}
	})
	committed := false
	defer func() {
		if !committed {
			mk.renderer.Dispose()
		}
	}()

	if err := s.repo.AddMarker(mapID, mk); err != nil {
		return PlacedMarker{}, err
	}
	committed = true
	live.Store(true)
	mk.renderer.Refresh()

	placement, _ := vp.Placement(string(id))
	return PlacedMarker{
		ID:       id,
		Position: in.Position,
		Stats:    in.Stats,
		Arcs:     arcs,
		Icon:     placement.Icon,
	}, nil
}

// RemoveMarker takes a marker off the map and releases its zoom subscription.
func (s *Service) RemoveMarker(mapID MapID, markerID MarkerID) error {
	vp, ok := s.repo.Viewport(mapID)
	if !ok {
		return ErrMapNotFound
	}
	mk, err := s.repo.RemoveMarker(mapID, markerID)
	if err != nil {
		return err
	}
	s.release(vp, mk)
	return nil
}

// SetZoom applies a zoom-end event to the map. Every marker's icon is
// regenerated before SetZoom returns.
func (s *Service) SetZoom(mapID MapID, zoom float64) (ZoomResult, error) {
	vp, ok := s.repo.Viewport(mapID)
	if !ok {
		return ZoomResult{}, ErrMapNotFound
	}
	effective, notified, err := vp.SetZoom(zoom)
	if err != nil {
		return ZoomResult{}, err
	}
	return ZoomResult{Zoom: effective, Redrawn: notified}, nil
}

// Markers returns the map's markers with their current icons as GeoJSON.
// A non-nil bound limits the result to markers inside it.
func (s *Service) Markers(mapID MapID, bound *orb.Bound) (*geojson.FeatureCollection, error) {
	vp, ok := s.repo.Viewport(mapID)
	if !ok {
		return nil, ErrMapNotFound
	}
	markers, ok := s.repo.MarkerSnapshot(mapID)
	if !ok {
		return nil, ErrMapNotFound
	}

	fc := geojson.NewFeatureCollection()
	for _, mk := range markers {
		pt := mk.Position.Point()
		if bound != nil && !bound.Contains(pt) {
			continue
		}
		placement, ok := vp.Placement(string(mk.ID))
		if !ok {
			continue
		}
		fc.Append(markerFeature(mk, placement.Icon))
	}
	return fc, nil
}

// RenderIcon lays out stats and renders an icon at zoom without placing it.
func (s *Service) RenderIcon(stats donut.StatSet, zoom float64) (donut.IconDefinition, []donut.ArcDescriptor, error) {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return donut.IconDefinition{}, nil, fmt.Errorf("%w: %v", maphost.ErrInvalidZoom, zoom)
	}
	arcs, err := donut.ComputeArcs(stats, s.colors)
	if err != nil {
		return donut.IconDefinition{}, nil, err
	}
	return donut.BuildIcon(arcs, zoom, s.iconCfg), arcs, nil
}

// Legend returns the color legend.
func (s *Service) Legend() []donut.LegendEntry {
	return s.colors.Legend()
}

// ActiveMarkerCount returns the number of markers across all maps.
func (s *Service) ActiveMarkerCount() int {
	return s.repo.ActiveMarkerCount()
}

// SubscriptionCount returns the number of live zoom subscriptions across all maps.
func (s *Service) SubscriptionCount() int {
	n := 0
	for _, id := range s.repo.MapIDs() {
		if vp, ok := s.repo.Viewport(id); ok {
			n += vp.SubscriberCount()
		}
	}
	return n
}

// release disposes the marker's renderer, then removes its icon. Dispose waits
// for an in-flight redraw, so the icon cannot be placed again afterwards.
func (s *Service) release(vp *maphost.Viewport, mk *Marker) {
	if mk.renderer != nil {
		mk.renderer.Dispose()
	}
	vp.Remove(string(mk.ID))
}
