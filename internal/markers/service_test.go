package markers

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"donut-map/internal/donut"
	"donut-map/internal/maphost"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func newTestService(t *testing.T) (*Service, *InMemoryRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	svc := NewService(repo, donut.DefaultConfig(), nil, maphost.DefaultOptions())
	return svc, repo
}

func newDelhiStats() donut.StatSet {
	return donut.StatSet{{Category: "population", Value: 1500}, {Category: "revenue", Value: 500}}
}

func mustCreateMap(t *testing.T, svc *Service, id MapID, zoom float64) {
	t.Helper()
	if _, err := svc.CreateMap(id, CreateMapRequest{Zoom: &zoom}); err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
}

func nan() float64 { return math.NaN() }

func containsCategory(markup, category string) bool {
	return strings.Contains(markup, `data-category="`+category+`"`)
}

func featureIDs(fs []*geojson.Feature) []any {
	ids := make([]any, len(fs))
	for i, f := range fs {
		ids[i] = f.ID
	}
	return ids
}

func iconOf(t *testing.T, svc *Service, mapID MapID, markerID MarkerID) donut.IconDefinition {
	t.Helper()
	fc, err := svc.Markers(mapID, nil)
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	for _, f := range fc.Features {
		if f.ID == string(markerID) {
			return f.Properties["icon"].(donut.IconDefinition)
		}
	}
	t.Fatalf("marker %s not found", markerID)
	return donut.IconDefinition{}
}

func TestService_CreateMap_defaults(t *testing.T) {
	svc, _ := newTestService(t)

	info, err := svc.CreateMap("m1", CreateMapRequest{})
	if err != nil {
		t.Fatalf("CreateMap: %v", err)
	}
	if info.Zoom != maphost.DefaultZoom || info.MinZoom != maphost.DefaultMinZoom || info.MaxZoom != maphost.DefaultMaxZoom {
		t.Errorf("zoom fields: %+v", info)
	}
	if info.Center.Lat != 28.6139 || info.Center.Lng != 77.2090 {
		t.Errorf("center: %+v", info.Center)
	}

	if _, err := svc.CreateMap("m1", CreateMapRequest{}); !errors.Is(err, ErrMapExists) {
		t.Errorf("duplicate map: expected ErrMapExists, got %v", err)
	}
}

func TestService_CreateMap_invalid_center(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateMap("m1", CreateMapRequest{Center: &LatLng{Lat: 120, Lng: 0}})
	if !errors.Is(err, maphost.ErrInvalidPosition) {
		t.Errorf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestService_AddMarker_places_icon_at_map_zoom(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)

	placed, err := svc.AddMarker("m1", MarkerInput{
		ID:       "delhi",
		Position: LatLng{Lat: 28.6139, Lng: 77.2090},
		Stats:    newDelhiStats(),
	})
	if err != nil {
		t.Fatalf("AddMarker: %v", err)
	}
	if placed.Icon.Size != 36 || placed.Icon.Anchor != (donut.Point{X: 18, Y: 18}) {
		t.Errorf("icon size/anchor: %v %v", placed.Icon.Size, placed.Icon.Anchor)
	}
	if len(placed.Arcs) != 2 || placed.Arcs[0].Category != "population" {
		t.Errorf("arcs: %+v", placed.Arcs)
	}

	vp, _ := repo.Viewport("m1")
	if vp.SubscriberCount() != 1 {
		t.Errorf("expected 1 zoom subscription, got %d", vp.SubscriberCount())
	}
	if p, ok := vp.Placement("delhi"); !ok || p.Position != (orb.Point{77.2090, 28.6139}) {
		t.Errorf("placement: %+v ok=%v", p, ok)
	}
}

func TestService_AddMarker_assigns_id(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)

	a, err := svc.AddMarker("m1", MarkerInput{Stats: newDelhiStats()})
	if err != nil {
		t.Fatalf("AddMarker: %v", err)
	}
	b, err := svc.AddMarker("m1", MarkerInput{Stats: newDelhiStats()})
	if err != nil {
		t.Fatalf("AddMarker: %v", err)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct generated ids, got %q and %q", a.ID, b.ID)
	}
}

func TestService_SetZoom_redraws_every_marker(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)
	for _, id := range []MarkerID{"a", "b", "c"} {
		if _, err := svc.AddMarker("m1", MarkerInput{ID: id, Stats: newDelhiStats()}); err != nil {
			t.Fatalf("AddMarker %s: %v", id, err)
		}
	}

	tests := []struct {
		zoom     float64
		wantZoom float64
		wantSize float64
	}{
		{zoom: 20, wantZoom: 20, wantSize: 72},
		{zoom: 4, wantZoom: 4, wantSize: 16},
		{zoom: 25, wantZoom: 20, wantSize: 72},
		{zoom: 10, wantZoom: 10, wantSize: 36},
	}
	for _, tt := range tests {
		res, err := svc.SetZoom("m1", tt.zoom)
		if err != nil {
			t.Fatalf("SetZoom(%v): %v", tt.zoom, err)
		}
		if res.Zoom != tt.wantZoom || res.Redrawn != 3 {
			t.Errorf("SetZoom(%v) = %+v, want zoom %v redrawn 3", tt.zoom, res, tt.wantZoom)
		}
		for _, id := range []MarkerID{"a", "b", "c"} {
			if got := iconOf(t, svc, "m1", id).Size; got != tt.wantSize {
				t.Errorf("zoom %v marker %s: size %v, want %v", tt.zoom, id, got, tt.wantSize)
			}
		}
	}
}

func TestService_SetZoom_invalid(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)
	if _, err := svc.SetZoom("nope", 5); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
}

func TestService_AddMarker_invalid_stats_places_nothing(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)

	tests := []struct {
		name  string
		stats donut.StatSet
	}{
		{name: "empty", stats: nil},
		{name: "all zero", stats: donut.StatSet{{Category: "population", Value: 0}}},
		{name: "negative", stats: donut.StatSet{{Category: "population", Value: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddMarker("m1", MarkerInput{ID: "bad", Stats: tt.stats})
			if !errors.Is(err, donut.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	vp, _ := repo.Viewport("m1")
	if vp.SubscriberCount() != 0 || len(vp.Placed()) != 0 || repo.ActiveMarkerCount() != 0 {
		t.Errorf("invalid markers left state: subs=%d placed=%d markers=%d",
			vp.SubscriberCount(), len(vp.Placed()), repo.ActiveMarkerCount())
	}
}

func TestService_AddMarker_invalid_position(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)
	_, err := svc.AddMarker("m1", MarkerInput{Position: LatLng{Lat: 0, Lng: 200}, Stats: newDelhiStats()})
	if !errors.Is(err, maphost.ErrInvalidPosition) {
		t.Errorf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestService_AddMarker_duplicate_keeps_original(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)

	if _, err := svc.AddMarker("m1", MarkerInput{ID: "x", Stats: newDelhiStats()}); err != nil {
		t.Fatalf("AddMarker: %v", err)
	}
	before := iconOf(t, svc, "m1", "x")

	_, err := svc.AddMarker("m1", MarkerInput{
		ID:    "x",
		Stats: donut.StatSet{{Category: "growth", Value: 1}},
	})
	if !errors.Is(err, ErrMarkerExists) {
		t.Fatalf("expected ErrMarkerExists, got %v", err)
	}

	vp, _ := repo.Viewport("m1")
	if vp.SubscriberCount() != 1 {
		t.Errorf("rejected marker kept its subscription: %d", vp.SubscriberCount())
	}
	if _, err := svc.SetZoom("m1", 12); err != nil {
		t.Fatalf("SetZoom: %v", err)
	}
	after := iconOf(t, svc, "m1", "x")
	if after.Markup == before.Markup || after.Size != 43.2 {
		t.Errorf("original marker should redraw at zoom 12, size %v", after.Size)
	}
	if got := iconOf(t, svc, "m1", "x").Markup; !containsCategory(got, "population") || containsCategory(got, "growth") {
		t.Errorf("icon was replaced by the rejected marker: %s", got)
	}
}

func TestService_AddMarker_missing_map(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.AddMarker("nope", MarkerInput{Stats: newDelhiStats()}); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
}

func TestService_RemoveMarker_releases_subscription(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)
	if _, err := svc.AddMarker("m1", MarkerInput{ID: "a", Stats: newDelhiStats()}); err != nil {
		t.Fatalf("AddMarker: %v", err)
	}
	if _, err := svc.AddMarker("m1", MarkerInput{ID: "b", Stats: newDelhiStats()}); err != nil {
		t.Fatalf("AddMarker: %v", err)
	}

	if err := svc.RemoveMarker("m1", "a"); err != nil {
		t.Fatalf("RemoveMarker: %v", err)
	}
	vp, _ := repo.Viewport("m1")
	if vp.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscription after remove, got %d", vp.SubscriberCount())
	}
	if _, ok := vp.Placement("a"); ok {
		t.Error("removed marker still displayed")
	}

	res, err := svc.SetZoom("m1", 15)
	if err != nil {
		t.Fatalf("SetZoom: %v", err)
	}
	if res.Redrawn != 1 {
		t.Errorf("expected 1 redraw, got %d", res.Redrawn)
	}
	if _, ok := vp.Placement("a"); ok {
		t.Error("removed marker redrawn after zoom")
	}

	if err := svc.RemoveMarker("m1", "a"); !errors.Is(err, ErrMarkerNotFound) {
		t.Errorf("second remove: expected ErrMarkerNotFound, got %v", err)
	}
	if err := svc.RemoveMarker("nope", "a"); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("missing map: expected ErrMapNotFound, got %v", err)
	}
}

func TestService_DeleteMap_releases_all(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)
	for _, id := range []MarkerID{"a", "b"} {
		if _, err := svc.AddMarker("m1", MarkerInput{ID: id, Stats: newDelhiStats()}); err != nil {
			t.Fatalf("AddMarker: %v", err)
		}
	}
	vp, _ := repo.Viewport("m1")

	n, err := svc.DeleteMap("m1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteMap = %d, %v", n, err)
	}
	if vp.SubscriberCount() != 0 || len(vp.Placed()) != 0 {
		t.Errorf("deleted map kept state: subs=%d placed=%d", vp.SubscriberCount(), len(vp.Placed()))
	}
	if svc.SubscriptionCount() != 0 || svc.ActiveMarkerCount() != 0 {
		t.Errorf("counts after delete: subs=%d markers=%d", svc.SubscriptionCount(), svc.ActiveMarkerCount())
	}
	if _, err := svc.MapInfo("m1"); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
	if _, err := svc.DeleteMap("m1"); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
}

func TestService_Markers_bbox_and_order(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)

	inputs := []MarkerInput{
		{ID: "z-inside", Position: LatLng{Lat: 28.61, Lng: 77.20}, Stats: newDelhiStats()},
		{ID: "a-outside", Position: LatLng{Lat: 51.5, Lng: -0.1}, Stats: newDelhiStats()},
		{ID: "m-inside", Position: LatLng{Lat: 28.62, Lng: 77.21}, Stats: newDelhiStats()},
	}
	for _, in := range inputs {
		if _, err := svc.AddMarker("m1", in); err != nil {
			t.Fatalf("AddMarker: %v", err)
		}
	}

	all, err := svc.Markers("m1", nil)
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if len(all.Features) != 3 || all.Features[0].ID != "z-inside" || all.Features[2].ID != "m-inside" {
		t.Errorf("expected placement order, got %v", featureIDs(all.Features))
	}

	bound := orb.Bound{Min: orb.Point{77.1, 28.5}, Max: orb.Point{77.3, 28.7}}
	in, err := svc.Markers("m1", &bound)
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if got := featureIDs(in.Features); len(got) != 2 || got[0] != "z-inside" || got[1] != "m-inside" {
		t.Errorf("bbox filter: got %v", got)
	}
	if total := in.Features[0].Properties["total"]; total != 2000.0 {
		t.Errorf("total property: %v", total)
	}

	if _, err := svc.Markers("nope", nil); !errors.Is(err, ErrMapNotFound) {
		t.Errorf("expected ErrMapNotFound, got %v", err)
	}
}

func TestService_RenderIcon(t *testing.T) {
	svc, _ := newTestService(t)

	icon, arcs, err := svc.RenderIcon(newDelhiStats(), 20)
	if err != nil {
		t.Fatalf("RenderIcon: %v", err)
	}
	if icon.Size != 72 || len(arcs) != 2 {
		t.Errorf("RenderIcon: size %v arcs %d", icon.Size, len(arcs))
	}

	if _, _, err := svc.RenderIcon(nil, 10); !errors.Is(err, donut.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := svc.RenderIcon(newDelhiStats(), nan()); !errors.Is(err, maphost.ErrInvalidZoom) {
		t.Errorf("expected ErrInvalidZoom, got %v", err)
	}
}

func TestService_Legend_uses_color_table(t *testing.T) {
	colors, err := donut.DefaultColors.WithOverrides([]donut.LegendEntry{{Category: "population", Color: "#000000"}})
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(NewInMemoryRepository(), donut.DefaultConfig(), colors, maphost.DefaultOptions())

	legend := svc.Legend()
	if len(legend) != 3 || legend[0].Category != "population" || legend[0].Color != "#000000" {
		t.Errorf("Legend: %+v", legend)
	}
}

func TestService_concurrent_zoom_and_remove(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateMap(t, svc, "m1", 10)
	const n = 20
	for i := 0; i < n; i++ {
		id := MarkerID(fmt.Sprintf("m%d", i))
		if _, err := svc.AddMarker("m1", MarkerInput{ID: id, Stats: newDelhiStats()}); err != nil {
			t.Fatalf("AddMarker: %v", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for z := 0.0; z <= 20; z++ {
			if _, err := svc.SetZoom("m1", z); err != nil {
				t.Errorf("SetZoom: %v", err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if err := svc.RemoveMarker("m1", MarkerID(fmt.Sprintf("m%d", i))); err != nil {
				t.Errorf("RemoveMarker: %v", err)
			}
		}
	}()
	wg.Wait()

	vp, _ := repo.Viewport("m1")
	if vp.SubscriberCount() != 0 || len(vp.Placed()) != 0 {
		t.Errorf("after removing all: subs=%d placed=%d", vp.SubscriberCount(), len(vp.Placed()))
	}
}
