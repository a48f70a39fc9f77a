package markers

import (
	"donut-map/internal/donut"

	"github.com/paulmach/orb/geojson"
)

// markerFeature converts a marker and its displayed icon to a GeoJSON point
// feature. Stats keep their draw order when encoded.
func markerFeature(mk Marker, icon donut.IconDefinition) *geojson.Feature {
	f := geojson.NewFeature(mk.Position.Point())
	f.ID = string(mk.ID)
	f.Properties["id"] = string(mk.ID)
	f.Properties["stats"] = mk.Stats
	f.Properties["total"] = mk.Stats.Total()
	f.Properties["icon"] = icon
	return f
}
