package config

import (
	"donut-map/internal/donut"
	"donut-map/internal/maphost"

	"github.com/paulmach/orb"
)

// Settings is the full process configuration read from the environment.
type Settings struct {
	Port      string
	LogLevel  string
	LogFormat string

	Icon           donut.Config
	ColorOverrides string

	Map maphost.Options

	DemoMapID   string
	DemoMarkers int
	DemoSeed    int64
}

// FromEnv reads Settings, falling back to defaults for anything unset.
// Call Load first to pick up a .env file.
func FromEnv() Settings {
	mapDefaults := maphost.DefaultOptions()

	return Settings{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		Icon: donut.Config{
			BaseRadiusPx:      GetEnvFloat("DONUT_BASE_RADIUS_PX", donut.DefaultBaseRadiusPx),
			StrokeThicknessPx: GetEnvFloat("DONUT_STROKE_PX", donut.DefaultStrokeThicknessPx),
			MinRadiusPx:       GetEnvFloat("DONUT_MIN_RADIUS_PX", donut.DefaultMinRadiusPx),
			ReferenceZoom:     GetEnvFloat("DONUT_REFERENCE_ZOOM", donut.DefaultReferenceZoom),
		},
		ColorOverrides: GetEnv("DONUT_COLORS", ""),

		Map: maphost.Options{
			Center: orb.Point{
				GetEnvFloat("MAP_CENTER_LNG", mapDefaults.Center.Lon()),
				GetEnvFloat("MAP_CENTER_LAT", mapDefaults.Center.Lat()),
			},
			Zoom:            GetEnvFloat("MAP_ZOOM", mapDefaults.Zoom),
			MinZoom:         GetEnvFloat("MAP_MIN_ZOOM", mapDefaults.MinZoom),
			MaxZoom:         GetEnvFloat("MAP_MAX_ZOOM", mapDefaults.MaxZoom),
			TileURLTemplate: GetEnv("TILE_URL_TEMPLATE", mapDefaults.TileURLTemplate),
			APIKey:          GetEnv("TILE_API_KEY", ""),
			Attribution:     GetEnv("TILE_ATTRIBUTION", mapDefaults.Attribution),
		},

		DemoMapID:   GetEnv("DEMO_MAP_ID", "demo"),
		DemoMarkers: GetEnvInt("DEMO_MARKERS", 10),
		DemoSeed:    GetEnvInt64("DEMO_SEED", 0),
	}
}
