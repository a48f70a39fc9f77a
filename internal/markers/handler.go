package markers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"donut-map/internal/donut"
	"donut-map/internal/maphost"
	"donut-map/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
)

const (
	svgContentType  = "image/svg+xml"
	jsonContentType = "application/json"
	geoContentType  = "application/geo+json"
)

// Handler exposes map and icon HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/legend", h.Legend)
	r.Post("/icons", h.RenderIcon)
	r.Get("/icons/donut.svg", h.RenderIconSVG)
	r.Route("/maps/{map_id}", func(r chi.Router) {
		r.Put("/", h.CreateMap)
		r.Get("/", h.GetMap)
		r.Delete("/", h.DeleteMap)
		r.Put("/zoom", h.SetZoom)
		r.Post("/markers", h.AddMarker)
		r.Get("/markers", h.ListMarkers)
		r.Delete("/markers/{marker_id}", h.RemoveMarker)
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Legend handles GET /legend.
func (h *Handler) Legend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Legend())
}

type iconRequest struct {
	Zoom  *float64      `json:"zoom"`
	Stats donut.StatSet `json:"stats"`
}

type iconResponse struct {
	Icon donut.IconDefinition  `json:"icon"`
	Arcs []donut.ArcDescriptor `json:"arcs"`
}

// RenderIcon handles POST /icons.
// Body: { "zoom": 12, "stats": { "population": 1500, "revenue": 500 } }.
func (h *Handler) RenderIcon(w http.ResponseWriter, r *http.Request) {
	var req iconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badBody(w, "invalid icon body", err)
		return
	}
	if req.Zoom == nil {
		h.badBody(w, "invalid icon body", errors.New("zoom is required"))
		return
	}

	icon, arcs, err := h.svc.RenderIcon(req.Stats, *req.Zoom)
	if err != nil {
		h.fail(w, "render icon failed", err)
		return
	}
	h.rendered("preview", icon)
	writeJSON(w, http.StatusOK, iconResponse{Icon: icon, Arcs: arcs})
}

// RenderIconSVG handles GET /icons/donut.svg?zoom=12&stats=population:1500,revenue:500.
// Stats keep the order given in the query.
func (h *Handler) RenderIconSVG(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zoom := float64(maphost.DefaultZoom)
	if s := q.Get("zoom"); s != "" {
		z, err := strconv.ParseFloat(s, 64)
		if err != nil {
			h.badBody(w, "invalid zoom query", err)
			return
		}
		zoom = z
	}
	stats, err := parseStatsQuery(q.Get("stats"))
	if err != nil {
		h.fail(w, "invalid stats query", err)
		return
	}

	icon, _, err := h.svc.RenderIcon(stats, zoom)
	if err != nil {
		h.fail(w, "render icon failed", err)
		return
	}
	h.rendered("preview", icon)

	w.Header().Set("Content-Type", svgContentType)
	w.Header().Set("X-Icon-Size", strconv.FormatFloat(icon.Size, 'f', -1, 64))
	w.Header().Set("X-Icon-Anchor", strconv.FormatFloat(icon.Anchor.X, 'f', -1, 64)+","+strconv.FormatFloat(icon.Anchor.Y, 'f', -1, 64))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(icon.Markup))
}

// CreateMap handles PUT /maps/{map_id}.
// Body (optional): { "center": { "lat": 28.6, "lng": 77.2 }, "zoom": 12 }.
func (h *Handler) CreateMap(w http.ResponseWriter, r *http.Request) {
	mapID := MapID(chi.URLParam(r, "map_id"))
	if mapID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req CreateMapRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badBody(w, "invalid map body", err)
			return
		}
	}

	info, err := h.svc.CreateMap(mapID, req)
	if err != nil {
		h.fail(w, "create map failed", err, slog.String("map_id", string(mapID)))
		return
	}

	h.log.Info("map created",
		slog.String("map_id", string(mapID)),
		slog.Float64("zoom", info.Zoom))
	writeJSON(w, http.StatusCreated, info)
}

// GetMap handles GET /maps/{map_id}.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	mapID := MapID(chi.URLParam(r, "map_id"))
	info, err := h.svc.MapInfo(mapID)
	if err != nil {
		h.fail(w, "get map failed", err, slog.String("map_id", string(mapID)))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DeleteMap handles DELETE /maps/{map_id}.
func (h *Handler) DeleteMap(w http.ResponseWriter, r *http.Request) {
	mapID := MapID(chi.URLParam(r, "map_id"))
	n, err := h.svc.DeleteMap(mapID)
	if err != nil {
		h.fail(w, "delete map failed", err, slog.String("map_id", string(mapID)))
		return
	}

	h.log.Info("map deleted", slog.String("map_id", string(mapID)), slog.Int("markers", n))
	if h.metrics != nil {
		h.metrics.AddMarkersRemoved(n)
	}
	w.WriteHeader(http.StatusNoContent)
}

type zoomRequest struct {
	Zoom *float64 `json:"zoom"`
}

// SetZoom handles PUT /maps/{map_id}/zoom. Body: { "zoom": 14 }.
func (h *Handler) SetZoom(w http.ResponseWriter, r *http.Request) {
	mapID := MapID(chi.URLParam(r, "map_id"))

	var req zoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badBody(w, "invalid zoom body", err)
		return
	}
	if req.Zoom == nil {
		h.badBody(w, "invalid zoom body", errors.New("zoom is required"))
		return
	}

	res, err := h.svc.SetZoom(mapID, *req.Zoom)
	if err != nil {
		h.fail(w, "set zoom failed", err, slog.String("map_id", string(mapID)))
		return
	}

	h.log.Debug("zoom applied",
		slog.String("map_id", string(mapID)),
		slog.Float64("zoom", res.Zoom),
		slog.Int("redrawn", res.Redrawn))
	if h.metrics != nil {
		h.metrics.IncZoomChanges()
		h.metrics.AddIconsRendered("zoom", res.Redrawn)
	}
	writeJSON(w, http.StatusOK, res)
}

// AddMarker handles POST /maps/{map_id}/markers.
// Body: { "id": "m1", "position": { "lat": 28.6, "lng": 77.2 }, "stats": { "population": 1500 } }.
func (h *Handler) AddMarker(w http.ResponseWriter, r *http.Request) {
	mapID := MapID(chi.URLParam(r, "map_id"))

	var in MarkerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badBody(w, "invalid marker body", err)
		return
	}

	placed, err := h.svc.AddMarker(mapID, in)
	if err != nil {
		h.fail(w, "add marker failed", err,
			slog.String("map_id", string(mapID)),
			slog.String("marker_id", string(in.ID)))
		return
	}

	h.log.Debug("marker placed",
		slog.String("map_id", string(mapID)),
		slog.String("marker_id", string(placed.ID)),
		slog.Int("categories", len(placed.Arcs)))
	if h.metrics != nil {
		h.metrics.IncMarkersPlaced()
	}
	h.rendered("place", placed.Icon)
	writeJSON(w, http.StatusCreated, placed)
}

// ListMarkers handles GET /maps/{map_id}/markers[?bbox=minLng,minLat,maxLng,maxLat].
func (h *Handler) ListMarkers(w http.ResponseWriter, r *http.Request) {
	mapID := MapID(chi.URLParam(r, "map_id"))

	var bound *orb.Bound
	if s := r.URL.Query().Get("bbox"); s != "" {
		b, err := parseBBox(s)
		if err != nil {
			h.badBody(w, "invalid bbox", err)
			return
		}
		bound = &b
	}

	fc, err := h.svc.Markers(mapID, bound)
	if err != nil {
		h.fail(w, "list markers failed", err, slog.String("map_id", string(mapID)))
		return
	}

	body, err := fc.MarshalJSON()
	if err != nil {
		h.fail(w, "encode markers failed", err, slog.String("map_id", string(mapID)))
		return
	}
	w.Header().Set("Content-Type", geoContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// RemoveMarker handles DELETE /maps/{map_id}/markers/{marker_id}.
func (h *Handler) RemoveMarker(w http.ResponseWriter, r *http.Request) {
	mapID := MapID(chi.URLParam(r, "map_id"))
	markerID := MarkerID(chi.URLParam(r, "marker_id"))

	if err := h.svc.RemoveMarker(mapID, markerID); err != nil {
		h.fail(w, "remove marker failed", err,
			slog.String("map_id", string(mapID)),
			slog.String("marker_id", string(markerID)))
		return
	}

	h.log.Debug("marker removed",
		slog.String("map_id", string(mapID)),
		slog.String("marker_id", string(markerID)))
	if h.metrics != nil {
		h.metrics.AddMarkersRemoved(1)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rendered(trigger string, icon donut.IconDefinition) {
	if h.metrics == nil {
		return
	}
	h.metrics.AddIconsRendered(trigger, 1)
	h.metrics.ObserveIconRadius(icon.Size / 2)
}

func (h *Handler) badBody(w http.ResponseWriter, msg string, err error) {
	h.log.Debug(msg, slog.String("error", err.Error()))
	writeError(w, http.StatusBadRequest, err)
}

// fail maps err to a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	status := statusFor(err)
	attrs = append(attrs, slog.String("error", err.Error()))
	switch {
	case status >= http.StatusInternalServerError:
		h.log.Error(msg, attrs...)
	case errors.Is(err, donut.ErrInvalidInput):
		h.log.Info(msg, attrs...)
		if h.metrics != nil {
			h.metrics.IncInvalidStats()
		}
	default:
		h.log.Debug(msg, attrs...)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, donut.ErrInvalidInput),
		errors.Is(err, maphost.ErrInvalidZoom),
		errors.Is(err, maphost.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, ErrMapNotFound), errors.Is(err, ErrMarkerNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMapExists), errors.Is(err, ErrMarkerExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseStatsQuery parses "a:1,b:2" into a StatSet in the given order.
func parseStatsQuery(s string) (donut.StatSet, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: stats is required", donut.ErrInvalidInput)
	}
	parts := strings.Split(s, ",")
	stats := make(donut.StatSet, 0, len(parts))
	for _, part := range parts {
		name, raw, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: stat %q is not name:value", donut.ErrInvalidInput, part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: stat %q: %v", donut.ErrInvalidInput, name, err)
		}
		stats = append(stats, donut.Stat{Category: strings.TrimSpace(name), Value: v})
	}
	return stats, nil
}

// parseBBox parses "minLng,minLat,maxLng,maxLat".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox needs 4 values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox value %d: %w", i, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, errors.New("bbox min exceeds max")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
