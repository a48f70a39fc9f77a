package donut

import "sync"

// ZoomSource is the part of a map host an IconRenderer depends on.
type ZoomSource interface {
	// Zoom returns the current zoom level.
	Zoom() float64
	// OnZoomChange registers handler to be called with the new zoom after each
	// zoom-end event. The returned function removes the registration.
	OnZoomChange(handler func(zoom float64)) (unsubscribe func())
}

// IconRenderer produces icons for one marker at the host's current zoom.
// It caches the zoom, keeps it current through the host's notifications, and
// calls invalidate after each change so the caller can swap the displayed icon.
//
// Every IconRenderer must be released with Dispose.
type IconRenderer struct {
	cfg Config

	mu       sync.Mutex
	zoom     float64
	notified bool

	// notifyMu serializes notifications with Dispose: once Dispose returns no
	// invalidation is running and none will start.
	notifyMu    sync.Mutex
	disposed    bool
	invalidate  func(zoom float64)
	unsubscribe func()
}

// NewIconRenderer subscribes to src and returns a renderer primed with its zoom.
// invalidate may be nil. It runs synchronously inside the host's notification
// and must not call Dispose on the same renderer.
func NewIconRenderer(src ZoomSource, cfg Config, invalidate func(zoom float64)) *IconRenderer {
	r := &IconRenderer{
		cfg:        cfg.withDefaults(),
		invalidate: invalidate,
	}
	unsubscribe := src.OnZoomChange(r.OnZoomChanged)

	r.notifyMu.Lock()
	r.unsubscribe = unsubscribe
	r.notifyMu.Unlock()

	r.mu.Lock()
	if !r.notified {
		r.zoom = src.Zoom()
	}
	r.mu.Unlock()
	return r
}

// OnZoomChanged records zoom and triggers invalidation. It is a no-op after Dispose.
func (r *IconRenderer) OnZoomChanged(zoom float64) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if r.disposed {
		return
	}

	r.mu.Lock()
	r.zoom = zoom
	r.notified = true
	r.mu.Unlock()

	if r.invalidate != nil {
		r.invalidate(zoom)
	}
}

// Refresh calls invalidate with the cached zoom. It is serialized with
// notifications, so callers use it for the first placement of an icon.
func (r *IconRenderer) Refresh() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if r.disposed || r.invalidate == nil {
		return
	}
	r.invalidate(r.Zoom())
}

// Zoom returns the cached zoom level.
func (r *IconRenderer) Zoom() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zoom
}

// Config returns the renderer's effective configuration.
func (r *IconRenderer) Config() Config {
	return r.cfg
}

// Render builds the icon for arcs at the cached zoom.
func (r *IconRenderer) Render(arcs []ArcDescriptor) IconDefinition {
	return BuildIcon(arcs, r.Zoom(), r.cfg)
}

// RenderAt builds the icon for arcs at an explicit zoom.
func (r *IconRenderer) RenderAt(arcs []ArcDescriptor, zoom float64) IconDefinition {
	return BuildIcon(arcs, zoom, r.cfg)
}

// Dispose unsubscribes from the host and drops the invalidate callback.
// It is safe to call more than once.
func (r *IconRenderer) Dispose() {
	r.notifyMu.Lock()
	if r.disposed {
		r.notifyMu.Unlock()
		return
	}
	r.disposed = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.invalidate = nil
	r.notifyMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Disposed reports whether Dispose has been called.
func (r *IconRenderer) Disposed() bool {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	return r.disposed
}
