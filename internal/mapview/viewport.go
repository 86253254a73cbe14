package mapview

import "vrijeme-widget/internal/geo"

// Zoom limits for the map surface.
const (
	MinZoom = 1.0
	MaxZoom = 8.0
)

// Viewport is the map's pan/zoom state over the projected plane. Screen
// coordinates relate to plane coordinates as screen = plane*Scale + Pan;
// pan is clamped so the visible window never leaves the plane's extent.
// The viewport resets to identity each time the map is opened.
type Viewport struct {
	Scale float64
	PanX  float64
	PanY  float64

	plane geo.Plane
	viewW float64
	viewH float64
}

// NewViewport creates an identity viewport: the whole plane visible at
// scale 1. The plane's uncorrected size matches the view size; its
// horizontal correction may make it wider than the window.
func NewViewport(plane geo.Plane, viewW, viewH float64) *Viewport {
	v := &Viewport{plane: plane, viewW: viewW, viewH: viewH}
	v.Reset()
	return v
}

// Reset returns the viewport to identity. Called on every map open.
func (v *Viewport) Reset() {
	v.Scale = 1
	v.PanX = 0
	v.PanY = 0
	v.clampPan()
}

// Plane exposes the projected plane the viewport is framing.
func (v *Viewport) Plane() geo.Plane { return v.plane }

// ZoomAt rescales so that the screen point (cx, cy) stays visually fixed,
// then re-clamps the pan. The scale is clamped to [MinZoom, MaxZoom].
func (v *Viewport) ZoomAt(newScale, cx, cy float64) {
	newScale = clamp(newScale, MinZoom, MaxZoom)
	if newScale == v.Scale {
		return
	}
	ratio := newScale / v.Scale
	v.PanX = cx - (cx-v.PanX)*ratio
	v.PanY = cy - (cy-v.PanY)*ratio
	v.Scale = newScale
	v.clampPan()
}

// PanBy moves the pan by a screen-space displacement and re-clamps.
func (v *Viewport) PanBy(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
	v.clampPan()
}

// SetPan places the pan absolutely (drag tracking) and re-clamps.
func (v *Viewport) SetPan(x, y float64) {
	v.PanX = x
	v.PanY = y
	v.clampPan()
}

// clampPan keeps the window inside the scaled plane. When the scaled plane
// is narrower than the window on an axis, the pan pins to 0 on that axis.
func (v *Viewport) clampPan() {
	minX := v.viewW - v.plane.EffectiveWidth()*v.Scale
	minY := v.viewH - v.plane.Height*v.Scale
	if minX > 0 {
		minX = 0
	}
	if minY > 0 {
		minY = 0
	}
	v.PanX = clamp(v.PanX, minX, 0)
	v.PanY = clamp(v.PanY, minY, 0)
}

// GeoToScreen projects geographic coordinates into the current window.
func (v *Viewport) GeoToScreen(lat, lon float64) geo.Point {
	pt := v.plane.Project(lat, lon)
	return geo.Point{X: pt.X*v.Scale + v.PanX, Y: pt.Y*v.Scale + v.PanY}
}

// ScreenToGeo unprojects a window position back to geographic coordinates.
func (v *Viewport) ScreenToGeo(x, y float64) (lat, lon float64) {
	pt := geo.Point{X: (x - v.PanX) / v.Scale, Y: (y - v.PanY) / v.Scale}
	return v.plane.Unproject(pt)
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
