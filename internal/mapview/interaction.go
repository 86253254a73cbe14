package mapview

import (
	"math"

	"vrijeme-widget/internal/geo"
	"vrijeme-widget/internal/models"
	"vrijeme-widget/internal/stations"

	"go.uber.org/zap"
)

// Gesture thresholds and snapping.
const (
	// A press that moves at least this many pixels counts as a drag and
	// suppresses the click-to-select on release.
	mouseMoveThresholdPx = 5
	touchMoveThresholdPx = 10

	// baseSnapKm divided by the current zoom scale gives the geographic
	// radius within which a pointer is "over" a station: constant in
	// screen terms, shrinking geographically as the user zooms in.
	baseSnapKm = 15.0
)

// phase is the gesture surface's primary state.
type phase int

const (
	phaseIdle phase = iota
	phaseHighlighting
	phaseDragging
	phasePinching
)

// Touch is one active touch point in window coordinates.
type Touch struct {
	X float64
	Y float64
}

// Callbacks connects the state machine to the rendering surface without
// the machine ever referencing it directly.
type Callbacks struct {
	// Highlight is invoked when the highlighted candidate changes; name is
	// empty when the highlight clears. pos anchors the station label.
	Highlight func(name string, pos geo.Point)
	// Select delivers the picked station. The distance is always nil for a
	// map pick, matching the resolver's contract for a named selection.
	Select func(station models.Station)
}

// Interaction is the map's pointer/touch gesture state machine. It owns a
// viewport and consults the station index for hit-testing; stations without
// finite coordinates never participate.
type Interaction struct {
	vp     *Viewport
	idx    *stations.Index
	cb     Callbacks
	logger *zap.Logger

	state phase

	// press/drag tracking, valid between down and up
	pressed   bool
	pressX    float64
	pressY    float64
	panStartX float64
	panStartY float64
	moved     bool

	highlighted string

	// two-phase mobile selection: the station highlighted by the first tap,
	// awaiting a confirming second tap
	tapped string

	// pinch tracking, reset on every touch-count change
	touchCount      int
	pinchStartDist  float64
	pinchStartScale float64
}

func NewInteraction(vp *Viewport, idx *stations.Index, cb Callbacks, logger *zap.Logger) *Interaction {
	return &Interaction{vp: vp, idx: idx, cb: cb, logger: logger}
}

// SetIndex swaps the station index after a snapshot refresh. Any highlight
// or pending tap may now point at a vanished station, so both clear.
func (i *Interaction) SetIndex(idx *stations.Index) {
	i.idx = idx
	i.setHighlight("")
	i.tapped = ""
}

// Viewport exposes the owned viewport for rendering.
func (i *Interaction) Viewport() *Viewport { return i.vp }

// Close resets all gesture state; called when the map closes. The viewport
// itself resets on the next open.
func (i *Interaction) Close() {
	i.state = phaseIdle
	i.pressed = false
	i.moved = false
	i.touchCount = 0
	i.tapped = ""
	i.setHighlight("")
	i.vp.Reset()
}

// snapRadiusKm is the current hit-test radius.
func (i *Interaction) snapRadiusKm() float64 {
	return baseSnapKm / i.vp.Scale
}

// candidateAt hit-tests a window position against the station index.
func (i *Interaction) candidateAt(x, y float64) string {
	lat, lon := i.vp.ScreenToGeo(x, y)
	return i.idx.NearestWithinRadius(lat, lon, i.snapRadiusKm())
}

// setHighlight toggles the single highlighted-station flag and notifies the
// surface only when the candidate actually changes.
func (i *Interaction) setHighlight(name string) {
	if name == i.highlighted {
		return
	}
	i.highlighted = name
	if i.cb.Highlight == nil {
		return
	}
	if name == "" {
		i.cb.Highlight("", geo.Point{})
		return
	}
	st, _ := i.idx.Snapshot().Get(name)
	i.cb.Highlight(name, i.vp.GeoToScreen(st.Lat, st.Lon))
}

func (i *Interaction) selectStation(name string) {
	st, ok := i.idx.Snapshot().Get(name)
	if !ok {
		return
	}
	if i.logger != nil {
		i.logger.Info("Station picked on map", zap.String("station", name))
	}
	if i.cb.Select != nil {
		i.cb.Select(st)
	}
}

// PointerDown begins a press-release cycle for a pointer device.
func (i *Interaction) PointerDown(x, y float64) {
	i.pressed = true
	i.moved = false
	i.pressX, i.pressY = x, y
	i.panStartX, i.panStartY = i.vp.PanX, i.vp.PanY
}

// PointerMove handles both hover hit-testing and drag panning.
func (i *Interaction) PointerMove(x, y float64) {
	if i.pressed {
		dx := x - i.pressX
		dy := y - i.pressY
		if !i.moved && math.Hypot(dx, dy) >= mouseMoveThresholdPx {
			i.moved = true
			i.state = phaseDragging
		}
		// Panning only applies when zoomed in; at identity the whole plane
		// is already framed.
		if i.moved && i.vp.Scale > MinZoom {
			i.vp.SetPan(i.panStartX+dx, i.panStartY+dy)
		}
		return
	}

	candidate := i.candidateAt(x, y)
	i.setHighlight(candidate)
	if candidate != "" {
		i.state = phaseHighlighting
	} else if i.state == phaseHighlighting {
		i.state = phaseIdle
	}
}

// PointerUp ends the cycle; a clean click on a highlighted station selects
// it, while any drag in the same cycle suppresses the selection.
func (i *Interaction) PointerUp(x, y float64) {
	wasDrag := i.moved
	i.pressed = false
	i.moved = false
	i.state = phaseIdle

	if wasDrag {
		return
	}
	if i.highlighted != "" {
		i.selectStation(i.highlighted)
	}
}

// Wheel zooms around the cursor. A positive delta zooms in.
func (i *Interaction) Wheel(delta, x, y float64) {
	factor := math.Pow(1.2, delta)
	i.vp.ZoomAt(i.vp.Scale*factor, x, y)
}

// TouchStart re-evaluates the gesture from scratch on every touch-count
// change: no drag or pinch state survives across one.
func (i *Interaction) TouchStart(touches []Touch) {
	i.touchCount = len(touches)
	i.moved = false

	switch len(touches) {
	case 1:
		i.pressed = true
		i.pressX, i.pressY = touches[0].X, touches[0].Y
		i.panStartX, i.panStartY = i.vp.PanX, i.vp.PanY
		i.state = phaseIdle
	case 2:
		i.pressed = false
		i.state = phasePinching
		i.pinchStartDist = touchDist(touches[0], touches[1])
		i.pinchStartScale = i.vp.Scale
	default:
		i.pressed = false
		i.state = phaseIdle
	}
}

// TouchMove tracks a one-finger drag or a two-finger pinch.
func (i *Interaction) TouchMove(touches []Touch) {
	if len(touches) != i.touchCount {
		// Touch count changed without a start event; re-evaluate.
		i.TouchStart(touches)
		return
	}

	switch len(touches) {
	case 1:
		dx := touches[0].X - i.pressX
		dy := touches[0].Y - i.pressY
		if !i.moved && math.Hypot(dx, dy) >= touchMoveThresholdPx {
			i.moved = true
			i.state = phaseDragging
		}
		if i.moved && i.vp.Scale > MinZoom {
			i.vp.SetPan(i.panStartX+dx, i.panStartY+dy)
		}
	case 2:
		if i.pinchStartDist <= 0 {
			return
		}
		i.moved = true
		cx := (touches[0].X + touches[1].X) / 2
		cy := (touches[0].Y + touches[1].Y) / 2
		i.vp.ZoomAt(i.pinchStartScale*touchDist(touches[0], touches[1])/i.pinchStartDist, cx, cy)
	}
}

// TouchEnd completes the sequence once all fingers lift. A single-finger
// release with no gesture runs the two-phase tap selection: first tap
// highlights, a second tap on the same station selects, anything else
// retargets or clears the tapped state.
func (i *Interaction) TouchEnd(remaining []Touch, lastX, lastY float64) {
	if len(remaining) > 0 {
		// Sequence continues with fewer fingers; re-evaluate from scratch.
		i.TouchStart(remaining)
		return
	}

	wasGesture := i.moved || i.state == phasePinching
	singleTap := i.touchCount == 1 && !wasGesture

	i.touchCount = 0
	i.pressed = false
	i.moved = false
	i.state = phaseIdle
	i.pinchStartDist = 0

	if !singleTap {
		return
	}

	candidate := i.candidateAt(lastX, lastY)
	switch {
	case candidate == "":
		i.tapped = ""
		i.setHighlight("")
	case candidate == i.tapped:
		i.tapped = ""
		i.setHighlight("")
		i.selectStation(candidate)
	default:
		// First tap on this station: highlight and label it, arm the
		// confirming tap.
		i.tapped = candidate
		i.setHighlight(candidate)
	}
}

func touchDist(a, b Touch) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
