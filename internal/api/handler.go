package api

import (
	"time"

	"vrijeme-widget/internal/geoloc"
	"vrijeme-widget/internal/mapview"
	"vrijeme-widget/internal/selection"
	"vrijeme-widget/internal/services"
	"vrijeme-widget/internal/stations"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RefreshTrigger lets the API request an out-of-cadence refresh (manual
// refresh button, visibility resume) without owning the scheduler.
type RefreshTrigger interface {
	Trigger(reason string)
}

type Handler struct {
	refresher *services.Refresher
	resolver  *selection.Resolver
	gateway   *geoloc.Gateway
	push      *geoloc.PushProvider
	trigger   RefreshTrigger
	prefs     selection.PreferenceStore
	viewport  *mapview.Viewport
	logger    *zap.Logger
}

func NewHandler(refresher *services.Refresher, resolver *selection.Resolver, gateway *geoloc.Gateway, push *geoloc.PushProvider, trigger RefreshTrigger, prefs selection.PreferenceStore, viewport *mapview.Viewport, logger *zap.Logger) *Handler {
	return &Handler{
		refresher: refresher,
		resolver:  resolver,
		gateway:   gateway,
		push:      push,
		trigger:   trigger,
		prefs:     prefs,
		viewport:  viewport,
		logger:    logger,
	}
}

// viewStation is the render-sink payload for a resolved station.
type viewStation struct {
	Name           string     `json:"name"`
	Title          string     `json:"title"`
	Subtitle       string     `json:"subtitle,omitempty"`
	Temperature    float64    `json:"temperature"`
	Humidity       *float64   `json:"humidity"`
	Pressure       *float64   `json:"pressure"`
	PressureTrend  *float64   `json:"pressure_trend"`
	WindSpeed      *float64   `json:"wind_speed"`
	WindDirection  string     `json:"wind_direction,omitempty"`
	Condition      string     `json:"condition,omitempty"`
	MeasuredAt     *time.Time `json:"measured_at"`
	DistanceKm     *float64   `json:"distance_km,omitempty"`
	Far            bool       `json:"far,omitempty"`
	AvgTemperature *float64   `json:"avg_temperature,omitempty"`
}

// GetWidget handles GET /api/v1/widget. It returns the full render contract:
// a resolved station, or one of the pending/geo_error/no_data/error states,
// plus the stale-snapshot notice.
func (h *Handler) GetWidget(c *fiber.Ctx) error {
	state := h.refresher.State()

	resp := fiber.Map{
		"source":       state.SourceID,
		"health":       state.Health.String(),
		"last_success": state.LastSuccess,
		"units":        h.units(),
	}
	if state.Health == services.HealthStale {
		resp["notice"] = "Showing last known data; the feed is currently unreachable."
	}

	switch state.Health {
	case services.HealthUnknown:
		resp["state"] = "pending"
		return c.JSON(resp)
	case services.HealthError:
		resp["state"] = "error"
		resp["error"] = state.LastError
		return c.JSON(resp)
	}

	idx := h.refresher.Index()
	if state.Snapshot.Empty() {
		resp["state"] = "no_data"
		return c.JSON(resp)
	}

	geoStatus, coords := h.gateway.Status()
	if h.resolver.Selection() == selection.NearestSentinel && coords == nil && geoStatus == geoloc.StatusUnknown {
		// Kick the single outstanding position request; overlapping calls
		// are dropped by the gateway.
		h.gateway.Request()
	}

	res := h.resolver.Resolve(idx, geoStatus, coords)
	if res.Fallback {
		resp["fallback"] = true
	}

	switch res.Kind {
	case selection.KindStation:
		src := h.refresher.ActiveSource()
		dn := stations.ParseDisplayName(res.Station.Name, src.NameSeparator, src.CityPrefixWhitelist)
		resp["state"] = "station"
		resp["station"] = viewStation{
			Name:           res.Station.Name,
			Title:          dn.Title,
			Subtitle:       dn.Subtitle,
			Temperature:    res.Station.Temperature,
			Humidity:       res.Station.Humidity,
			Pressure:       res.Station.Pressure,
			PressureTrend:  res.Station.PressureTrend,
			WindSpeed:      res.Station.WindSpeed,
			WindDirection:  res.Station.WindDirection,
			Condition:      res.Station.Condition,
			MeasuredAt:     res.Station.MeasuredAt,
			DistanceKm:     res.DistanceKm,
			Far:            res.Far,
			AvgTemperature: res.AvgTemperature,
		}
	case selection.KindPending:
		resp["state"] = "pending"
		resp["pending"] = "waiting for location"
	case selection.KindGeoError:
		resp["state"] = "geo_error"
		resp["geo_status"] = res.GeoStatus.String()
		resp["guidance"] = geoGuidance(res.GeoStatus)
	default:
		resp["state"] = "no_data"
	}

	return c.JSON(resp)
}

func geoGuidance(status geoloc.Status) string {
	if status == geoloc.StatusDenied {
		return "Location access was denied. Allow location access or pick a station on the map."
	}
	return "Your location could not be determined. Pick a station on the map instead."
}

// GetStations handles GET /api/v1/stations, the map layer's station list
// with display names; stations without coordinates are listed but flagged,
// so they stay name-selectable while staying out of hit-testing.
func (h *Handler) GetStations(c *fiber.Ctx) error {
	state := h.refresher.State()
	if state.Snapshot == nil {
		return c.JSON(fiber.Map{"stations": []any{}, "source": state.SourceID})
	}

	src := h.refresher.ActiveSource()
	list := make([]fiber.Map, 0, len(state.Snapshot.Stations))
	for name, st := range state.Snapshot.Stations {
		dn := stations.ParseDisplayName(name, src.NameSeparator, src.CityPrefixWhitelist)
		entry := fiber.Map{
			"name":        name,
			"title":       dn.Title,
			"temperature": st.Temperature,
			"located":     st.HasCoords(),
		}
		if dn.Subtitle != "" {
			entry["subtitle"] = dn.Subtitle
		}
		if st.HasCoords() {
			entry["lat"] = st.Lat
			entry["lon"] = st.Lon
		}
		list = append(list, entry)
	}

	return c.JSON(fiber.Map{"stations": list, "source": state.SourceID})
}

// GetMap handles GET /api/v1/map, the map surface description: the
// projected plane's dimensions, the zoom limits, and every located
// station's position on the plane. The client binding layers its own
// pan/zoom state on top of these base positions.
func (h *Handler) GetMap(c *fiber.Ctx) error {
	plane := h.viewport.Plane()
	state := h.refresher.State()

	positions := make([]fiber.Map, 0)
	if state.Snapshot != nil {
		for name, st := range state.Snapshot.Stations {
			if !st.HasCoords() {
				continue
			}
			pt := h.viewport.GeoToScreen(st.Lat, st.Lon)
			positions = append(positions, fiber.Map{
				"name":        name,
				"x":           pt.X,
				"y":           pt.Y,
				"temperature": st.Temperature,
			})
		}
	}

	return c.JSON(fiber.Map{
		"width":    plane.EffectiveWidth(),
		"height":   plane.Height,
		"min_zoom": mapview.MinZoom,
		"max_zoom": mapview.MaxZoom,
		"stations": positions,
	})
}

type selectRequest struct {
	Name    string `json:"name"`
	Nearest bool   `json:"nearest"`
}

// PostSelect handles POST /api/v1/select, a user pick from the map or the
// dropdown. Picking "nearest" after a terminal geolocation state re-issues
// the position request, since the permission may have changed externally.
func (h *Handler) PostSelect(c *fiber.Ctx) error {
	var req selectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed selection body",
		})
	}

	if req.Nearest || req.Name == "" {
		h.resolver.Select(selection.NearestSentinel)
		status, _ := h.gateway.Status()
		if status == geoloc.StatusDenied || status == geoloc.StatusUnavailable {
			h.gateway.Retry()
		} else {
			h.gateway.Request()
		}
		h.logger.Info("Selection set to nearest")
		return c.JSON(fiber.Map{"selection": selection.NearestSentinel})
	}

	if _, ok := h.refresher.State().Snapshot.Get(req.Name); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown station",
			"name":  req.Name,
		})
	}

	h.resolver.Select(req.Name)
	h.logger.Info("Station selected", zap.String("station", req.Name))
	return c.JSON(fiber.Map{"selection": req.Name})
}

type geolocationReport struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Reason string   `json:"error"` // "denied" or "unavailable"
}

// PostGeolocation handles POST /api/v1/geolocation, the platform binding
// reporting the outcome of the browser's position request.
func (h *Handler) PostGeolocation(c *fiber.Ctx) error {
	var report geolocationReport
	if err := c.BodyParser(&report); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed geolocation body",
		})
	}

	switch {
	case report.Lat != nil && report.Lon != nil:
		h.push.Report(geoloc.Coords{Lat: *report.Lat, Lon: *report.Lon})
	case report.Reason == "denied":
		h.push.ReportFailure(geoloc.ErrPermissionDenied)
	default:
		h.push.ReportFailure(geoloc.ErrPositionUnavailable)
	}

	status, _ := h.gateway.Status()
	return c.JSON(fiber.Map{"geo_status": status.String()})
}

// PostRefresh handles POST /api/v1/refresh, the manual refresh and
// visibility-resume trigger. Throttling happens in the refresher.
func (h *Handler) PostRefresh(c *fiber.Ctx) error {
	reason := c.Query("reason", "manual")
	h.trigger.Trigger(reason)
	return c.SendStatus(fiber.StatusAccepted)
}

type sourceRequest struct {
	ID string `json:"id"`
}

// PostSource handles POST /api/v1/source, the data-source toggle.
func (h *Handler) PostSource(c *fiber.Ctx) error {
	var req sourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed source body",
		})
	}

	if err := h.refresher.SwitchSource(req.ID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.trigger.Trigger("source-switch")
	return c.JSON(fiber.Map{"source": req.ID})
}

func (h *Handler) units() string {
	if v, ok := h.prefs.Get(selection.KeyUnits); ok && v != "" {
		return v
	}
	return "metric"
}

type unitsRequest struct {
	Units string `json:"units"`
}

// PostUnits handles POST /api/v1/units, the temperature unit toggle.
func (h *Handler) PostUnits(c *fiber.Ctx) error {
	var req unitsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed units body",
		})
	}

	if req.Units != "metric" && req.Units != "imperial" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown units",
			"units": req.Units,
		})
	}

	h.prefs.Set(selection.KeyUnits, req.Units)
	return c.JSON(fiber.Map{"units": req.Units})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	state := h.refresher.State()

	return c.JSON(fiber.Map{
		"status":       "healthy",
		"timestamp":    time.Now(),
		"feed_health":  state.Health.String(),
		"last_attempt": state.LastAttempt,
		"last_success": state.LastSuccess,
		"uptime":       time.Since(startTime).String(),
	})
}

var startTime = time.Now()
