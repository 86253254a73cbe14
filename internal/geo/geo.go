package geo

import "math"

const earthRadiusKm = 6371

// DistanceKm calculates the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// BBox is a geographic bounding box. North must be greater than South and
// East greater than West; the box is assumed not to cross the antimeridian.
type BBox struct {
	North float64
	South float64
	West  float64
	East  float64
}

// Croatia covers the whole country with a small margin. The widget's map
// plane is tuned for this box; it is not a general cartographic projection.
var Croatia = BBox{North: 46.6, South: 42.2, West: 13.2, East: 19.5}

// Contains reports whether the point lies inside the box.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Point is a position on the logical map plane, in the same units as the
// plane's view size. X grows east, Y grows south (screen convention).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Plane is a linear (equirectangular) mapping from a fixed bounding box
// onto a flat 2D surface. WidthCorrection visually compensates for the
// projection's horizontal distortion at the target latitude band; it only
// stretches the plane, the geographic math underneath is unchanged.
type Plane struct {
	BBox            BBox
	Width           float64
	Height          float64
	WidthCorrection float64
}

// NewPlane builds a plane of the given logical size over the box.
// A correction factor <= 0 is treated as 1 (no correction).
func NewPlane(box BBox, width, height, correction float64) Plane {
	if correction <= 0 {
		correction = 1
	}
	return Plane{BBox: box, Width: width, Height: height, WidthCorrection: correction}
}

// EffectiveWidth is the plane width after the horizontal correction.
func (p Plane) EffectiveWidth() float64 {
	return p.Width * p.WidthCorrection
}

// Project maps geographic coordinates onto the plane. X scales with
// longitude; Y scales inversely with latitude so that north is up.
func (p Plane) Project(lat, lon float64) Point {
	fx := (lon - p.BBox.West) / (p.BBox.East - p.BBox.West)
	fy := (p.BBox.North - lat) / (p.BBox.North - p.BBox.South)
	return Point{X: fx * p.EffectiveWidth(), Y: fy * p.Height}
}

// Unproject is the exact inverse of Project.
func (p Plane) Unproject(pt Point) (lat, lon float64) {
	fx := pt.X / p.EffectiveWidth()
	fy := pt.Y / p.Height
	lon = p.BBox.West + fx*(p.BBox.East-p.BBox.West)
	lat = p.BBox.North - fy*(p.BBox.North-p.BBox.South)
	return lat, lon
}
