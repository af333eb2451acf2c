package delivery

// Maximum offset in degrees applied to each axis of the reference point
// (roughly a 10 km radius).
const locationSpread = 0.18

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SimulatedLocation picks a point around base, offset by up to ±0.09 degrees
// on each axis. It stands in for a client GPS fix.
func SimulatedLocation(base Point, rnd RandomSource) Point {
	return Point{
		Lat: base.Lat + (rnd.Float64()-0.5)*locationSpread,
		Lng: base.Lng + (rnd.Float64()-0.5)*locationSpread,
	}
}
