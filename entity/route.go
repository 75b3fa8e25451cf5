package entity

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Stop is a single waypoint. Coordinates stay nil until the address has
// been geocoded.
type Stop struct {
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type SummarySource string

const (
	SummarySourceRoute        SummarySource = "route"
	SummarySourceOptimization SummarySource = "optimization"
)

type RouteSummary struct {
	LengthInMeters      int           `json:"length_in_meters"`
	TravelTimeInSeconds int           `json:"travel_time_in_seconds"`
	Source              SummarySource `json:"source"`
}

type GeometryPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// WaypointOptimization is the reordering provider's answer: a permutation
// of input indices plus an optional coarse summary.
type WaypointOptimization struct {
	OptimizedOrder []int
	Summary        *RouteSummary
}

// RouteGeometry is the geometry provider's answer for a fixed stop order.
type RouteGeometry struct {
	Summary RouteSummary
	Points  []GeometryPoint
}

// RouteResult merges both optimization phases.
type RouteResult struct {
	OptimizedOrder []int           `json:"optimized_order"`
	Stops          []Stop          `json:"stops"`
	Summary        *RouteSummary   `json:"summary,omitempty"`
	Geometry       []GeometryPoint `json:"geometry"`
	Degraded       bool            `json:"degraded"`
}
