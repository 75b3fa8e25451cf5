package optimizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wwada/optiroute/entity"
	"github.com/wwada/optiroute/infra"
)

// ErrTooFewStops is a user-input error, not a provider failure: routes
// need at least two geocoded stops.
var ErrTooFewStops = errors.New("at least 2 stops with resolved coordinates are required")

// OptimizationError marks a fatal phase-1 failure. The upstream detail
// travels with it so the worker can store it in the job result.
type OptimizationError struct {
	Detail string
	Err    error
}

func (e *OptimizationError) Error() string {
	return fmt.Sprintf("route optimization failed: %s", e.Detail)
}

func (e *OptimizationError) Unwrap() error {
	return e.Err
}

// ReorderProvider is the waypoint-reordering upstream (phase 1).
// Satisfied by infra.RoutingService.
type ReorderProvider interface {
	OptimizeWaypoints(ctx context.Context, coords []entity.Coordinates) (*entity.WaypointOptimization, error)
}

// GeometryProvider is the route-geometry upstream (phase 2). Satisfied by
// infra.RoutingService.
type GeometryProvider interface {
	CalculateRoute(ctx context.Context, ordered []entity.Coordinates) (*entity.RouteGeometry, error)
}

type RouteOptimizer struct {
	reorder  ReorderProvider
	geometry GeometryProvider
	logger   *infra.LoggerClient
}

func New(reorder ReorderProvider, geometry GeometryProvider, logger *infra.LoggerClient) *RouteOptimizer {
	return &RouteOptimizer{
		reorder:  reorder,
		geometry: geometry,
		logger:   logger,
	}
}

// Optimize runs the two-phase pipeline: reorder the stop set, then fetch
// road geometry for the fixed order, then merge. The order must be fixed
// before geometry can be requested, so the phases are strictly
// sequential. Phase-1 failure is fatal; phase-2 failure degrades to the
// phase-1 summary with empty geometry.
func (o *RouteOptimizer) Optimize(ctx context.Context, jobID uuid.UUID, stops []entity.Stop) (*entity.RouteResult, error) {
	resolved := make([]entity.Stop, 0, len(stops))
	coords := make([]entity.Coordinates, 0, len(stops))
	for _, stop := range stops {
		if stop.Coordinates == nil {
			continue
		}
		resolved = append(resolved, stop)
		coords = append(coords, *stop.Coordinates)
	}

	if len(resolved) < 2 {
		return nil, ErrTooFewStops
	}

	// Phase 1: order optimization over the whole point set.
	o.logger.InfoWithContextf(ctx, "[Optimizer] [%s] Requesting visiting order for %d stops", jobID, len(resolved))
	optimization, err := o.reorder.OptimizeWaypoints(ctx, coords)
	if err != nil {
		return nil, &OptimizationError{Detail: err.Error(), Err: err}
	}

	sorted, err := applyPermutation(resolved, optimization.OptimizedOrder)
	if err != nil {
		return nil, &OptimizationError{Detail: err.Error(), Err: err}
	}

	// Phase 2: geometry for the now-fixed order.
	orderedCoords := make([]entity.Coordinates, len(sorted))
	for i, stop := range sorted {
		orderedCoords[i] = *stop.Coordinates
	}

	result := &entity.RouteResult{
		OptimizedOrder: optimization.OptimizedOrder,
		Stops:          sorted,
		Summary:        optimization.Summary,
		Geometry:       []entity.GeometryPoint{},
	}

	geometry, err := o.geometry.CalculateRoute(ctx, orderedCoords)
	if err != nil {
		// Non-fatal: the visiting order stands, the caller just gets the
		// coarse phase-1 summary and no road path.
		o.logger.WarningWithContextf(ctx, "[Optimizer] [%s] Geometry fetch failed, returning degraded result: %v", jobID, err)
		result.Degraded = true
		return result, nil
	}

	summary := geometry.Summary
	result.Summary = &summary
	result.Geometry = geometry.Points

	return result, nil
}

// applyPermutation reorders stops by the provider's index sequence and
// rejects anything that is not a complete permutation of the input.
func applyPermutation(stops []entity.Stop, order []int) ([]entity.Stop, error) {
	if len(order) != len(stops) {
		return nil, fmt.Errorf("provider returned %d indices for %d stops", len(order), len(stops))
	}

	sorted := make([]entity.Stop, len(stops))
	seen := make([]bool, len(stops))
	for i, idx := range order {
		if idx < 0 || idx >= len(stops) {
			return nil, fmt.Errorf("provider returned out-of-range index %d", idx)
		}
		if seen[idx] {
			return nil, fmt.Errorf("provider returned duplicate index %d", idx)
		}
		seen[idx] = true
		sorted[i] = stops[idx]
	}

	return sorted, nil
}
