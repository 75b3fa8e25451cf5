package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wwada/optiroute/config"
	"github.com/wwada/optiroute/entity"
)

// RoutingService talks to the two TomTom routing capabilities: waypoint
// optimization (point set in, permutation out) and route calculation
// (ordered path in, summary plus geometry out).
type RoutingService struct {
	APIKey          string
	OptimizationURL string
	RoutingURL      string

	httpClient *http.Client
}

func InitRoutingService(cfg *config.EnvConfig) *RoutingService {
	return &RoutingService{
		APIKey:          cfg.TomTom.APIKey,
		OptimizationURL: cfg.TomTom.OptimizationURL,
		RoutingURL:      cfg.TomTom.RoutingURL,
		httpClient:      &http.Client{Timeout: cfg.TomTom.Timeout},
	}
}

type waypointOptimizationRequest struct {
	Waypoints []waypoint                  `json:"waypoints"`
	Options   waypointOptimizationOptions `json:"options"`
}

type waypoint struct {
	Point point `json:"point"`
}

type point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type waypointOptimizationOptions struct {
	TravelMode          string              `json:"travelMode"`
	Traffic             string              `json:"traffic"`
	DepartAt            string              `json:"departAt"`
	WaypointConstraints waypointConstraints `json:"waypointConstraints"`
	OutputExtensions    []string            `json:"outputExtensions"`
}

type waypointConstraints struct {
	OriginIndex      int `json:"originIndex"`
	DestinationIndex int `json:"destinationIndex"`
}

type waypointOptimizationResponse struct {
	OptimizedOrder []int `json:"optimizedOrder"`
	Summary        *struct {
		RouteLengthInMeters int `json:"routeLengthInMeters"`
		TravelTimeInSeconds int `json:"travelTimeInSeconds"`
	} `json:"summary"`
}

// OptimizeWaypoints sends the full point set in one batch and returns the
// provider's visiting order. A response without a permutation is a
// provider contract violation.
func (s *RoutingService) OptimizeWaypoints(ctx context.Context, coords []entity.Coordinates) (*entity.WaypointOptimization, error) {
	payload := waypointOptimizationRequest{
		Waypoints: make([]waypoint, 0, len(coords)),
		Options: waypointOptimizationOptions{
			TravelMode: "car",
			Traffic:    "live",
			DepartAt:   "now",
			WaypointConstraints: waypointConstraints{
				OriginIndex:      -1,
				DestinationIndex: -1,
			},
			OutputExtensions: []string{"travelTimes", "routeLengths"},
		},
	}
	for _, c := range coords {
		payload.Waypoints = append(payload.Waypoints, waypoint{Point: point{Latitude: c.Latitude, Longitude: c.Longitude}})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal optimization request: %w", err)
	}

	url := fmt.Sprintf("%s?key=%s", s.OptimizationURL, s.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create optimization request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("optimization request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("optimization provider returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed waypointOptimizationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode optimization response: %w", err)
	}

	if len(parsed.OptimizedOrder) == 0 {
		return nil, fmt.Errorf("optimization provider returned no optimizedOrder")
	}

	result := &entity.WaypointOptimization{OptimizedOrder: parsed.OptimizedOrder}
	if parsed.Summary != nil {
		result.Summary = &entity.RouteSummary{
			LengthInMeters:      parsed.Summary.RouteLengthInMeters,
			TravelTimeInSeconds: parsed.Summary.TravelTimeInSeconds,
			Source:              entity.SummarySourceOptimization,
		}
	}

	return result, nil
}

type calculateRouteResponse struct {
	Routes []struct {
		Summary struct {
			LengthInMeters      int `json:"lengthInMeters"`
			TravelTimeInSeconds int `json:"travelTimeInSeconds"`
		} `json:"summary"`
		Legs []struct {
			Points []point `json:"points"`
		} `json:"legs"`
	} `json:"routes"`
}

// CalculateRoute fetches the road geometry for an already-ordered
// coordinate sequence, passed as a single colon-separated path.
func (s *RoutingService) CalculateRoute(ctx context.Context, ordered []entity.Coordinates) (*entity.RouteGeometry, error) {
	locations := make([]string, 0, len(ordered))
	for _, c := range ordered {
		locations = append(locations, fmt.Sprintf("%f,%f", c.Latitude, c.Longitude))
	}

	url := fmt.Sprintf("%s/%s/json?key=%s&travelMode=car", s.RoutingURL, strings.Join(locations, ":"), s.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create route request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("route provider returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed calculateRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode route response: %w", err)
	}

	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("route provider returned no routes")
	}

	route := parsed.Routes[0]
	points := make([]entity.GeometryPoint, 0)
	for _, leg := range route.Legs {
		for _, p := range leg.Points {
			points = append(points, entity.GeometryPoint{Latitude: p.Latitude, Longitude: p.Longitude})
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("route provider returned no geometry points")
	}

	return &entity.RouteGeometry{
		Summary: entity.RouteSummary{
			LengthInMeters:      route.Summary.LengthInMeters,
			TravelTimeInSeconds: route.Summary.TravelTimeInSeconds,
			Source:              entity.SummarySourceRoute,
		},
		Points: points,
	}, nil
}
