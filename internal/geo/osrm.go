package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cabride/internal/domain"
)

// OSRMRouter looks up road distances against an OSRM HTTP server.
type OSRMRouter struct {
	Endpoint string
	Client   *http.Client
}

// NewOSRMRouter creates an OSRMRouter with the given request timeout.
func NewOSRMRouter(endpoint string, timeout time.Duration) *OSRMRouter {
	return &OSRMRouter{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: timeout},
	}
}

// Name identifies the router in logs and metrics.
func (o *OSRMRouter) Name() string { return "osrm" }

// RouteKm queries /route between a and b and returns the distance of the first route.
func (o *OSRMRouter) RouteKm(ctx context.Context, a, b domain.Location) (float64, error) {
	// OSRM wants lon,lat order.
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false", o.Endpoint, a.Lng, a.Lat, b.Lng, b.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("osrm status %d", resp.StatusCode)
	}

	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode osrm response: %w", err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return 0, fmt.Errorf("osrm no route: %v", out.Code)
	}

	return out.Routes[0].Distance / 1000, nil
}
