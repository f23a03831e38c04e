package geo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-marketplace/internal/models"
)

// RoutingClient performs distance lookups against an OSRM-compatible HTTP
// routing server.
type RoutingClient struct {
	Endpoint string
	Client   *http.Client
}

func NewRoutingClient(endpoint string) *RoutingClient {
	return &RoutingClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// DistanceKm queries /route between points and returns distance in km.
func (o *RoutingClient) DistanceKm(from, to models.Location) (float64, error) {
	// route query: /route/v1/driving/{lng1},{lat1};{lng2},{lat2}?overview=false
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false",
		o.Endpoint, from.Lng, from.Lat, to.Lng, to.Lat)
	resp, err := o.Client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"` // meters
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return 0, fmt.Errorf("routing: no route: %v", out.Code)
	}
	return out.Routes[0].Distance / 1000.0, nil
}
