package watch

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ficojok/ZETdev/internal/gtfs"
)

// HealthSource reports the realtime state the health endpoint exposes.
type HealthSource interface {
	Health() gtfs.HealthStatus
}

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status       string    `json:"status"`
	Detail       string    `json:"detail,omitempty"`
	StaticLoaded bool      `json:"static_loaded"`
	LastUpdate   time.Time `json:"last_update"`
	Vehicles     int       `json:"vehicles"`
	TripUpdates  int       `json:"trip_updates"`
}

// healthHandler answers 200 once a realtime snapshot has been fetched and the
// last fetch succeeded, and 503 otherwise.
func healthHandler(source HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if source == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(HealthResponse{
				Status: "unavailable",
				Detail: "manager not initialized",
			})
			return
		}

		h := source.Health()
		resp := HealthResponse{
			Status:       "ok",
			StaticLoaded: h.StaticLoaded,
			LastUpdate:   h.LastUpdate,
			Vehicles:     h.Vehicles,
			TripUpdates:  h.TripUpdates,
		}

		switch {
		case h.LastUpdate.IsZero() && h.LastError == "":
			resp.Status = "starting"
			resp.Detail = "waiting for the first realtime fetch"
		case !h.Healthy:
			resp.Status = "unavailable"
			resp.Detail = h.LastError
		}

		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
