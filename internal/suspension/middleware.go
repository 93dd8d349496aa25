// internal/suspension/middleware.go
package suspension

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "agentgate_suspension_rejected_total",
	Help: "Requests rejected while the suspension gate was armed.",
})

// Gate rejects all traffic with 503 while suspended, except liveness,
// metrics, and the emergency endpoints needed to resume.
func Gate(state *State) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !state.Suspended() || exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			rejectedTotal.Inc()
			info := state.Snapshot()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":        "service suspended",
				"suspended_at": info.SuspendedAt,
				"reason":       info.Reason,
			})
		})
	}
}

func exempt(path string) bool {
	if path == "/healthz" || path == "/metrics" {
		return true
	}
	return strings.HasPrefix(path, "/emergency/")
}
