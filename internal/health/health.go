// internal/health/health.go
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"agentgate/internal/suspension"
)

// Handler probes the backing store. Suspension never turns the probe
// unhealthy; it is surfaced as metadata so orchestrators keep the process
// alive while the gate is armed.
func Handler(dbPool *pgxpool.Pool, state *suspension.State, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		dbOK := true
		if dbPool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			var one int
			if err := dbPool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
				log.Errorw("health probe failed", "err", err)
				dbOK = false
				status = http.StatusServiceUnavailable
			}
			cancel()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         dbOK,
			"suspension": state.Snapshot(),
		})
	}
}
