package monitoring

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker reports the health of a dependency
type HealthChecker interface {
	Health() error
}

// HealthHandler returns an HTTP handler exposing service health. The
// database is the only hard dependency; notification transport is best
// effort and deliberately not part of the check.
func HealthHandler(service string, db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK

		checks := map[string]string{}
		if err := db.Health(); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"service":   service,
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
