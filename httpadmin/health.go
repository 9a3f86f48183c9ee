package httpadmin

import (
	"net/http"

	"github.com/carlosmarte/fastify-multi-tenant-sub001/health"
)

// HealthHandler runs every check of agg and answers 200 while the aggregate
// is ready, 503 otherwise. With ?cached=1 the last result is served when
// one exists.
func HealthHandler(agg *health.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, ok := health.AggregatedStatus{}, false
		if r.URL.Query().Get("cached") == "1" {
			status, ok = agg.Last()
		}
		if !ok {
			status = agg.CheckAll(r.Context())
		}
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}
