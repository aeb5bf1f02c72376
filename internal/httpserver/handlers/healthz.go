package handlers

import (
	"net/http"
	"time"

	"github.com/runnerr0/histlens/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	CachedBundles int     `json:"cached_bundles"`
	Archive       bool    `json:"archive"`
}

func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Cache.Len(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "cache unavailable")
			return
		}
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			UptimeSeconds: time.Since(start).Seconds(),
			Version:       d.Version,
			CachedBundles: n,
			Archive:       d.Archive != nil,
		})
	}
}
