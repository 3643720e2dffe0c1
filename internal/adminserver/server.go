// Package adminserver exposes a small read-only HTTP surface — health,
// Prometheus metrics, and checkpoint/watermark introspection — adapted
// from the teacher's chi-based router/middleware wiring.
package adminserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/truecivic/ingestor/internal/domain"
)

// New builds the admin chi.Router: /healthz, /metrics, and
// /debug/checkpoints and /debug/watermarks reporting one entry per name in
// jobNames (an empty object when jobNames is empty).
// adminTokenHash, if non-empty, gates the /debug/* surface behind a Bearer
// token verified against the hash (see HashToken); /healthz and /metrics
// stay open for load balancer and scrape probes.
func New(jobNames []string, checkpoints domain.CheckpointStore, watermarks domain.WatermarkStore, adminTokenHash string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{http.MethodGet}}))
	r.Use(httprate.LimitByIP(20, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return requireBearerToken(adminTokenHash, next) })

		r.Get("/debug/watermarks", func(w http.ResponseWriter, r *http.Request) {
			out := make(map[string]domain.Watermark, len(jobNames))
			for _, name := range jobNames {
				wm, err := watermarks.Get(r.Context(), name)
				if err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				out[name] = wm
			}
			writeJSON(w, out)
		})

		r.Get("/debug/checkpoints", func(w http.ResponseWriter, r *http.Request) {
			window := time.Now().UTC().Truncate(time.Hour)
			out := make(map[string]any, len(jobNames))
			for _, name := range jobNames {
				cp, ok, err := checkpoints.Get(r.Context(), name, window)
				if err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				if !ok {
					out[name] = nil
					continue
				}
				out[name] = cp
			}
			writeJSON(w, out)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
