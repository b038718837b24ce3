package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks liveness of one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports service liveness and dependency status.
type Health struct {
	deps map[string]Pinger
}

// NewHealth creates a Health handler over the named dependencies. Nil
// entries are skipped.
func NewHealth(deps map[string]Pinger) *Health {
	return &Health{deps: deps}
}

// Get answers GET /api/health.
func (h *Health) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(h.deps))
	for name, p := range h.deps {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}
