package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/bluehorizon/skydesk/api/responses"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is anything the readiness check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Skydesk-Env", env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the local store and every optional dependency. Nil
// checks are skipped.
func HealthReady(env string, logg *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Skydesk-Env", env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		var failed []string
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				status[name] = "down"
				failed = append(failed, name)
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"dependency": name, "error": err.Error()}), "readiness check failed")
				}
				continue
			}
			status[name] = "up"
		}
		if len(failed) > 0 {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeStorage, "dependency unavailable"))
			return
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
