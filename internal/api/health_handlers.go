package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/subtitlelens/subtitlelens-server/internal/store"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"store":      s.checkStore(ctx),
		"credential": s.checkCredential(ctx),
		"sessions":   s.checkSessions(),
		"sse":        s.checkSSEManager(),
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkStore verifies the settings database is readable.
func (s *Server) checkStore(ctx context.Context) ComponentHealth {
	if s.deps.Settings == nil {
		return ComponentHealth{Status: "degraded", Message: "settings store not configured"}
	}

	start := time.Now()
	_, err := s.deps.Settings.Get(ctx, store.KeyMiningDeckID)
	latency := time.Since(start)

	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "settings read failed",
		}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}

// checkCredential reports whether a vocabulary API key is stored. Without
// one every session halts on its first lookup.
func (s *Server) checkCredential(ctx context.Context) ComponentHealth {
	if s.deps.Settings == nil {
		return ComponentHealth{Status: "degraded", Message: "settings store not configured"}
	}
	if _, err := s.deps.Settings.Get(ctx, store.KeyJPDBAPIKey); err != nil {
		return ComponentHealth{Status: "degraded", Message: "vocabulary api key not set"}
	}
	return ComponentHealth{Status: "healthy"}
}

func (s *Server) checkSessions() ComponentHealth {
	if s.deps.Sessions == nil {
		return ComponentHealth{Status: "unhealthy", Message: "session manager not configured"}
	}
	return ComponentHealth{Status: "healthy", Message: strconv.Itoa(s.deps.Sessions.Len()) + " sessions"}
}

func (s *Server) checkSSEManager() ComponentHealth {
	if s.deps.SSEManager == nil {
		return ComponentHealth{Status: "degraded", Message: "event stream not configured"}
	}
	return ComponentHealth{Status: "healthy", Message: strconv.Itoa(s.deps.SSEManager.ClientCount()) + " clients"}
}
