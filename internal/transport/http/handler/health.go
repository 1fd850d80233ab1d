package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Dependency is one backing service probed by the health check.
type Dependency struct {
	Name string
	// Optional dependencies are reported but do not fail the check.
	Optional bool
	Check    func(ctx context.Context) error
}

type HealthHandler struct {
	appName      string
	env          string
	startedAt    time.Time
	dependencies []Dependency
}

type dependencyStatus struct {
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
}

func NewHealthHandler(appName, env string, startedAt time.Time, dependencies ...Dependency) *HealthHandler {
	return &HealthHandler{
		appName:      appName,
		env:          env,
		startedAt:    startedAt,
		dependencies: dependencies,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	statuses := make(map[string]dependencyStatus, len(h.dependencies))
	allOK := true

	g, gctx := errgroup.WithContext(ctx)
	for _, dep := range h.dependencies {
		dep := dep
		g.Go(func() error {
			status := dependencyStatus{OK: true, Optional: dep.Optional}
			if err := dep.Check(gctx); err != nil {
				status = dependencyStatus{OK: false, Optional: dep.Optional, Message: err.Error()}
			}
			mu.Lock()
			statuses[dep.Name] = status
			if !status.OK && !dep.Optional {
				allOK = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"app":          h.appName,
		"env":          h.env,
		"ok":           allOK,
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
		"dependencies": statuses,
	})
}
