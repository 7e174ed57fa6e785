package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ice9innovations/api/internal/analyzer"
)

// handleHealth serves the aggregate health view.
// GET /health
func (s *Server) handleHealth(c *gin.Context) {
	results := analyzer.ProbeAll(c.Request.Context(), s.orch.Clients())
	status, healthy := analyzer.Summarize(results)

	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"healthy_services": fmt.Sprintf("%d/%d", healthy, len(results)),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

// handleServicesHealth serves the per-analyzer probe detail.
// GET /services/health
func (s *Server) handleServicesHealth(c *gin.Context) {
	results := analyzer.ProbeAll(c.Request.Context(), s.orch.Clients())
	status, healthy := analyzer.Summarize(results)

	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"healthy_services": fmt.Sprintf("%d/%d", healthy, len(results)),
		"services":         results,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}
