package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ============================================================================
// Health Probing
// ============================================================================

// HealthResult is one analyzer's health probe outcome.
type HealthResult struct {
	Name           string    `json:"name"`
	Status         string    `json:"status"` // healthy, offline, error
	ResponseTimeMS int64     `json:"response_time_ms"`
	LastCheck      time.Time `json:"last_check"`
	Error          string    `json:"error,omitempty"`
}

// Health statuses.
const (
	HealthHealthy = "healthy"
	HealthOffline = "offline"
	HealthError   = "error"
)

// CheckHealth probes the analyzer's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) HealthResult {
	result := HealthResult{
		Name:      c.Analyzer.ID,
		LastCheck: time.Now().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Analyzer.HealthURL(), nil)
	if err != nil {
		result.Status = HealthError
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	result.ResponseTimeMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = HealthOffline
		result.Error = err.Error()
		log.Debugf("%s: health check failed: %v", c.Analyzer.ID, err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Status = HealthError
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return result
	}

	result.Status = HealthHealthy
	return result
}

// ProbeAll checks every client concurrently and returns results in
// roster order.
func ProbeAll(ctx context.Context, clients []*Client) []HealthResult {
	results := make([]HealthResult, len(clients))

	var wg sync.WaitGroup
	for i, client := range clients {
		wg.Add(1)
		go func(i int, client *Client) {
			defer wg.Done()
			results[i] = client.CheckHealth(ctx)
		}(i, client)
	}
	wg.Wait()

	return results
}

// Summarize folds probe results into an overall service status:
// healthy when all analyzers respond, degraded when most do, critical
// when half or more are down, error when none respond.
func Summarize(results []HealthResult) (status string, healthy int) {
	for _, r := range results {
		if r.Status == HealthHealthy {
			healthy++
		}
	}

	total := len(results)
	switch {
	case total == 0 || healthy == 0:
		status = "error"
	case healthy == total:
		status = "healthy"
	case healthy*2 > total:
		status = "degraded"
	default:
		status = "critical"
	}
	return status, healthy
}
