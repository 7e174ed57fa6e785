package orchestrator

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/internal/config"
	"github.com/ice9innovations/api/internal/imagedata"
	"github.com/ice9innovations/api/internal/metrics"
)

// ============================================================================
// Fan-Out Orchestrator
// ============================================================================
//
// One image in, one result map out. Every analyzer is called
// concurrently under a shared deadline; an individual failure degrades
// the request but never fails it.
// ============================================================================

// Orchestrator fans one request out to the full analyzer roster.
type Orchestrator struct {
	cfg     *config.Config
	clients []*analyzer.Client
}

// New builds clients for every configured analyzer.
func New(cfg *config.Config) *Orchestrator {
	clients := make([]*analyzer.Client, 0, len(cfg.Analyzers))
	for _, a := range cfg.Analyzers {
		clients = append(clients, analyzer.NewClient(a, cfg.AnalyzerTimeout, cfg.MaxRetries, cfg.RetryDelay))
	}
	return &Orchestrator{cfg: cfg, clients: clients}
}

// Clients returns the roster's clients in configuration order.
func (o *Orchestrator) Clients() []*analyzer.Client {
	return o.clients
}

// SimilarityClient returns the client of the configured similarity
// service, or nil when caption scoring is disabled.
func (o *Orchestrator) SimilarityClient() *analyzer.Client {
	if o.cfg.SimilarityService == "" {
		return nil
	}
	for _, c := range o.clients {
		if c.Analyzer.ID == o.cfg.SimilarityService {
			return c
		}
	}
	return nil
}

// HealthSummary reports degraded analyzers for one request.
type HealthSummary struct {
	DegradedServices []string `json:"degraded_services"`
	FailedCount      int      `json:"failed_count"`
	TotalServices    int      `json:"total_services"`
}

// RunResult is the orchestrator's output for one image.
type RunResult struct {
	// Results maps analyzer ID to its outcome. Every configured
	// analyzer has an entry.
	Results map[string]analyzer.AnalysisResult

	// Statuses lists per-service outcomes in roster order.
	Statuses []analyzer.ServiceStatus

	// Dimensions are the display dimensions of the local image, or nil
	// when measurement failed (coordinate rescaling becomes identity).
	Dimensions *imagedata.Dimensions

	// Health is non-nil when any analyzer was not successful.
	Health *HealthSummary
}

// Analyze fans the input out to every analyzer and collects whatever
// finishes inside the request budget.
//
// localPath, when non-empty, is the image's on-disk location used for
// the central dimension measurement. It is independent of the input the
// analyzers receive: a downloaded URL is re-served to analyzers over
// HTTP while dimensions come from the local copy.
func (o *Orchestrator) Analyze(ctx context.Context, in analyzer.Input, localPath string) RunResult {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestBudget())
	defer cancel()

	out := RunResult{
		Results: make(map[string]analyzer.AnalysisResult, len(o.clients)),
	}

	if localPath != "" {
		dims, err := imagedata.Measure(localPath)
		if err != nil {
			log.Warnf("Dimension measurement failed for %s: %v (rescaling disabled)", localPath, err)
		} else {
			out.Dimensions = dims
		}
	}

	type outcome struct {
		id      string
		result  analyzer.AnalysisResult
		elapsed time.Duration
	}
	outcomes := make([]outcome, len(o.clients))

	var wg sync.WaitGroup
	for i, client := range o.clients {
		wg.Add(1)
		go func(i int, client *analyzer.Client) {
			defer wg.Done()
			start := time.Now()
			res := client.Analyze(ctx, in)
			outcomes[i] = outcome{id: client.Analyzer.ID, result: res, elapsed: time.Since(start)}
		}(i, client)
	}
	wg.Wait()

	summary := HealthSummary{TotalServices: len(o.clients)}
	for _, oc := range outcomes {
		out.Results[oc.id] = oc.result
		status := analyzer.StatusFor(oc.id, oc.result, oc.elapsed.Milliseconds())
		out.Statuses = append(out.Statuses, status)
		metrics.ObserveAnalyzerCall(oc.id, status.Status, oc.elapsed)

		if !oc.result.OK {
			summary.DegradedServices = append(summary.DegradedServices, oc.id)
			summary.FailedCount++
			log.Warnf("Analyzer %s degraded (%s): %s", oc.id, oc.result.ErrorKind, oc.result.ErrorMessage)
		}
	}
	if summary.FailedCount > 0 {
		out.Health = &summary
	}

	return out
}
