package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/internal/config"
)

// ============================================================================
// Analyzer HTTP Client
// ============================================================================
//
// One client per configured analyzer. All analyzers expose the same
// unified contract: GET <endpoint>?url=<u> or ?file=<p> returning
// {service, status, predictions[], metadata{}, error?}.
// ============================================================================

// Client talks to a single analyzer endpoint.
type Client struct {
	Analyzer   config.Analyzer
	HTTPClient *http.Client

	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a client for one analyzer. The timeout bounds each
// attempt end to end: connect, send, and receive.
func NewClient(a config.Analyzer, timeout time.Duration, maxRetries int, retryDelay time.Duration) *Client {
	return &Client{
		Analyzer: a,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Input identifies the image to analyze: exactly one of URL or File.
type Input struct {
	URL  string
	File string
}

// query renders the input as the analyzer's query parameter.
func (in Input) query() url.Values {
	params := url.Values{}
	if in.URL != "" {
		params.Set("url", in.URL)
	} else {
		params.Set("file", in.File)
	}
	return params
}

// AnalyzeURL analyzes an image reachable over HTTP.
func (c *Client) AnalyzeURL(ctx context.Context, imageURL string) AnalysisResult {
	return c.analyze(ctx, Input{URL: imageURL})
}

// AnalyzeFile analyzes a local image file. When the analyzer prefers a
// resized variant, a matching sibling under variants/<size>/ is used if
// one exists.
func (c *Client) AnalyzeFile(ctx context.Context, path string) AnalysisResult {
	return c.analyze(ctx, Input{File: c.resolveVariant(path)})
}

// Analyze dispatches on the input kind.
func (c *Client) Analyze(ctx context.Context, in Input) AnalysisResult {
	if in.URL != "" {
		return c.AnalyzeURL(ctx, in.URL)
	}
	return c.AnalyzeFile(ctx, in.File)
}

// analyze performs the GET with retry on transport failures. Retries
// never apply to a decoded status="error" payload, and never start once
// the deadline is within one retry delay.
func (c *Client) analyze(ctx context.Context, in Input) AnalysisResult {
	reqURL := fmt.Sprintf("%s?%s", c.Analyzer.AnalyzeURL(), in.query().Encode())

	var last AnalysisResult
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if !c.waitRetry(ctx) {
				return last
			}
			log.Debugf("%s: retry %d/%d", c.Analyzer.ID, attempt, c.maxRetries)
		}

		res, retryable := c.doRequest(ctx, reqURL)
		if res.OK || !retryable {
			return res
		}
		last = res
	}
	return last
}

// waitRetry sleeps the backoff delay unless the deadline would expire
// before another attempt could do useful work.
func (c *Client) waitRetry(ctx context.Context) bool {
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < c.retryDelay {
			return false
		}
	}
	select {
	case <-time.After(c.retryDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

// doRequest performs a single attempt. The second return value reports
// whether the failure is transport-level and therefore retryable.
func (c *Client) doRequest(ctx context.Context, reqURL string) (AnalysisResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Failure(ErrProtocol, fmt.Sprintf("failed to create request: %v", err)), false
	}
	req.Header.Set("Accept", "application/json")

	log.Tracef("%s: GET %s", c.Analyzer.ID, reqURL)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		return Failure(kind, err.Error()), true
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure(ErrTimeout, fmt.Sprintf("failed to read response: %v", err)), true
	}

	if resp.StatusCode != http.StatusOK {
		return Failure(ErrService, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))), false
	}

	return c.decode(body), false
}

// decode parses the unified response document and validates predictions.
func (c *Client) decode(body []byte) AnalysisResult {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return Failure(ErrProtocol, fmt.Sprintf("failed to parse response: %v", err))
	}

	switch wire.Status {
	case "success":
	case "error":
		return Failure(ErrService, wire.Error.String())
	default:
		return Failure(ErrProtocol, fmt.Sprintf("missing or unknown status %q", wire.Status))
	}
	if wire.Service == "" {
		return Failure(ErrProtocol, "response missing service field")
	}

	predictions := make([]Prediction, 0, len(wire.Predictions))
	for i, raw := range wire.Predictions {
		var p Prediction
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warnf("%s: dropping unparseable prediction %d: %v", c.Analyzer.ID, i, err)
			continue
		}
		if !knownTypes[p.Type] {
			log.Warnf("%s: dropping prediction %d with unknown type %q", c.Analyzer.ID, i, p.Type)
			continue
		}
		if p.Confidence < 0 {
			p.Confidence = 0
		} else if p.Confidence > 1 {
			p.Confidence = 1
		}
		predictions = append(predictions, p)
	}

	log.Debugf("%s: %d prediction(s) in %.3fs", c.Analyzer.ID, len(predictions), wire.Metadata.ProcessingTime)
	return AnalysisResult{
		OK:          true,
		Predictions: predictions,
		Metadata:    wire.Metadata,
	}
}

// Score calls the similarity endpoint with an image and a caption,
// returning a score in [0,1].
// GET /v3/score?url=<u>|file=<p>&caption=<c>
func (c *Client) Score(ctx context.Context, in Input, caption string) (float64, error) {
	params := in.query()
	params.Set("caption", caption)
	reqURL := fmt.Sprintf("%s/v3/score?%s", c.Analyzer.BaseURL(), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.Tracef("%s: GET %s", c.Analyzer.ID, reqURL)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("similarity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("similarity endpoint returned HTTP %d", resp.StatusCode)
	}

	var score scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return 0, fmt.Errorf("failed to decode similarity response: %w", err)
	}
	if score.Status != "success" {
		return 0, fmt.Errorf("similarity endpoint returned status %q", score.Status)
	}
	if score.SimilarityScore < 0 || score.SimilarityScore > 1 {
		return 0, fmt.Errorf("similarity score %f out of range", score.SimilarityScore)
	}

	return score.SimilarityScore, nil
}

// resolveVariant maps a file path to the analyzer's preferred resized
// variant when one exists on disk. Absence is not an error; the original
// path is used.
//
// Candidates are probed in deterministic order under
// <dir>/variants/<size>/: first the basename with a .jpg extension,
// then the basename as-is.
func (c *Client) resolveVariant(path string) string {
	if !c.Analyzer.WantsVariant() {
		return path
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	variantDir := filepath.Join(dir, "variants", c.Analyzer.OptimalSize)

	candidates := []string{
		filepath.Join(variantDir, stem+".jpg"),
		filepath.Join(variantDir, base),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			log.Tracef("%s: using %s variant %s", c.Analyzer.ID, c.Analyzer.OptimalSize, candidate)
			return candidate
		}
	}
	return path
}

// classifyTransportError sorts a transport failure into the offline or
// timeout kind. Deadline expiry and connection resets mean the service
// was reachable but too slow; refusals and DNS failures mean it is gone.
func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if strings.Contains(err.Error(), "connection reset") {
		return ErrTimeout
	}
	return ErrOffline
}

// truncate bounds an error string for status reporting.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
