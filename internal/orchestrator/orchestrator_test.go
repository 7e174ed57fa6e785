package orchestrator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/internal/config"
	"github.com/ice9innovations/api/internal/orchestrator"
)

// stubAnalyzer runs one httptest server with the given handler and
// returns its roster entry.
func stubAnalyzer(t *testing.T, id string, handler http.HandlerFunc) config.Analyzer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)
	return config.Analyzer{
		ID: id, Name: id, Host: parsed.Hostname(), Port: port,
		Endpoint: "/v3/analyze", Category: config.CategorySpatial,
	}
}

func successHandler(id string, count int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		predictions := make([]map[string]any, 0, count)
		for i := 0; i < count; i++ {
			predictions = append(predictions, map[string]any{
				"type": "classification", "label": "cat", "confidence": 0.9,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"service": id, "status": "success",
			"predictions": predictions,
			"metadata":    map[string]any{"processing_time": 0.1},
		})
	}
}

func slowHandler(delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
	}
}

func testPNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	path := filepath.Join(dir, "test.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testConfig(analyzers ...config.Analyzer) *config.Config {
	return &config.Config{
		Analyzers:       analyzers,
		AnalyzerTimeout: 300 * time.Millisecond,
		MaxRetries:      0,
		RetryDelay:      10 * time.Millisecond,
		RequestSlack:    200 * time.Millisecond,
	}
}

func TestFanOutCollectsAllAnalyzers(t *testing.T) {
	cfg := testConfig(
		stubAnalyzer(t, "yolo", successHandler("yolo", 2)),
		stubAnalyzer(t, "detectron2", successHandler("detectron2", 1)),
		stubAnalyzer(t, "clip", successHandler("clip", 3)),
	)

	orch := orchestrator.New(cfg)
	out := orch.Analyze(context.Background(), analyzer.Input{URL: "http://example.com/x.jpg"}, "")

	require.Len(t, out.Results, 3)
	require.Len(t, out.Statuses, 3)
	assert.Nil(t, out.Health, "all services healthy")

	// Statuses arrive in roster order regardless of completion order.
	assert.Equal(t, "yolo", out.Statuses[0].ServiceID)
	assert.Equal(t, "detectron2", out.Statuses[1].ServiceID)
	assert.Equal(t, "clip", out.Statuses[2].ServiceID)

	for _, s := range out.Statuses {
		assert.Equal(t, analyzer.StatusSuccess, s.Status)
	}
	assert.Equal(t, 2, out.Statuses[0].PredictionCount)
}

func TestPartialFailureDegradesButReturns(t *testing.T) {
	slow := stubAnalyzer(t, "slow1", slowHandler(2*time.Second))
	slow2 := stubAnalyzer(t, "slow2", slowHandler(2*time.Second))
	slow3 := stubAnalyzer(t, "slow3", slowHandler(2*time.Second))
	cfg := testConfig(
		stubAnalyzer(t, "yolo", successHandler("yolo", 1)),
		slow, slow2, slow3,
		stubAnalyzer(t, "clip", successHandler("clip", 1)),
	)

	orch := orchestrator.New(cfg)
	out := orch.Analyze(context.Background(), analyzer.Input{URL: "http://example.com/x.jpg"}, "")

	require.NotNil(t, out.Health)
	assert.Equal(t, 3, out.Health.FailedCount)
	assert.Equal(t, 5, out.Health.TotalServices)
	assert.ElementsMatch(t, []string{"slow1", "slow2", "slow3"}, out.Health.DegradedServices)

	assert.True(t, out.Results["yolo"].OK)
	assert.True(t, out.Results["clip"].OK)
	for _, id := range []string{"slow1", "slow2", "slow3"} {
		res := out.Results[id]
		assert.False(t, res.OK)
		assert.Equal(t, analyzer.ErrTimeout, res.ErrorKind)
		assert.Empty(t, res.Predictions)
	}
}

func TestOfflineAnalyzerReported(t *testing.T) {
	// Port 1 is never listening; the connection is refused immediately.
	cfg := testConfig(
		config.Analyzer{ID: "gone", Name: "gone", Host: "127.0.0.1", Port: 1, Endpoint: "/v3/analyze", Category: config.CategorySpatial},
		stubAnalyzer(t, "yolo", successHandler("yolo", 1)),
	)

	orch := orchestrator.New(cfg)
	out := orch.Analyze(context.Background(), analyzer.Input{URL: "http://example.com/x.jpg"}, "")

	require.NotNil(t, out.Health)
	assert.Equal(t, []string{"gone"}, out.Health.DegradedServices)
	assert.Equal(t, analyzer.StatusOffline, out.Statuses[0].Status)
	assert.Equal(t, analyzer.StatusSuccess, out.Statuses[1].Status)
}

func TestDimensionsMeasuredFromLocalFile(t *testing.T) {
	cfg := testConfig(stubAnalyzer(t, "yolo", successHandler("yolo", 1)))
	path := testPNG(t, t.TempDir(), 320, 240)

	orch := orchestrator.New(cfg)
	out := orch.Analyze(context.Background(), analyzer.Input{File: path}, path)

	require.NotNil(t, out.Dimensions)
	assert.Equal(t, 320, out.Dimensions.Width)
	assert.Equal(t, 240, out.Dimensions.Height)
}

func TestUnreadableImageYieldsNilDimensions(t *testing.T) {
	cfg := testConfig(stubAnalyzer(t, "yolo", successHandler("yolo", 1)))

	orch := orchestrator.New(cfg)
	out := orch.Analyze(context.Background(), analyzer.Input{File: "/nonexistent.jpg"}, "/nonexistent.jpg")

	assert.Nil(t, out.Dimensions)
	assert.True(t, out.Results["yolo"].OK, "analysis proceeds without dimensions")
}

func TestSimilarityClientLookup(t *testing.T) {
	clip := stubAnalyzer(t, "clip", successHandler("clip", 0))
	cfg := testConfig(stubAnalyzer(t, "yolo", successHandler("yolo", 0)), clip)

	t.Run("configured service found", func(t *testing.T) {
		cfg.SimilarityService = "clip"
		orch := orchestrator.New(cfg)
		client := orch.SimilarityClient()
		require.NotNil(t, client)
		assert.Equal(t, "clip", client.Analyzer.ID)
	})

	t.Run("unconfigured disables scoring", func(t *testing.T) {
		cfg.SimilarityService = ""
		orch := orchestrator.New(cfg)
		assert.Nil(t, orch.SimilarityClient())
	})
}
