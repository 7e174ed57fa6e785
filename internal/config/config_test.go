package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice9innovations/api/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `{
  "analyzers": [
    {"id": "yolo", "name": "YOLO", "host": "localhost", "port": 7770, "endpoint": "/v3/analyze", "optimal_size": "640", "category": "spatial"},
    {"id": "blip", "name": "BLIP", "host": "localhost", "port": 7777, "endpoint": "/v3/analyze", "category": "semantic"}
  ]
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, int64(10)<<20, cfg.MaxFileSize)
	assert.Equal(t, 15*time.Second, cfg.AnalyzerTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 20*time.Second, cfg.RequestBudget())
	require.Len(t, cfg.Analyzers, 2)
}

func TestLoadFileOverrides(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `{
	  "port": 9001,
	  "max_file_size_mb": 4,
	  "analyzer_timeout_seconds": 2.5,
	  "max_retries": 0,
	  "similarity_service": "blip",
	  "analyzers": [
	    {"id": "blip", "name": "BLIP", "host": "localhost", "port": 7777, "endpoint": "/v3/analyze", "category": "semantic"}
	  ]
	}`))
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, int64(4)<<20, cfg.MaxFileSize)
	assert.Equal(t, 2500*time.Millisecond, cfg.AnalyzerTimeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, "blip", cfg.SimilarityService)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("ANALYZER_TIMEOUT_SECONDS", "1")
	t.Setenv("ANALYZER_HOST_YOLO", "gpu-box")

	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, time.Second, cfg.AnalyzerTimeout)

	yolo, ok := cfg.ByID("yolo")
	require.True(t, ok)
	assert.Equal(t, "gpu-box", yolo.Host)
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty roster", `{"analyzers": []}`},
		{"missing roster", `{}`},
		{"invalid json", `{`},
		{"duplicate id", `{"analyzers": [
			{"id": "yolo", "host": "a", "port": 1, "endpoint": "/x", "category": "spatial"},
			{"id": "yolo", "host": "b", "port": 2, "endpoint": "/x", "category": "spatial"}
		]}`},
		{"uppercase id", `{"analyzers": [
			{"id": "YOLO", "host": "a", "port": 1, "endpoint": "/x", "category": "spatial"}
		]}`},
		{"missing host", `{"analyzers": [
			{"id": "yolo", "port": 1, "endpoint": "/x", "category": "spatial"}
		]}`},
		{"bad endpoint", `{"analyzers": [
			{"id": "yolo", "host": "a", "port": 1, "endpoint": "x", "category": "spatial"}
		]}`},
		{"unknown category", `{"analyzers": [
			{"id": "yolo", "host": "a", "port": 1, "endpoint": "/x", "category": "psychic"}
		]}`},
		{"similarity service not in roster", `{
			"similarity_service": "clip",
			"analyzers": [{"id": "yolo", "host": "a", "port": 1, "endpoint": "/x", "category": "spatial"}]
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestVariantSizes(t *testing.T) {
	cfg := &config.Config{Analyzers: []config.Analyzer{
		{ID: "yolo", OptimalSize: "640"},
		{ID: "clip", OptimalSize: "512"},
		{ID: "rtdetr", OptimalSize: "640"},
		{ID: "face", OptimalSize: "original"},
		{ID: "ocr"},
	}}

	assert.Equal(t, []string{"640", "512"}, cfg.VariantSizes())
}

func TestAnalyzerURLs(t *testing.T) {
	a := config.Analyzer{ID: "yolo", Host: "gpu-box", Port: 7770, Endpoint: "/v3/analyze"}
	assert.Equal(t, "http://gpu-box:7770", a.BaseURL())
	assert.Equal(t, "http://gpu-box:7770/v3/analyze", a.AnalyzeURL())
	assert.Equal(t, "http://gpu-box:7770/health", a.HealthURL())
}
