package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Defaults applied before the file and environment are consulted.
const (
	DefaultPort            = 8080
	DefaultUploadDir       = "./uploads"
	DefaultMaxFileSizeMB   = 10
	DefaultAnalyzerTimeout = 15 * time.Second
	DefaultMaxRetries      = 2
	DefaultRetryDelay      = 1 * time.Second
	DefaultRequestSlack    = 5 * time.Second
)

// Load reads configuration from the JSON file at path, then applies
// environment-variable overrides and validates the result.
//
// The analyzer roster must come from the file; a missing or empty roster
// is a startup failure. For global settings an environment variable wins
// over the file, and a setting given in neither keeps its default.
func Load(path string) (*Config, error) {
	config := &Config{
		Port:            DefaultPort,
		UploadDir:       DefaultUploadDir,
		MaxFileSize:     DefaultMaxFileSizeMB << 20,
		AnalyzerTimeout: DefaultAnalyzerTimeout,
		MaxRetries:      DefaultMaxRetries,
		RetryDelay:      DefaultRetryDelay,
		RequestSlack:    DefaultRequestSlack,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Override defaults with file settings
	if fc.Port > 0 {
		config.Port = fc.Port
	}
	if fc.UploadDir != "" {
		config.UploadDir = fc.UploadDir
	}
	if fc.MaxFileSizeMB > 0 {
		config.MaxFileSize = fc.MaxFileSizeMB << 20
	}
	if fc.AnalyzerTimeoutSeconds > 0 {
		config.AnalyzerTimeout = time.Duration(fc.AnalyzerTimeoutSeconds * float64(time.Second))
	}
	if fc.MaxRetries != nil && *fc.MaxRetries >= 0 {
		config.MaxRetries = *fc.MaxRetries
	}
	if fc.PublicURLPrefix != "" {
		config.PublicURLPrefix = fc.PublicURLPrefix
	}
	if fc.SimilarityService != "" {
		config.SimilarityService = fc.SimilarityService
	}
	config.Analyzers = fc.Analyzers

	// Environment overrides win over the file
	if val := envInt("PORT"); val > 0 {
		config.Port = val
	}
	if val := os.Getenv("UPLOAD_DIR"); val != "" {
		config.UploadDir = val
	}
	if val := envInt("MAX_FILE_SIZE_MB"); val > 0 {
		config.MaxFileSize = int64(val) << 20
	}
	if val := envFloat("ANALYZER_TIMEOUT_SECONDS"); val > 0 {
		config.AnalyzerTimeout = time.Duration(val * float64(time.Second))
	}
	if val := os.Getenv("MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			config.MaxRetries = n
		}
	}
	if val := os.Getenv("PUBLIC_URL_PREFIX"); val != "" {
		config.PublicURLPrefix = val
	}

	// Per-analyzer host overrides of the form ANALYZER_HOST_<ID>
	for i := range config.Analyzers {
		key := "ANALYZER_HOST_" + strings.ToUpper(config.Analyzers[i].ID)
		if val := os.Getenv(key); val != "" {
			config.Analyzers[i].Host = val
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Infof("Loaded configuration: %d analyzers, timeout=%s, retries=%d",
		len(config.Analyzers), config.AnalyzerTimeout, config.MaxRetries)
	return config, nil
}

// validate checks that the roster is usable.
func (c *Config) validate() error {
	if len(c.Analyzers) == 0 {
		return fmt.Errorf("no analyzers configured")
	}

	seen := make(map[string]bool, len(c.Analyzers))
	for _, a := range c.Analyzers {
		if a.ID == "" {
			return fmt.Errorf("analyzer with empty id")
		}
		if a.ID != strings.ToLower(a.ID) {
			return fmt.Errorf("analyzer id %q must be lowercase", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate analyzer id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Host == "" || a.Port <= 0 {
			return fmt.Errorf("analyzer %q missing host or port", a.ID)
		}
		if a.Endpoint == "" || !strings.HasPrefix(a.Endpoint, "/") {
			return fmt.Errorf("analyzer %q has invalid endpoint %q", a.ID, a.Endpoint)
		}
		switch a.Category {
		case CategorySpatial, CategorySemantic, CategorySpecialized, CategoryClassification, CategoryOther:
		default:
			return fmt.Errorf("analyzer %q has unknown category %q", a.ID, a.Category)
		}
	}

	if c.SimilarityService != "" && !seen[c.SimilarityService] {
		return fmt.Errorf("similarity service %q is not in the analyzer roster", c.SimilarityService)
	}

	return nil
}

// envInt reads an integer environment variable, tolerating float and
// bool spellings the way operators actually write them.
func envInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	if i, err := strconv.Atoi(val); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return int(f)
	}
	if b, err := strconv.ParseBool(val); err == nil {
		if b {
			return 1
		}
	}
	return 0
}

// envFloat reads a float environment variable.
func envFloat(key string) float64 {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return 0
}
