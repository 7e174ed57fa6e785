package config

import (
	"fmt"
	"time"
)

// Category classifies the kind of evidence an analyzer produces. The
// voting engine derives each vote's evidence type from it.
type Category string

const (
	CategorySpatial        Category = "spatial"        // object detectors, CLIP, Inception
	CategorySemantic       Category = "semantic"       // caption producers (BLIP, Ollama)
	CategorySpecialized    Category = "specialized"    // face, nsfw, ocr
	CategoryClassification Category = "classification" // reserved; no stock analyzer ships in it
	CategoryOther          Category = "other"          // colors, metadata
)

// Analyzer describes one external ML endpoint. Constructed at startup
// from configuration and immutable thereafter.
type Analyzer struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	Endpoint    string   `json:"endpoint"`
	OptimalSize string   `json:"optimal_size,omitempty"`
	Category    Category `json:"category"`
}

// BaseURL returns the http root of the analyzer.
func (a Analyzer) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", a.Host, a.Port)
}

// AnalyzeURL returns the full analysis endpoint URL.
func (a Analyzer) AnalyzeURL() string {
	return a.BaseURL() + a.Endpoint
}

// HealthURL returns the analyzer's health endpoint URL.
func (a Analyzer) HealthURL() string {
	return a.BaseURL() + "/health"
}

// WantsVariant reports whether the analyzer prefers a resized input
// variant over the original file.
func (a Analyzer) WantsVariant() bool {
	return a.OptimalSize != "" && a.OptimalSize != "original"
}

// Config is the immutable runtime configuration. It is built once in
// main and passed explicitly to the components that need it.
type Config struct {
	Port            int           `json:"port"`
	UploadDir       string        `json:"upload_dir"`
	MaxFileSize     int64         `json:"max_file_size"`
	AnalyzerTimeout time.Duration `json:"-"`
	MaxRetries      int           `json:"max_retries"`
	RetryDelay      time.Duration `json:"-"`
	RequestSlack    time.Duration `json:"-"`
	PublicURLPrefix string        `json:"public_url_prefix"`

	// SimilarityService names the analyzer (by ID) that scores
	// caption-to-image similarity. Empty disables caption scoring.
	SimilarityService string `json:"similarity_service"`

	// Analyzers is the fixed roster, in declaration order. Extraction
	// iterates this order so tie resolution is reproducible.
	Analyzers []Analyzer `json:"analyzers"`
}

// fileConfig mirrors the on-disk JSON document.
type fileConfig struct {
	Port                   int        `json:"port"`
	UploadDir              string     `json:"upload_dir"`
	MaxFileSizeMB          int64      `json:"max_file_size_mb"`
	AnalyzerTimeoutSeconds float64    `json:"analyzer_timeout_seconds"`
	MaxRetries             *int       `json:"max_retries"`
	PublicURLPrefix        string     `json:"public_url_prefix"`
	SimilarityService      string     `json:"similarity_service"`
	Analyzers              []Analyzer `json:"analyzers"`
}

// ByID returns the analyzer with the given ID.
func (c *Config) ByID(id string) (Analyzer, bool) {
	for _, a := range c.Analyzers {
		if a.ID == id {
			return a, true
		}
	}
	return Analyzer{}, false
}

// ByCategory returns all analyzers in a category, in roster order.
func (c *Config) ByCategory(cat Category) []Analyzer {
	var out []Analyzer
	for _, a := range c.Analyzers {
		if a.Category == cat {
			out = append(out, a)
		}
	}
	return out
}

// RequestBudget is the global wall-clock deadline for one image request:
// the per-analyzer timeout plus slack for collection and assembly.
func (c *Config) RequestBudget() time.Duration {
	return c.AnalyzerTimeout + c.RequestSlack
}

// VariantSizes returns the distinct non-original optimal sizes across
// the roster, in first-seen order.
func (c *Config) VariantSizes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range c.Analyzers {
		if a.WantsVariant() && !seen[a.OptimalSize] {
			seen[a.OptimalSize] = true
			out = append(out, a.OptimalSize)
		}
	}
	return out
}
