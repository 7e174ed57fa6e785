package imagedata

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
)

// ============================================================================
// Variant Pre-Rendering
// ============================================================================
//
// Analyzers that declare an optimal input size read resized copies from
// <dir>/variants/<size>/<stem>.jpg next to the original. Variants are
// rendered once when an image enters through upload or URL download;
// zero-copy file analysis never writes them.
// ============================================================================

// jpegQuality for rendered variants. Analyzers re-encode internally, so
// a mid-high quality keeps files small without visible model impact.
const jpegQuality = 90

// RenderVariants writes resized JPEG copies of path for each requested
// size. A size is the longest-edge pixel count, e.g. "512". Failures are
// logged and skipped; the analyzer client falls back to the original.
func RenderVariants(path string, sizes []string) {
	if len(sizes) == 0 {
		return
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		log.Warnf("Variant rendering skipped, cannot open %s: %v", path, err)
		return
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	for _, size := range sizes {
		edge, err := strconv.Atoi(size)
		if err != nil || edge <= 0 {
			log.Warnf("Variant size %q is not a pixel count, skipping", size)
			continue
		}

		outDir := filepath.Join(dir, "variants", size)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			log.Warnf("Failed to create variant directory %s: %v", outDir, err)
			continue
		}

		outPath := filepath.Join(outDir, stem+".jpg")
		resized := imaging.Fit(src, edge, edge, imaging.Lanczos)
		if err := imaging.Save(resized, outPath, imaging.JPEGQuality(jpegQuality)); err != nil {
			log.Warnf("Failed to save variant %s: %v", outPath, err)
			continue
		}
		log.Debugf("Rendered %s variant: %s", size, outPath)
	}
}

// VariantPath returns the canonical variant location for a source image
// and size.
func VariantPath(path, size string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "variants", size, stem+".jpg")
}

// CleanVariants removes all rendered variants of a source image.
func CleanVariants(path string, sizes []string) error {
	var firstErr error
	for _, size := range sizes {
		vp := VariantPath(path, size)
		if err := os.Remove(vp); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove variant %s: %w", vp, err)
		}
	}
	return firstErr
}
