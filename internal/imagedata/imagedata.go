package imagedata

import (
	"fmt"
	"image"
	"os"

	// Register decoders for the accepted upload formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/rwcarlsen/goexif/exif"
	log "github.com/sirupsen/logrus"
)

// Dimensions are the display-space pixel dimensions of an image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Measure reads an image's display dimensions from the file header.
//
// Only the header is decoded, not the pixel data. EXIF orientation is
// honored: orientations 5 through 8 rotate by 90 degrees, so stored
// width and height swap in display space. Phone photos are routinely
// stored rotated, and clustering runs in display coordinates.
func Measure(path string) (*Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	dims := &Dimensions{Width: cfg.Width, Height: cfg.Height}
	if orientationSwaps(path) {
		dims.Width, dims.Height = dims.Height, dims.Width
	}
	return dims, nil
}

// orientationSwaps reports whether the file's EXIF orientation transposes
// width and height. Missing or unreadable EXIF means no swap.
func orientationSwaps(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return false
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return false
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return false
	}

	if orientation >= 5 && orientation <= 8 {
		log.Tracef("EXIF orientation %d swaps dimensions for %s", orientation, path)
		return true
	}
	return false
}
