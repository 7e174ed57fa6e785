package imagedata

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/corona10/goimagehash"
)

// HashIndex provides thread-safe perceptual-hash lookups of stored
// uploads. A re-upload of an already-analyzed image maps to the existing
// file, so its rendered variants are reused instead of duplicated.
//
// The index is in-memory only and rebuilt empty on restart.
type HashIndex struct {
	paths map[string]string // hash string -> stored path
	mu    sync.RWMutex
}

// NewHashIndex creates an empty index.
func NewHashIndex() *HashIndex {
	return &HashIndex{
		paths: make(map[string]string),
	}
}

// Get retrieves the stored path for a hash.
func (hi *HashIndex) Get(hash string) (string, bool) {
	hi.mu.RLock()
	defer hi.mu.RUnlock()
	path, ok := hi.paths[hash]
	return path, ok
}

// Set stores a hash to path mapping.
func (hi *HashIndex) Set(hash, path string) {
	hi.mu.Lock()
	defer hi.mu.Unlock()
	hi.paths[hash] = path
}

// Len returns the number of indexed images.
func (hi *HashIndex) Len() int {
	hi.mu.RLock()
	defer hi.mu.RUnlock()
	return len(hi.paths)
}

// HashFile computes the perceptual hash of an image file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("failed to hash image: %w", err)
	}
	return hash.ToString(), nil
}
