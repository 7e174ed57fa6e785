package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/internal/imagedata"
)

// ============================================================================
// Image Ingest: uploads and URL downloads
// ============================================================================

// allowedMIME is the accepted upload content-type set. Types are
// detected by sniffing the stored bytes, never trusted from headers.
var allowedMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// storeUpload validates and stores the multipart image field, returning
// the stored path. The HTTP status accompanies any error.
func (s *Server) storeUpload(c *gin.Context) (string, int, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("missing multipart field image")
	}
	if header.Size > s.cfg.MaxFileSize {
		return "", http.StatusBadRequest, fmt.Errorf("upload exceeds the %d byte limit", s.cfg.MaxFileSize)
	}

	f, err := header.Open()
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxFileSize+1))
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return "", http.StatusBadRequest, fmt.Errorf("upload exceeds the %d byte limit", s.cfg.MaxFileSize)
	}

	path, err := s.storeBytes(data)
	if err != nil {
		if strings.HasPrefix(err.Error(), "unsupported image type") {
			return "", http.StatusBadRequest, err
		}
		return "", http.StatusInternalServerError, err
	}
	return path, http.StatusOK, nil
}

// download fetches an external image URL into the uploads directory,
// reusing a previously stored copy when the perceptual hash matches.
func (s *Server) download(ctx context.Context, imageURL string) (string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid image URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("origin returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return "", fmt.Errorf("image exceeds the %d byte limit", s.cfg.MaxFileSize)
	}

	return s.storeBytes(data)
}

// storeBytes validates image bytes, dedupes against stored uploads, and
// writes a fresh file with pre-rendered variants when new.
func (s *Server) storeBytes(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	ext, ok := allowedMIME[mime]
	if !ok {
		return "", fmt.Errorf("unsupported image type %s", mime)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.cfg.UploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	// Perceptual-hash dedup: a repeat of an already stored image reuses
	// the prior file and its variants.
	if hash, err := imagedata.HashFile(path); err == nil {
		if existing, ok := s.hashes.Get(hash); ok {
			if _, statErr := os.Stat(existing); statErr == nil {
				log.Debugf("Duplicate image, reusing %s", existing)
				_ = os.Remove(path)
				return existing, nil
			}
		}
		s.hashes.Set(hash, path)
	}

	imagedata.RenderVariants(path, s.cfg.VariantSizes())
	return path, nil
}

// publicURL maps a stored file to its re-served HTTP location, or
// returns empty when no public prefix is configured.
func (s *Server) publicURL(localPath string) string {
	if s.cfg.PublicURLPrefix == "" {
		return ""
	}
	base := strings.TrimSuffix(s.cfg.PublicURLPrefix, "/")
	return fmt.Sprintf("%s/uploads/%s", base, filepath.Base(localPath))
}
