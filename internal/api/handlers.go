package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/internal/bbox"
	"github.com/ice9innovations/api/internal/metrics"
	"github.com/ice9innovations/api/internal/orchestrator"
	"github.com/ice9innovations/api/internal/response"
)

// handleAnalyzeGet serves GET /analyze?url=<u> and GET /analyze?file=<p>.
func (s *Server) handleAnalyzeGet(c *gin.Context) {
	imageURL := c.Query("url")
	filePath := c.Query("file")

	switch {
	case imageURL != "":
		s.analyzeExternalURL(c, imageURL)
	case filePath != "":
		s.analyzeLocalFile(c, filePath)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "missing input: provide url or file",
		})
	}
}

// analyzeExternalURL downloads the image locally, then analyzes the
// local copy. When a public URL prefix is configured, analyzers receive
// the re-served local URL so distributed deployments can fetch the bytes
// once from us instead of N times from the origin; otherwise they
// receive the local path.
func (s *Server) analyzeExternalURL(c *gin.Context, imageURL string) {
	localPath, err := s.download(c.Request.Context(), imageURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "failed to download image",
			"details": err.Error(),
		})
		return
	}

	in := s.inputFor(localPath)
	img := response.ImageData{
		ProcessingMethod: response.MethodURLDownloaded,
		OriginalURL:      imageURL,
		ImageURL:         in.URL,
		FilePath:         localPath,
	}
	s.runPipeline(c, in, localPath, img)
}

// analyzeLocalFile analyzes a file in place: zero-copy mode, no variant
// rendering, analyzers receive the file path. An analyzer with an
// optimal size still uses a matching variant if one already exists
// beside the file.
func (s *Server) analyzeLocalFile(c *gin.Context, filePath string) {
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "file not readable",
			"details": filePath,
		})
		return
	}

	in := analyzer.Input{File: filePath}
	img := response.ImageData{
		ProcessingMethod: response.MethodDirectFile,
		FilePath:         filePath,
	}
	s.runPipeline(c, in, filePath, img)
}

// handleAnalyzePost serves POST /analyze with a multipart image field.
func (s *Server) handleAnalyzePost(c *gin.Context) {
	localPath, status, err := s.storeUpload(c)
	if err != nil {
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	in := s.inputFor(localPath)
	img := response.ImageData{
		ProcessingMethod: response.MethodFileUpload,
		ImageURL:         in.URL,
		FilePath:         localPath,
	}
	s.runPipeline(c, in, localPath, img)
}

// runPipeline executes the full analysis flow and writes the document.
func (s *Server) runPipeline(c *gin.Context, in analyzer.Input, localPath string, img response.ImageData) {
	start := time.Now()
	ctx := c.Request.Context()

	run := s.orch.Analyze(ctx, in, localPath)
	clustered := bbox.Process(s.cfg, run.Results, run.Dimensions)
	votes := s.votes.Vote(run.Results, clustered)
	captions := s.captions.Collect(ctx, run.Results, in)

	img.Dimensions = run.Dimensions
	elapsed := time.Since(start)
	doc := response.Assemble(run, votes, captions, img, elapsed.Seconds())

	metrics.ObserveRequest(elapsed, len(doc.Votes.Consensus))
	log.Infof("Analyzed %s in %.2fs: %d consensus emoji(s), %d/%d services ok",
		doc.ImageID, elapsed.Seconds(), len(doc.Votes.Consensus),
		len(run.Statuses)-failedCount(run), len(run.Statuses))

	c.JSON(http.StatusOK, doc)
}

func failedCount(run orchestrator.RunResult) int {
	if run.Health == nil {
		return 0
	}
	return run.Health.FailedCount
}

// inputFor chooses how analyzers address a locally stored image: by
// re-served URL when a public prefix is configured, by path otherwise.
func (s *Server) inputFor(localPath string) analyzer.Input {
	if url := s.publicURL(localPath); url != "" {
		return analyzer.Input{URL: url}
	}
	return analyzer.Input{File: localPath}
}
