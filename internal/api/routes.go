package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ice9innovations/api/internal/caption"
	"github.com/ice9innovations/api/internal/config"
	"github.com/ice9innovations/api/internal/imagedata"
	"github.com/ice9innovations/api/internal/orchestrator"
	"github.com/ice9innovations/api/internal/voting"
)

// Server holds the request-processing pipeline behind the HTTP surface.
type Server struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	votes    *voting.Engine
	captions *caption.Aggregator
	hashes   *imagedata.HashIndex
}

// NewServer wires the pipeline components together.
func NewServer(cfg *config.Config) *Server {
	orch := orchestrator.New(cfg)
	return &Server{
		cfg:      cfg,
		orch:     orch,
		votes:    voting.New(cfg),
		captions: caption.New(cfg, orch.SimilarityClient()),
		hashes:   imagedata.NewHashIndex(),
	}
}

// SetupRouter builds the gin router with all public endpoints.
func SetupRouter(server *Server) *gin.Engine {
	r := gin.Default()

	r.GET("/analyze", server.handleAnalyzeGet)
	r.POST("/analyze", server.handleAnalyzePost)

	r.GET("/health", server.handleHealth)
	r.GET("/services/health", server.handleServicesHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Downloaded and uploaded images are re-served here so distributed
	// analyzers can fetch them over HTTP.
	r.Static("/uploads", server.cfg.UploadDir)

	return r
}
