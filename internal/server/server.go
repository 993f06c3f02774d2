package server

import (
	"github.com/gemini-router/api-gateway/internal/config"
	"github.com/gemini-router/api-gateway/internal/gemini"
	"github.com/gemini-router/api-gateway/internal/validate"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server represents the API gateway server
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	router    *gin.Engine
	validator *validate.Validator
	generator gemini.Generator
}

// New creates a new server instance backed by the real Gemini client
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	return newServer(cfg, logger, gemini.NewClient(cfg.Provider, cfg.Retry, logger))
}

func newServer(cfg *config.Config, logger *zap.Logger, generator gemini.Generator) (*Server, error) {
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    gin.New(),
		validator: validate.New(cfg.Defaults),
		generator: generator,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())

	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})
	s.router.GET("/ping", s.ping)

	// Liveness probe stays outside the credential gate
	s.router.GET("/v1/health", s.healthCheck)

	api := s.router.Group("/v1")
	api.Use(s.apiKeyAuthMiddleware())
	{
		api.POST("/generate", s.generate)
		api.POST("/structured", s.structured)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}
