// Package api exposes the orchestrator over HTTP: REST endpoints for
// starting and managing due-diligence sessions, plus WebSocket
// endpoints for live workflow streaming and roundtable meetings.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/dengjianbo3/magellan/pkg/agent"
	"github.com/dengjianbo3/magellan/pkg/clients"
	"github.com/dengjianbo3/magellan/pkg/config"
	"github.com/dengjianbo3/magellan/pkg/prompt"
	"github.com/dengjianbo3/magellan/pkg/session"
)

// Server holds the handler dependencies.
type Server struct {
	cfg     *config.Config
	manager *session.Manager

	// Roundtable meetings get their own LLM-backed agents.
	llm     agent.LLM
	prompts *prompt.Registry
	genCfg  clients.GenConfig
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, manager *session.Manager, llm agent.LLM, prompts *prompt.Registry, genCfg clients.GenConfig) *Server {
	return &Server{
		cfg:     cfg,
		manager: manager,
		llm:     llm,
		prompts: prompts,
		genCfg:  genCfg,
	}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())

	r.GET("/healthz", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/diligence", s.createDiligence)
		v1.GET("/sessions", s.listSessions)
		v1.GET("/sessions/:id", s.getSession)
		v1.POST("/sessions/:id/resume", s.resumeSession)
		v1.POST("/sessions/:id/cancel", s.cancelSession)
	}

	r.GET("/ws/diligence", func(c *gin.Context) { s.wsDiligence(c.Writer, c.Request) })
	r.GET("/ws/roundtable", func(c *gin.Context) { s.wsRoundtable(c.Writer, c.Request) })

	return r
}
