package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) getSession(c *gin.Context) {
	snap, err := s.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) listSessions(c *gin.Context) {
	snaps, err := s.manager.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": snaps, "count": len(snaps)})
}

type resumeRequest struct {
	UserInput string `json:"user_input"`
}

// resumeSession delivers a human review to a session suspended in
// HITL_REVIEW.
func (s *Server) resumeSession(c *gin.Context) {
	var req resumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	if req.UserInput == "" {
		badRequest(c, "user_input is required")
		return
	}
	if err := s.manager.Resume(c.Request.Context(), c.Param("id"), req.UserInput); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

func (s *Server) cancelSession(c *gin.Context) {
	if err := s.manager.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"active_sessions": s.manager.Running(),
		"store_backend":   string(s.cfg.StoreBackend),
	})
}
