package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dengjianbo3/magellan/pkg/events"
	"github.com/dengjianbo3/magellan/pkg/models"
)

// maxBPFileSize caps uploaded business plan documents at 20 MiB.
const maxBPFileSize = 20 << 20

// createDiligence starts a workflow from a multipart form and blocks
// until the session reaches a terminal state, then returns the full
// snapshot. Clients that want progress use /ws/diligence instead.
func (s *Server) createDiligence(c *gin.Context) {
	req, ok := s.parseCreateForm(c)
	if !ok {
		return
	}

	sess, err := s.manager.Create(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ch, cancel, err := s.manager.Subscribe(sess.ID, 0)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer cancel()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				s.respondSnapshot(c, sess.ID)
				return
			}
			if ev.Type == events.EventTypeWorkflowComplete || ev.Type == events.EventTypeWorkflowError {
				s.respondSnapshot(c, sess.ID)
				return
			}
		case <-c.Request.Context().Done():
			// Client went away; the workflow keeps running and the
			// session stays reachable via GET /sessions/:id.
			return
		}
	}
}

func (s *Server) respondSnapshot(c *gin.Context, id string) {
	snap, err := s.manager.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	status := http.StatusOK
	if snap.State == models.StateError {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, snap)
}

func (s *Server) parseCreateForm(c *gin.Context) (*models.CreateDiligenceRequest, bool) {
	companyName := c.PostForm("company_name")
	if companyName == "" {
		badRequest(c, "company_name is required")
		return nil, false
	}

	req := &models.CreateDiligenceRequest{
		CompanyName: companyName,
		UserID:      c.PostForm("user_id"),
	}

	if prefsJSON := c.PostForm("preferences"); prefsJSON != "" {
		var prefs models.InstitutionPreferences
		if err := json.Unmarshal([]byte(prefsJSON), &prefs); err != nil {
			badRequest(c, "preferences is not valid JSON: "+err.Error())
			return nil, false
		}
		req.Preferences = &prefs
	}

	file, header, err := c.Request.FormFile("bp_file")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(io.LimitReader(file, maxBPFileSize+1))
		if readErr != nil {
			badRequest(c, "reading bp_file: "+readErr.Error())
			return nil, false
		}
		if len(data) > maxBPFileSize {
			badRequest(c, "bp_file exceeds the 20 MiB limit")
			return nil, false
		}
		req.BPFile = data
		req.BPFilename = header.Filename
		req.BPMimeType = header.Header.Get("Content-Type")
	} else if err != http.ErrMissingFile {
		badRequest(c, "bp_file: "+err.Error())
		return nil, false
	}

	return req, true
}
