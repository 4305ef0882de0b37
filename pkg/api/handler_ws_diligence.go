package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dengjianbo3/magellan/pkg/events"
	"github.com/dengjianbo3/magellan/pkg/models"
)

// wsWriteTimeout bounds each WebSocket send.
const wsWriteTimeout = 10 * time.Second

// wsStartFrame is the client's opening frame on /ws/diligence.
type wsStartFrame struct {
	CompanyName  string                         `json:"company_name"`
	UserID       string                         `json:"user_id"`
	BPFileBase64 string                         `json:"bp_file_base64,omitempty"`
	BPFilename   string                         `json:"bp_filename,omitempty"`
	BPMimeType   string                         `json:"bp_mime_type,omitempty"`
	Preferences  *models.InstitutionPreferences `json:"preferences,omitempty"`
}

// wsDecisionFrame is the client's response to a hitl_required event.
type wsDecisionFrame struct {
	Action  string `json:"action"` // "approve" or "revise"
	Payload string `json:"payload,omitempty"`
}

// wsDiligence runs a session over one long-lived connection: the client
// sends a start frame, receives workflow events, answers the HITL
// prompt in-band, and the server closes after the terminal event.
func (s *Server) wsDiligence(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// TODO: replace with an OriginPatterns allowlist from config
		// once a deployment origin is fixed.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server error")
	ctx := r.Context()

	var start wsStartFrame
	if err := wsjson.Read(ctx, conn, &start); err != nil {
		return
	}
	if start.CompanyName == "" {
		s.wsError(ctx, conn, "company_name is required")
		conn.Close(websocket.StatusPolicyViolation, "invalid start frame")
		return
	}

	req := &models.CreateDiligenceRequest{
		CompanyName: start.CompanyName,
		UserID:      start.UserID,
		BPFilename:  start.BPFilename,
		BPMimeType:  start.BPMimeType,
		Preferences: start.Preferences,
	}
	if start.BPFileBase64 != "" {
		data, decErr := base64.StdEncoding.DecodeString(start.BPFileBase64)
		if decErr != nil {
			s.wsError(ctx, conn, "bp_file_base64 is not valid base64")
			conn.Close(websocket.StatusPolicyViolation, "invalid start frame")
			return
		}
		req.BPFile = data
	}

	sess, err := s.manager.Create(ctx, req)
	if err != nil {
		s.wsError(ctx, conn, err.Error())
		conn.Close(websocket.StatusPolicyViolation, "session not created")
		return
	}

	ch, cancel, err := s.manager.Subscribe(sess.ID, 0)
	if err != nil {
		s.wsError(ctx, conn, err.Error())
		return
	}
	defer cancel()

	// Dedicated reader: the only expected inbound frames are HITL
	// decisions; anything else is ignored.
	decisions := make(chan wsDecisionFrame, 1)
	readCtx, stopReader := context.WithCancel(ctx)
	defer stopReader()
	go func() {
		for {
			var d wsDecisionFrame
			if err := wsjson.Read(readCtx, conn, &d); err != nil {
				return
			}
			select {
			case decisions <- d:
			default:
			}
		}
	}()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := s.wsSend(ctx, conn, ev); err != nil {
				return
			}
			switch ev.Type {
			case events.EventTypeHITLRequired:
				if !s.awaitDecision(ctx, sess.ID, decisions) {
					return
				}
			case events.EventTypeWorkflowComplete, events.EventTypeWorkflowError:
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// awaitDecision blocks until the client answers the HITL prompt and
// feeds it into the workflow. A dropped connection leaves the session
// suspended; it stays resumable over REST.
func (s *Server) awaitDecision(ctx context.Context, sessionID string, decisions <-chan wsDecisionFrame) bool {
	select {
	case d := <-decisions:
		note := d.Payload
		if note == "" {
			note = d.Action
		}
		if err := s.manager.Resume(ctx, sessionID, note); err != nil {
			slog.Warn("WebSocket resume failed", "session_id", sessionID, "error", err)
		}
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) wsSend(ctx context.Context, conn *websocket.Conn, v any) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, v)
}

func (s *Server) wsError(ctx context.Context, conn *websocket.Conn, msg string) {
	_ = s.wsSend(ctx, conn, map[string]string{"type": "error", "error": msg})
}
