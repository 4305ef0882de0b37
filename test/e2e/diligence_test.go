package e2e

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dengjianbo3/magellan/pkg/models"
)

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, v))
}

// TestDiligence_TAMExaggerationFlagged runs a full session over the
// WebSocket API against a business plan claiming a 1200B TAM that web
// sources put at ~120B. The market analyst must flag the discrepancy
// and the cross-check must surface it as a contradiction.
func TestDiligence_TAMExaggerationFlagged(t *testing.T) {
	app := startTestApp(t)

	app.Script.mu.Lock()
	app.Script.fileResponse = `{
		"company_name": "Acme AI",
		"industry": "SaaS",
		"stage": "seed",
		"geography": "US",
		"target_market": "AI devtools",
		"tam_estimate": "1200B",
		"funding_request": "5000000",
		"has_revenue": false,
		"has_product": true,
		"team": [{"name": "Ada", "title": "CEO"}]
	}`
	app.Script.mu.Unlock()
	app.Script.set(markMarket, `{
		"summary": "claimed market size is not supported by external sources",
		"market_validation": "independent reports estimate ~120B",
		"competitive_landscape": "crowded",
		"red_flags": ["claimed TAM 1200B vs web-sourced ~120B — order of magnitude discrepancy"]
	}`)
	app.Script.set(markCross, `{
		"consistent": false,
		"contradictions": ["BP TAM claim (1200B) contradicts market analysis (~120B)"],
		"summary": "material inconsistency between plan and market data"
	}`)

	conn := dialWS(t, app.WSURL+"/ws/diligence")
	writeFrame(t, conn, map[string]any{
		"company_name":   "Acme AI",
		"user_id":        "analyst-1",
		"bp_file_base64": base64.StdEncoding.EncodeToString([]byte("%PDF- fake business plan")),
		"bp_filename":    "acme.pdf",
		"bp_mime_type":   "application/pdf",
	})

	var sessionID string
	sawHITL := false
	for {
		frame := readFrame(t, conn)
		if id, ok := frame["session_id"].(string); ok && id != "" {
			sessionID = id
		}
		switch frame["type"] {
		case "hitl_required":
			sawHITL = true
			writeFrame(t, conn, map[string]any{"action": "approve", "payload": "approved — press on TAM in DD"})
			continue
		case "workflow_error":
			t.Fatalf("workflow failed: %v", frame["reason"])
		case "workflow_complete":
		default:
			continue
		}
		break
	}
	require.True(t, sawHITL)
	require.NotEmpty(t, sessionID)

	var snap models.SessionSnapshot
	app.getJSON("/api/v1/sessions/"+sessionID, &snap)

	assert.Equal(t, models.StateCompleted, snap.State)
	require.NotNil(t, snap.Context.IM)
	im := snap.Context.IM

	require.NotNil(t, im.MarketSection)
	require.NotEmpty(t, im.MarketSection.RedFlags)
	assert.Contains(t, im.MarketSection.RedFlags[0], "1200B")

	require.NotNil(t, im.CrossCheck)
	assert.False(t, im.CrossCheck.Consistent)
	require.NotEmpty(t, im.CrossCheck.Contradictions)
	assert.Contains(t, im.CrossCheck.Contradictions[0], "1200B")

	assert.GreaterOrEqual(t, len(im.DDQuestions), 10)
	assert.Equal(t, "approved — press on TAM in DD", im.HumanReview)
}

// TestDiligence_PreferenceMismatchEndsEarly submits a company whose
// industry the institution excludes; the workflow must stop after the
// preference check with an abort recommendation and no analysis calls.
func TestDiligence_PreferenceMismatchEndsEarly(t *testing.T) {
	app := startTestApp(t)

	app.Script.mu.Lock()
	app.Script.fileResponse = `{
		"company_name": "GeneWorks",
		"industry": "biotech",
		"stage": "seed",
		"geography": "US",
		"team": [{"name": "Eve", "title": "CEO"}]
	}`
	app.Script.mu.Unlock()

	conn := dialWS(t, app.WSURL+"/ws/diligence")
	writeFrame(t, conn, map[string]any{
		"company_name":   "GeneWorks",
		"bp_file_base64": base64.StdEncoding.EncodeToString([]byte("%PDF- fake")),
		"bp_mime_type":   "application/pdf",
		"preferences": map[string]any{
			"focus_industries":   []string{"SaaS"},
			"exclude_industries": []string{"bio"},
			"preferred_stages":   []string{"seed"},
			"geographies":        []string{"US"},
		},
	})

	var sessionID string
	for {
		frame := readFrame(t, conn)
		if id, ok := frame["session_id"].(string); ok && id != "" {
			sessionID = id
		}
		if frame["type"] == "workflow_complete" {
			break
		}
		require.NotEqual(t, "workflow_error", frame["type"])
	}

	var snap models.SessionSnapshot
	app.getJSON("/api/v1/sessions/"+sessionID, &snap)

	assert.Equal(t, models.StateCompleted, snap.State)
	require.NotNil(t, snap.Context.PreferenceCheck)
	assert.False(t, snap.Context.PreferenceCheck.Match)
	assert.Equal(t, models.RecommendAbort, snap.Context.PreferenceCheck.Recommendation)

	// Only doc parse and the preference check ran.
	assert.Len(t, snap.Steps, 2)
	require.NotNil(t, snap.Context.IM)
	assert.Nil(t, snap.Context.IM.TeamSection)
}
