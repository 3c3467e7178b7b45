package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-crm/internal/models"
)

func TestInteractionHandlerCreate(t *testing.T) {
	svc := &fakeInteractionService{}
	r := newTestRouter(Routes{Interactions: NewInteractionHandler(svc)})

	rec, env := doRequest(t, r, http.MethodPost, "/api/interactions", agentToken, map[string]string{
		"lead": "lead-1", "type": "call", "remarks": "Spoke with parent", "statusAfter": "interested",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, agentID, svc.lastActor.ID)
	require.NotNil(t, svc.createReq.StatusAfter)
	assert.Equal(t, models.LeadStatusInterested, *svc.createReq.StatusAfter)
	var item models.Interaction
	decodeData(t, env, &item)
	assert.Equal(t, models.InteractionCall, item.Type)
}

func TestInteractionHandlerRoutes(t *testing.T) {
	svc := &fakeInteractionService{}
	r := newTestRouter(Routes{Interactions: NewInteractionHandler(svc)})

	rec, _ := doRequest(t, r, http.MethodGet, "/api/interactions/me", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doRequest(t, r, http.MethodGet, "/api/interactions/stats", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doRequest(t, r, http.MethodGet, "/api/interactions/lead/lead-7", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lead-7", svc.lastID)
	rec, _ = doRequest(t, r, http.MethodGet, "/api/interactions/int-3", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "int-3", svc.lastID)

	assert.Equal(t, []string{"Mine", "RecentMine", "ForLead", "Get"}, svc.calls)
}

func TestInteractionHandlerAdminRoutes(t *testing.T) {
	svc := &fakeInteractionService{}
	r := newTestRouter(Routes{Interactions: NewInteractionHandler(svc)})

	for _, path := range []string{"/api/interactions", "/api/interactions/stats/overall", "/api/interactions/stats/agent/" + agentID} {
		rec, _ := doRequest(t, r, http.MethodGet, path, agentToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
	rec, _ := doRequest(t, r, http.MethodDelete, "/api/interactions/int-1", agentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := doRequest(t, r, http.MethodGet, "/api/interactions/stats/agent/"+agentID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.InteractionStats
	decodeData(t, env, &stats)
	assert.Equal(t, 3, stats.TotalInteractions)
	assert.Equal(t, agentID, svc.lastID)

	rec, env = doRequest(t, r, http.MethodDelete, "/api/interactions/int-1", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Msg string `json:"msg"`
	}
	decodeData(t, env, &body)
	assert.Equal(t, "Interaction removed", body.Msg)
}
