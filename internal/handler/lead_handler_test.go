package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-crm/internal/models"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
)

func TestLeadHandlerCreatePassesActor(t *testing.T) {
	leads := &fakeLeadService{}
	r := newTestRouter(Routes{Leads: NewLeadHandler(leads, nil, nil)})

	rec, env := doRequest(t, r, http.MethodPost, "/api/leads", agentToken, map[string]string{"name": "Asha"})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, agentID, leads.lastActor.ID)
	assert.Equal(t, models.RoleAgent, leads.lastActor.Role)
	var lead models.Lead
	decodeData(t, env, &lead)
	assert.Equal(t, "Asha", lead.Name)
}

func TestLeadHandlerStaticRoutesBeforeID(t *testing.T) {
	leads := &fakeLeadService{}
	r := newTestRouter(Routes{Leads: NewLeadHandler(leads, nil, nil)})

	rec, _ := doRequest(t, r, http.MethodGet, "/api/leads/followup/today", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doRequest(t, r, http.MethodGet, "/api/leads/filter/interested", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doRequest(t, r, http.MethodGet, "/api/leads/course/mba", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doRequest(t, r, http.MethodGet, "/api/leads/stats", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doRequest(t, r, http.MethodGet, "/api/leads/agent-stats", agentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"FollowUpsToday", "ByStatus", "ByCourse", "Stats", "AgentStats"}, leads.calls)
	assert.Equal(t, models.LeadStatusInterested, leads.lastStatus)
	assert.Equal(t, "mba", leads.lastCourse)
}

func TestLeadHandlerRoleGates(t *testing.T) {
	leads := &fakeLeadService{}
	r := newTestRouter(Routes{Leads: NewLeadHandler(leads, nil, nil)})

	rec, env := doRequest(t, r, http.MethodGet, "/api/leads/unassigned", agentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied. Admin privileges required.", env.Error.Message)

	rec, _ = doRequest(t, r, http.MethodGet, "/api/leads/assigned-to-me", agentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = doRequest(t, r, http.MethodGet, "/api/leads/assigned-to-me", leadToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, r, http.MethodGet, "/api/leads/recent", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doRequest(t, r, http.MethodDelete, "/api/leads/abc", agentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = doRequest(t, r, http.MethodGet, "/api/leads/admin-stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.LeadStats
	decodeData(t, env, &stats)
	require.NotNil(t, stats.Agents)
	assert.Equal(t, 2, *stats.Agents)
}

func TestLeadHandlerGetPropagatesErrors(t *testing.T) {
	leads := &fakeLeadService{getErr: appErrors.Clone(appErrors.ErrForbidden, "Not authorized to access this lead")}
	r := newTestRouter(Routes{Leads: NewLeadHandler(leads, nil, nil)})

	rec, env := doRequest(t, r, http.MethodGet, "/api/leads/lead-9", agentToken, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to access this lead", env.Error.Message)
}

func TestLeadHandlerAssign(t *testing.T) {
	leads := &fakeLeadService{}
	r := newTestRouter(Routes{Leads: NewLeadHandler(leads, nil, nil)})

	rec, _ := doRequest(t, r, http.MethodPut, "/api/leads/assign/lead-1", adminToken, map[string]string{"agentId": agentID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, agentID, leads.lastAssign.Target())

	rec, _ = doRequest(t, r, http.MethodPut, "/api/leads/assign/lead-1", adminToken, map[string]string{"assignedTo": agentID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, agentID, leads.lastAssign.AssignedTo)
	assert.Equal(t, agentID, leads.lastAssign.Target())

	rec, _ = doRequest(t, r, http.MethodPut, "/api/leads/assign/lead-1", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, leads.lastAssign.Target())

	rec, env := doRequest(t, r, http.MethodPost, "/api/leads/assign-to-lead", adminToken,
		map[string]interface{}{"leadUserId": leadID, "leadIds": []string{"a", "b"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.BulkAssignResult
	decodeData(t, env, &result)
	assert.Equal(t, "Leads assigned successfully", result.Msg)
	assert.Equal(t, 2, result.Requested)
}

func multipartUpload(t *testing.T, field, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if field != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("note", "empty"))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestLeadHandlerUpload(t *testing.T) {
	importer := &fakeImporter{}
	r := newTestRouter(Routes{Leads: NewLeadHandler(&fakeLeadService{}, importer, nil)})

	body, contentType := multipartUpload(t, "file", "leads.csv", "text/csv", "name,email\nAsha,a@example.com\n")
	req := httptest.NewRequest(http.MethodPost, "/api/leads/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-auth-token", adminToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "leads.csv", importer.filename)
	assert.Equal(t, "text/csv", importer.contentType)
	assert.Contains(t, importer.body, "Asha")
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"row":2`)
}

func TestLeadHandlerUploadWithoutFile(t *testing.T) {
	r := newTestRouter(Routes{Leads: NewLeadHandler(&fakeLeadService{}, &fakeImporter{}, nil)})

	body, contentType := multipartUpload(t, "", "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/leads/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-auth-token", adminToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No file uploaded")
}

func TestLeadHandlerExport(t *testing.T) {
	exporter := &fakeExporter{}
	r := newTestRouter(Routes{Leads: NewLeadHandler(&fakeLeadService{}, nil, exporter)})

	rec, _ := doRequest(t, r, http.MethodGet, "/api/leads/export?format=csv", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leads_20240101_000000.csv")
	assert.Equal(t, "Name\nAsha\n", rec.Body.String())

	rec, env := doRequest(t, r, http.MethodGet, "/api/leads/export?format=xml", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported export format", env.Error.Message)

	rec, _ = doRequest(t, r, http.MethodGet, "/api/leads/export", agentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
