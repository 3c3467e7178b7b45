package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-crm/internal/models"
	appErrors "github.com/noah-isme/admissions-crm/pkg/errors"
)

const (
	adminToken = "admin-token"
	agentToken = "agent-token"
	leadToken  = "lead-token"

	adminID = "11111111-1111-1111-1111-111111111111"
	agentID = "22222222-2222-2222-2222-222222222222"
	leadID  = "33333333-3333-3333-3333-333333333333"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Msg   string `json:"msg"`
			Param string `json:"param"`
		} `json:"details"`
	} `json:"error"`
}

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(_ context.Context, token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrInvalidToken
}

func testTokens() tokenTable {
	return tokenTable{
		adminToken: {UserID: adminID, Role: models.RoleAdmin},
		agentToken: {UserID: agentID, Role: models.RoleAgent},
		leadToken:  {UserID: leadID, Role: models.RoleLead},
	}
}

// newTestRouter mounts routes under /api with every handler defaulted to an empty fake.
func newTestRouter(routes Routes) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if routes.Auth == nil {
		routes.Auth = NewAuthHandler(&fakeAuthService{})
	}
	if routes.Users == nil {
		routes.Users = NewUserHandler(&fakeUserService{})
	}
	if routes.Leads == nil {
		routes.Leads = NewLeadHandler(&fakeLeadService{}, nil, nil)
	}
	if routes.Interactions == nil {
		routes.Interactions = NewInteractionHandler(&fakeInteractionService{})
	}
	if routes.Analytics == nil {
		routes.Analytics = NewAnalyticsHandler(&fakeAnalyticsService{})
	}
	if routes.Tokens == nil {
		routes.Tokens = testTokens()
	}
	r := gin.New()
	routes.Register(r.Group("/api"))
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, responseEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env responseEnvelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData(t *testing.T, env responseEnvelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dest))
}
