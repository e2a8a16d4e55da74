// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/VA7DBI/skillswap/auth"
	"github.com/VA7DBI/skillswap/backend"
	"github.com/VA7DBI/skillswap/config"
	"github.com/VA7DBI/skillswap/session"
	"github.com/VA7DBI/skillswap/storage"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func issueToken(claims jwt.MapClaims) string {
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	return token
}

// newFakeBackend serves the REST authentication endpoints.
func newFakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	r := gin.New()
	r.POST(backend.LoginPath, func(c *gin.Context) {
		var creds backend.Credentials
		_ = c.ShouldBindJSON(&creds)
		switch creds.Password {
		case "correct":
			role := "User"
			if creds.Email == "admin@example.com" {
				role = "Admin"
			}
			c.JSON(http.StatusOK, gin.H{"token": issueToken(jwt.MapClaims{
				"user_id": 42,
				"email":   creds.Email,
				"role":    role,
				"exp":     time.Now().Add(time.Hour).Unix(),
			})})
		case "garbage":
			c.JSON(http.StatusOK, gin.H{"token": "not-a-jwt"})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		}
	})
	r.POST(backend.RegisterPath, func(c *gin.Context) {
		var creds backend.Credentials
		_ = c.ShouldBindJSON(&creds)
		c.JSON(http.StatusCreated, gin.H{"token": issueToken(jwt.MapClaims{
			"sub": "77",
			"exp": time.Now().Add(time.Hour).Unix(),
		})})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type testGateway struct {
	router  *gin.Engine
	mgr     *session.Manager
	durable *storage.MemoryStore
}

func setupGateway(t *testing.T, backendURL string) *testGateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"

	durable := storage.NewMemoryStore()
	mgr, err := session.New(session.Options{
		Durable:   durable,
		Ephemeral: storage.NewMemoryStore(),
		Backend:   backend.NewClient(backendURL, 2*time.Second),
		Cache:     auth.NewTokenCache(auth.CacheOptions{SafetyMargin: auth.DefaultSafetyMargin}),
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	mgr.InitializeStore(context.Background())

	r := gin.New()
	registerRoutes(r, NewGateway(mgr, zap.NewNop()), cfg)
	return &testGateway{router: r, mgr: mgr, durable: durable}
}

func (g *testGateway) do(method, path string, body any, header string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

func TestRoutesRegistered(t *testing.T) {
	gw := setupGateway(t, "http://127.0.0.1:1")

	routeMap := make(map[string]bool)
	for _, route := range gw.router.Routes() {
		routeMap[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"POST /session/login",
		"POST /session/register",
		"POST /session/logout",
		"GET /session",
		"PATCH /session/profile",
		"GET /session/stats",
		"GET /api/validate",
		"GET /health",
		"GET /swagger/*any",
		"GET /metrics",
	} {
		assert.True(t, routeMap[want], "Missing %s endpoint", want)
	}
}

func TestHealth(t *testing.T) {
	gw := setupGateway(t, "http://127.0.0.1:1")
	w := gw.do("GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSwaggerDoc(t *testing.T) {
	gw := setupGateway(t, "http://127.0.0.1:1")
	w := gw.do("GET", "/swagger/doc.json", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info  struct{ Title string } `json:"info"`
		Paths map[string]any         `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "SkillSwap Session Gateway", doc.Info.Title)
	for _, path := range []string{"/session/login", "/session/register", "/session/logout", "/session", "/session/profile", "/session/stats", "/health"} {
		assert.Contains(t, doc.Paths, path)
	}
}

func TestLoginFlow(t *testing.T) {
	srv := newFakeBackend(t)
	gw := setupGateway(t, srv.URL)

	w := gw.do("GET", "/session", nil, "")
	assert.JSONEq(t, `{"authenticated":false,"user":null,"rememberMe":false}`, w.Body.String())

	w = gw.do("POST", "/session/login", backend.Credentials{Email: "ada@example.com", Password: "correct", RememberMe: true}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var user session.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "User", user.Role)
	assert.Equal(t, session.DefaultLoginName, user.Name)

	var state SessionResponse
	require.NoError(t, json.Unmarshal(gw.do("GET", "/session", nil, "").Body.Bytes(), &state))
	assert.True(t, state.Authenticated)
	assert.True(t, state.RememberMe)
	require.NotNil(t, state.User)
	assert.Equal(t, "ada@example.com", state.User.Email)

	t.Run("BearerValidate", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, gw.do("GET", "/api/validate", nil, "Bearer "+gw.mgr.Token()).Code)
		assert.Equal(t, http.StatusUnauthorized, gw.do("GET", "/api/validate", nil, "Bearer nope").Code)
	})

	t.Run("ProfileUpdate", func(t *testing.T) {
		w := gw.do("PATCH", "/session/profile", map[string]string{"bio": "Teaches Go"}, "")
		require.Equal(t, http.StatusOK, w.Code)
		var u session.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
		assert.Equal(t, "Teaches Go", u.Bio)
		assert.Equal(t, "ada@example.com", u.Email)
	})

	t.Run("StatsNeedAdmin", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, gw.do("GET", "/session/stats", nil, "").Code)
	})

	t.Run("Logout", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, gw.do("POST", "/session/logout", nil, "").Code)
		assert.False(t, gw.mgr.IsAuthenticated())
		_, ok, _ := gw.durable.GetItem(context.Background(), session.KeyToken)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, gw.do("PATCH", "/session/profile", map[string]string{"bio": "x"}, "").Code)
	})
}

func TestAdminStats(t *testing.T) {
	srv := newFakeBackend(t)
	gw := setupGateway(t, srv.URL)

	w := gw.do("POST", "/session/login", backend.Credentials{Email: "admin@example.com", Password: "correct"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = gw.do("GET", "/session/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats auth.CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, auth.DefaultCapacity, stats.Capacity)
	assert.Equal(t, 1, stats.Size)
}

func TestRegister(t *testing.T) {
	srv := newFakeBackend(t)
	gw := setupGateway(t, srv.URL)

	w := gw.do("POST", "/session/register", backend.Credentials{Email: "new@example.com", Password: "pw", Name: "Grace"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var user session.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, int64(77), user.ID)
	assert.Equal(t, "Grace", user.Name)
	assert.Equal(t, "new@example.com", user.Email)
	assert.True(t, gw.mgr.RememberMe())
}

func TestLoginErrors(t *testing.T) {
	srv := newFakeBackend(t)

	tests := []struct {
		name    string
		url     string
		body    any
		want    int
		message string
	}{
		{"BadCredentials", srv.URL, backend.Credentials{Email: "a@example.com", Password: "wrong"}, http.StatusUnauthorized, "invalid credentials"},
		{"InvalidToken", srv.URL, backend.Credentials{Email: "a@example.com", Password: "garbage"}, http.StatusUnprocessableEntity, session.ErrInvalidToken.Error()},
		{"BackendDown", "http://127.0.0.1:1", backend.Credentials{Email: "a@example.com", Password: "correct"}, http.StatusBadGateway, "Authentication backend unavailable"},
		{"BadBody", srv.URL, "not an object", http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := setupGateway(t, tt.url)
			w := gw.do("POST", "/session/login", tt.body, "")
			assert.Equal(t, tt.want, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.message, resp.Error)
			assert.False(t, gw.mgr.IsAuthenticated())
		})
	}
}
