// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/VA7DBI/skillswap/auth"
	"github.com/VA7DBI/skillswap/backend"
	"github.com/VA7DBI/skillswap/config"
	"github.com/VA7DBI/skillswap/logging"
	"github.com/VA7DBI/skillswap/middleware"
	"github.com/VA7DBI/skillswap/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// AdminRole may read the token cache statistics.
const AdminRole = "Admin"

// SessionService is what the gateway needs from the session manager.
type SessionService interface {
	middleware.SessionView
	Login(ctx context.Context, creds backend.Credentials) (session.User, error)
	Register(ctx context.Context, creds backend.Credentials) (session.User, error)
	Logout(ctx context.Context)
	UpdateProfile(ctx context.Context, update session.ProfileUpdate) (session.User, bool)
	CurrentUser() (session.User, bool)
	RememberMe() bool
	CacheStats() auth.CacheStats
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse describes the current session
type SessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user"`
	RememberMe    bool          `json:"rememberMe"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

type Gateway struct {
	session SessionService
	log     *zap.Logger
}

func NewGateway(s SessionService, log *zap.Logger) *Gateway {
	return &Gateway{session: s, log: logging.OrNop(log).Named("gateway")}
}

func registerRoutes(r *gin.Engine, gw *Gateway, cfg *config.Config) {
	guard := middleware.NewSessionMiddleware(gw.session)

	s := r.Group("/session")
	s.POST("/login", gw.LoginHandler)
	s.POST("/register", gw.RegisterHandler)
	s.POST("/logout", gw.LogoutHandler)
	s.GET("", gw.SessionHandler)
	s.PATCH("/profile", guard.Handler(), gw.ProfileHandler)
	s.GET("/stats", guard.Handler(), guard.RequireRole(AdminRole), gw.StatsHandler)

	r.GET("/api/validate", guard.Bearer(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	r.GET("/health", healthCheck)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
}

// @Summary     Log in
// @Description Exchange credentials with the authentication backend and install the session
// @Tags        session
// @Accept      json
// @Produce     json
// @Param       credentials body backend.Credentials true "Email, password and rememberMe"
// @Success     200 {object} session.User
// @Failure     400 {object} ErrorResponse
// @Failure     401 {object} ErrorResponse
// @Failure     422 {object} ErrorResponse
// @Failure     502 {object} ErrorResponse
// @Router      /session/login [post]
func (g *Gateway) LoginHandler(c *gin.Context) {
	var creds backend.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	user, err := g.session.Login(c.Request.Context(), creds)
	if err != nil {
		g.authError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary     Register
// @Description Create an account and install its session. Registered sessions are remembered.
// @Tags        session
// @Accept      json
// @Produce     json
// @Param       credentials body backend.Credentials true "Email, password and display name"
// @Success     201 {object} session.User
// @Failure     400 {object} ErrorResponse
// @Failure     409 {object} ErrorResponse
// @Failure     422 {object} ErrorResponse
// @Failure     502 {object} ErrorResponse
// @Router      /session/register [post]
func (g *Gateway) RegisterHandler(c *gin.Context) {
	var creds backend.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	user, err := g.session.Register(c.Request.Context(), creds)
	if err != nil {
		g.authError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// @Summary     Log out
// @Description Purge the session from memory, storage and the token cache
// @Tags        session
// @Success     204
// @Router      /session/logout [post]
func (g *Gateway) LogoutHandler(c *gin.Context) {
	g.session.Logout(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// @Summary     Current session
// @Tags        session
// @Produce     json
// @Success     200 {object} SessionResponse
// @Router      /session [get]
func (g *Gateway) SessionHandler(c *gin.Context) {
	resp := SessionResponse{
		Authenticated: g.session.IsAuthenticated(),
		RememberMe:    g.session.RememberMe(),
	}
	if u, ok := g.session.CurrentUser(); ok {
		resp.User = &u
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary     Update profile
// @Description Merge the given fields into the current user
// @Tags        session
// @Accept      json
// @Produce     json
// @Param       profile body session.ProfileUpdate true "Fields to change"
// @Success     200 {object} session.User
// @Failure     400 {object} ErrorResponse
// @Failure     401 {object} ErrorResponse
// @Router      /session/profile [patch]
func (g *Gateway) ProfileHandler(c *gin.Context) {
	var upd session.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	user, ok := g.session.UpdateProfile(c.Request.Context(), upd)
	if !ok {
		// restored sessions may carry no user record
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Login required"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary     Token cache statistics
// @Tags        admin
// @Produce     json
// @Success     200 {object} auth.CacheStats
// @Failure     401 {object} ErrorResponse
// @Failure     403 {object} ErrorResponse
// @Router      /session/stats [get]
func (g *Gateway) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, g.session.CacheStats())
}

// authError maps login and register failures onto gateway responses.
// Backend rejections keep their status code.
func (g *Gateway) authError(c *gin.Context, op string, err error) {
	g.log.Warn("authentication failed", zap.String("operation", op), zap.Error(err))

	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusBadRequest:
		c.JSON(apiErr.StatusCode, ErrorResponse{Error: apiErr.Message})
	case errors.Is(err, session.ErrInvalidToken):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: session.ErrInvalidToken.Error()})
	default:
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Authentication backend unavailable"})
	}
}

// @Summary     Health check endpoint
// @Description Get API health status
// @Tags        health
// @Produce     json
// @Success     200 {object} HealthResponse
// @Router      /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
