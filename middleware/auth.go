// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RoleKey is the gin context key RequireRole sets on success.
const RoleKey = "role"

// SessionView is the part of the session manager the guards need.
type SessionView interface {
	IsAuthenticated() bool
	HasRole(role string) bool
	TokenValid(token string) bool
}

// SessionMiddleware guards gateway routes with the current session state.
type SessionMiddleware struct {
	session SessionView
}

func NewSessionMiddleware(session SessionView) *SessionMiddleware {
	return &SessionMiddleware{session: session}
}

// Handler lets the request through only while a session is authenticated.
func (m *SessionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.session.IsAuthenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Login required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole rejects requests unless the current user holds role.
func (m *SessionMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.session.HasRole(role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden, " + role + " access required"})
			c.Abort()
			return
		}
		c.Set(RoleKey, role)
		c.Next()
	}
}

// Bearer validates the token carried in the Authorization header through
// the token cache.
func (m *SessionMiddleware) Bearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		if !m.session.TokenValid(token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// extractToken returns the credentials of a Bearer Authorization header.
// The scheme is case-insensitive and runs of spaces are tolerated.
func extractToken(c *gin.Context) string {
	fields := strings.Fields(c.GetHeader("Authorization"))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}
