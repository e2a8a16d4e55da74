// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestDecode(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ValidToken", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"user_id": 7,
			"email":   "ada@example.com",
			"role":    "Admin",
			"exp":     now.Add(time.Hour).Unix(),
		})

		claims, err := Decode(token)
		require.NoError(t, err)

		id, ok := claims.UserID()
		assert.True(t, ok)
		assert.Equal(t, int64(7), id)
		assert.Equal(t, "ada@example.com", claims.Email())
		assert.Equal(t, "Admin", claims.Role())
		assert.Equal(t, "", claims.Name())

		exp, ok := claims.ExpiresAt()
		assert.True(t, ok)
		assert.Equal(t, now.Add(time.Hour).Unix(), exp.Unix())
		assert.True(t, claims.Valid(now))
	})

	t.Run("SignatureIsNotChecked", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1}).
			SignedString([]byte("some-other-secret"))
		require.NoError(t, err)

		_, err = Decode(token)
		assert.NoError(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, token := range []string{"", "not-a-token", "a.b", "a.b.c"} {
			_, err := Decode(token)
			assert.Error(t, err, token)
			assert.True(t, errors.Is(err, ErrMalformedToken), token)
		}
	})
}

func TestClaimsValid(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	future := float64(now.Add(time.Hour).Unix())

	tests := []struct {
		name   string
		claims Claims
		want   bool
	}{
		{"Valid", Claims{"user_id": float64(7), "exp": future}, true},
		{"SubjectFallback", Claims{"sub": "42", "exp": future}, true},
		{"MissingExp", Claims{"user_id": float64(7)}, false},
		{"MissingSubject", Claims{"exp": future}, false},
		{"EmptyUserID", Claims{"user_id": "", "exp": future}, false},
		{"NonNumericUserID", Claims{"user_id": "abc", "exp": future}, false},
		{"NonNumericUserIDWithSub", Claims{"user_id": true, "sub": "42", "exp": future}, true},
		{"Expired", Claims{"user_id": float64(7), "exp": float64(now.Add(-time.Second).Unix())}, false},
		{"ExpiresNow", Claims{"user_id": float64(7), "exp": float64(now.Unix())}, false},
		{"Nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.claims.Valid(now))
		})
	}
}

func TestClaimsUserID(t *testing.T) {
	id, ok := Claims{"sub": "19"}.UserID()
	assert.True(t, ok)
	assert.Equal(t, int64(19), id)

	_, ok = Claims{"sub": "user-abc"}.UserID()
	assert.False(t, ok)
	assert.True(t, Claims{"sub": "user-abc"}.HasSubject())
}
