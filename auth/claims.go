// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedToken = errors.New("malformed token")

// Claims is the decoded payload of an authentication token.
type Claims map[string]any

// Decode extracts the claims of a token without verifying its signature or
// any registered claim. Verification is the backend's job.
func Decode(token string) (Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrMalformedToken)
	}
	return Claims(mc), nil
}

// ExpiresAt returns the exp claim, if present and numeric.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// UserID returns user_id, falling back to the registered sub claim.
func (c Claims) UserID() (int64, bool) {
	if id, ok := toInt64(c["user_id"]); ok {
		return id, true
	}
	return toInt64(c["sub"])
}

// HasSubject reports whether the token names the user it was issued to.
// A user_id that is not a number does not count.
func (c Claims) HasSubject() bool {
	if _, ok := toInt64(c["user_id"]); ok {
		return true
	}
	return c.str("sub") != ""
}

func (c Claims) Email() string { return c.str("email") }
func (c Claims) Role() string  { return c.str("role") }
func (c Claims) Name() string  { return c.str("name") }
func (c Claims) Bio() string   { return c.str("bio") }

// Valid reports whether the token carries an expiry and a subject and has not
// expired at now.
func (c Claims) Valid(now time.Time) bool {
	if c == nil {
		return false
	}
	if !c.HasSubject() {
		return false
	}
	exp, ok := c.ExpiresAt()
	return ok && exp.After(now)
}

func (c Claims) str(key string) string {
	s, _ := c[key].(string)
	return s
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		if n == "" {
			return 0, false
		}
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
