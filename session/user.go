// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package session

import "github.com/VA7DBI/skillswap/auth"

// Defaults substituted for claims the token does not carry.
const (
	DefaultRole         = "User"
	DefaultLoginName    = "Test User"
	DefaultRegisterName = "New User"
)

// User is the identity installed for an authenticated session.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Bio   string `json:"bio"`
}

// ProfileUpdate carries the fields a user may change. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Email *string `json:"email,omitempty"`
	Name  *string `json:"name,omitempty"`
	Bio   *string `json:"bio,omitempty"`
}

func (u User) apply(p ProfileUpdate) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	return u
}

// userFromClaims builds a user from token claims. Fields absent from the
// token are taken from fallback, and Role falls back to DefaultRole.
func userFromClaims(c auth.Claims, fallback User) User {
	u := fallback
	if id, ok := c.UserID(); ok {
		u.ID = id
	}
	if v := c.Email(); v != "" {
		u.Email = v
	}
	if v := c.Name(); v != "" {
		u.Name = v
	}
	if v := c.Bio(); v != "" {
		u.Bio = v
	}
	u.Role = c.Role()
	if u.Role == "" {
		u.Role = DefaultRole
	}
	return u
}
