// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/VA7DBI/skillswap/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	LoginPath    = "/api/auth/login"
	RegisterPath = "/api/auth/register"
)

// ErrUnreachable wraps transport failures talking to the backend.
var ErrUnreachable = errors.New("authentication backend unreachable")

// Credentials is the body of login and register requests.
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name,omitempty"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth backend returned %d: %s", e.StatusCode, e.Message)
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Client talks to the REST authentication endpoints. It does not retry.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	return c.obtainToken(ctx, "login", LoginPath, creds)
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, creds Credentials) (string, error) {
	return c.obtainToken(ctx, "register", RegisterPath, creds)
}

func (c *Client) obtainToken(ctx context.Context, op, path string, creds Credentials) (string, error) {
	timer := prometheus.NewTimer(metrics.AuthRequestDuration.WithLabelValues(op))
	defer timer.ObserveDuration()

	token, status, err := c.post(ctx, path, creds)
	metrics.AuthRequests.WithLabelValues(op, status).Inc()
	return token, err
}

func (c *Client) post(ctx context.Context, path string, body any) (string, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", "error", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", "error", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "unreachable", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", status, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	var tr tokenResponse
	_ = json.Unmarshal(data, &tr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := tr.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", status, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if tr.Token == "" {
		return "", status, &APIError{StatusCode: resp.StatusCode, Message: "missing token"}
	}
	return tr.Token, status, nil
}
