// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokenCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_token_cache_lookups_total",
		Help: "Token cache lookups by result",
	}, []string{"result"}) // hit, miss

	TokenCacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_token_cache_evictions_total",
		Help: "Token cache entries removed before being read again",
	}, []string{"reason"}) // lru, expired

	TokenCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skillswap_token_cache_entries",
		Help: "Live entries in the token cache",
	})

	SessionRestores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_session_restores_total",
		Help: "Outcome of session restoration at startup",
	}, []string{"outcome"})

	AuthRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_auth_requests_total",
		Help: "Login and register calls by outcome",
	}, []string{"operation", "status"})

	AuthRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillswap_auth_request_duration_seconds",
		Help:    "Round trip time to the authentication backend",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 10), // 10ms to ~5s
	}, []string{"operation"})

	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_storage_errors_total",
		Help: "Storage operations that failed and were treated as absent",
	}, []string{"store", "op"})
)
