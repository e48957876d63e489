/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides in-memory cache with LRU eviction policy, expiration mechanism, and Prometheus metrics.
// It holds per-key limiters of internal/ratelimit and recently seen envelope IDs of the dispatcher.
package lrucache
