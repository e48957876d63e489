/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides keyed rate limiters that can serve as admission gates for a throttle.
//
// Every limiter implements the Limiter interface and answers whether one more event for a key
// may happen now, and if not, how long to wait. A denied call never consumes capacity.
//
// Available algorithms:
//   - WindowLimiter: exact sliding window over the last N admission timestamps (ring history)
//   - LeakyBucketLimiter: GCRA, a leaky bucket variant (github.com/throttled/throttled/v2)
//   - TokenBucketLimiter: token bucket (golang.org/x/time/rate)
//   - SlidingWindowLimiter: approximate sliding window counter (github.com/RussellLuo/slidingwindow)
//
// Keys are held in an LRU cache when maxKeys > 0, otherwise all keys share a single state.
// Use Gate to bind a limiter and a key into an admission.Gate.
package ratelimit
