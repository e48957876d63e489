/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-msgthrottle/admission"
)

// LeakyBucketLimiterTestSuite contains tests for LeakyBucketLimiter
type LeakyBucketLimiterTestSuite struct {
	suite.Suite
}

func TestLeakyBucketLimiter(t *testing.T) {
	suite.Run(t, new(LeakyBucketLimiterTestSuite))
}

func (ts *LeakyBucketLimiterTestSuite) TestNewValidation() {
	_, err := NewLeakyBucketLimiter(Rate{Count: 0, Duration: time.Second}, 1, 0)
	ts.ErrorIs(err, admission.ErrInvalidMaxEvents)

	_, err = NewLeakyBucketLimiter(Rate{Count: 1, Duration: 0}, 1, 0)
	ts.ErrorIs(err, admission.ErrInvalidInterval)

	_, err = NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Second}, 0, 0)
	ts.EqualError(err, "max burst must be greater than 0, got 0")
}

func (ts *LeakyBucketLimiterTestSuite) TestAllowSequential() {
	limiter, err := NewLeakyBucketLimiter(Rate{Count: 2, Duration: time.Second}, 2, 100)
	ts.Require().NoError(err)

	ctx := context.Background()
	key := "test-key"

	// First two events fit into the burst.
	for i := 0; i < 2; i++ {
		allow, retryAfter, err := limiter.Allow(ctx, key)
		ts.NoError(err)
		ts.True(allow)
		ts.Equal(time.Duration(0), retryAfter)
	}

	// Third event should be rate limited.
	allow, retryAfter, err := limiter.Allow(ctx, key)
	ts.NoError(err)
	ts.False(allow)
	ts.Greater(retryAfter, time.Duration(0))
	ts.LessOrEqual(retryAfter, time.Second)

	// Another key has its own bucket.
	allow, _, err = limiter.Allow(ctx, "another-key")
	ts.NoError(err)
	ts.True(allow)
}

func (ts *LeakyBucketLimiterTestSuite) TestAllowAfterRetryDelay() {
	limiter, err := NewLeakyBucketLimiter(Rate{Count: 1, Duration: 50 * time.Millisecond}, 1, 0)
	ts.Require().NoError(err)

	gate := Gate(limiter, "key")
	ts.Zero(gate.Request())
	delay := gate.Request()
	ts.Require().Greater(delay, time.Duration(0))

	time.Sleep(delay + 5*time.Millisecond)
	ts.Zero(gate.Request())
}
