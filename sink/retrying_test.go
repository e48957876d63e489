/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-msgthrottle/log"
	"github.com/acronis/go-msgthrottle/log/logtest"
	"github.com/acronis/go-msgthrottle/retry"
)

var errTemporary = errors.New("temporary failure")

func TestRetrying_SucceedsAfterRetries(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	calls := 0
	deliver := func(ctx context.Context, msg interface{}) error {
		calls++
		if calls < 3 {
			return errTemporary
		}
		return nil
	}
	r := NewRetrying(deliver, retry.NewConstantBackoffPolicy(time.Millisecond, 5), WithRetryLogger(logRecorder))

	r.Notify(newOrder{1})

	require.Equal(t, 3, calls)
	require.EqualValues(t, 1, r.Delivered())
	require.Zero(t, r.Failed())

	retries := logRecorder.FindAllEntriesByFilter(func(e logtest.RecordedEntry) bool {
		return e.Text == "message delivery failed, retrying"
	})
	require.Len(t, retries, 2)
	require.Equal(t, log.LevelWarn, retries[0].Level)
}

func TestRetrying_GivesUp(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	calls := 0
	deliver := func(ctx context.Context, msg interface{}) error {
		calls++
		return errTemporary
	}
	r := NewRetrying(deliver, retry.NewConstantBackoffPolicy(time.Millisecond, 2), WithRetryLogger(logRecorder))

	r.Notify(newOrder{1})

	require.Equal(t, 3, calls) // first attempt + 2 retries
	require.Zero(t, r.Delivered())
	require.EqualValues(t, 1, r.Failed())

	entry, found := logRecorder.FindEntry("message delivery failed, giving up")
	require.True(t, found)
	require.Equal(t, log.LevelError, entry.Level)
	attemptsField, found := entry.FindField("attempts")
	require.True(t, found)
	require.EqualValues(t, 3, attemptsField.Int)
}

func TestRetrying_PermanentError(t *testing.T) {
	errPermanent := errors.New("bad message")
	calls := 0
	deliver := func(ctx context.Context, msg interface{}) error {
		calls++
		return errPermanent
	}
	r := NewRetrying(deliver, retry.NewConstantBackoffPolicy(time.Millisecond, 10),
		WithRetryableErrors(func(err error) bool { return errors.Is(err, errTemporary) }))

	r.Notify(newOrder{1})

	require.Equal(t, 1, calls)
	require.EqualValues(t, 1, r.Failed())
}

func TestRetrying_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	deliver := func(ctx context.Context, msg interface{}) error {
		calls++
		return errTemporary
	}
	r := NewRetrying(deliver, retry.NewConstantBackoffPolicy(time.Hour, 0), WithRetryContext(ctx))

	r.Notify(newOrder{1})

	require.LessOrEqual(t, calls, 1)
	require.EqualValues(t, 1, r.Failed())
}
