/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-msgthrottle/log"
	"github.com/acronis/go-msgthrottle/log/logtest"
)

func TestPeriodicWorker_Run(t *testing.T) {
	t.Run("stop by context", func(t *testing.T) {
		var c atomic.Int32
		pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			c.Inc()
			return nil
		}), 20*time.Millisecond, log.NewDisabledLogger())

		ctx, cancel := context.WithCancel(context.Background())
		runErr := make(chan error, 1)
		go func() { runErr <- pw.Run(ctx) }()
		require.Eventually(t, func() bool { return c.Load() >= 3 }, 3*time.Second, 5*time.Millisecond)
		cancel()
		require.NoError(t, <-runErr)
	})

	t.Run("stop by ErrPeriodicWorkerStop", func(t *testing.T) {
		c := 0
		pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			c++
			if c == 2 {
				return ErrPeriodicWorkerStop
			}
			return nil
		}), time.Millisecond, log.NewDisabledLogger())
		require.NoError(t, pw.Run(context.Background()))
		require.Equal(t, 2, c)
	})

	t.Run("errors are logged and delay is overridden", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		var delays []error
		c := 0
		pw := NewPeriodicWorkerWithOpts(WorkerFunc(func(ctx context.Context) error {
			c++
			switch c {
			case 1:
				return errors.New("report failed")
			case 3:
				return ErrPeriodicWorkerStop
			}
			return nil
		}), time.Hour, logRecorder, PeriodicWorkerOpts{
			InitialDelay: time.Millisecond,
			IntervalDelayFunc: func(worker Worker, err error) time.Duration {
				delays = append(delays, err)
				return time.Millisecond
			},
		})
		require.NoError(t, pw.Run(context.Background()))
		require.Equal(t, 3, c)
		require.Len(t, delays, 2)
		require.EqualError(t, delays[0], "report failed")
		require.NoError(t, delays[1])

		entry, found := logRecorder.FindEntry("periodically running worker finished with error")
		require.True(t, found)
		require.Equal(t, log.LevelError, entry.Level)
	})
}

func TestWorkerUnit_StartStop(t *testing.T) {
	t.Run("stop gracefully waits for Run", func(t *testing.T) {
		var finished atomic.Bool
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return nil
		}))
		fatalErr := make(chan error, 1)
		go unit.Start(fatalErr)
		require.NoError(t, unit.Stop(true))
		require.True(t, finished.Load())
		require.Empty(t, fatalErr)
	})

	t.Run("stop gracefully with timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		unit := NewWorkerUnitWithOpts(WorkerFunc(func(ctx context.Context) error {
			<-release
			return nil
		}), WorkerUnitOpts{GracefulStopTimeout: 50 * time.Millisecond})
		go unit.Start(make(chan error, 1))
		require.ErrorIs(t, unit.Stop(true), ErrWorkerUnitStopTimeoutExceeded)
	})

	t.Run("stop not gracefully", func(t *testing.T) {
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}))
		go unit.Start(make(chan error, 1))
		require.NoError(t, unit.Stop(false))
	})

	t.Run("run error is fatal", func(t *testing.T) {
		errBoom := errors.New("boom")
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error { return errBoom }))
		fatalErr := make(chan error, 1)
		unit.Start(fatalErr)
		require.ErrorIs(t, <-fatalErr, errBoom)
	})

	t.Run("metrics registerer", func(t *testing.T) {
		mu := newMockUnit("metrics", atomic.NewInt32(0))
		unit := NewWorkerUnitWithOpts(WorkerFunc(func(ctx context.Context) error { return nil }),
			WorkerUnitOpts{MetricsRegisterer: mu})
		unit.MustRegisterMetrics()
		unit.UnregisterMetrics()
		require.EqualValues(t, 1, mu.mustRegisterMetricsCalled.Load())
		require.EqualValues(t, 1, mu.unregisterMetricsCalled.Load())
	})
}
