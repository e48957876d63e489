/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func makeMockUnits(n int, running *atomic.Int32) []*mockUnit {
	units := make([]*mockUnit, n)
	for i := range units {
		units[i] = newMockUnit(fmt.Sprintf("unit-%d", i), running)
	}
	return units
}

func toUnits(mocks []*mockUnit) []Unit {
	units := make([]Unit, len(mocks))
	for i := range mocks {
		units[i] = mocks[i]
	}
	return units
}

func TestCompositeUnit_StartStop(t *testing.T) {
	running := atomic.NewInt32(0)
	mocks := makeMockUnits(3, running)
	cu := NewCompositeUnit(toUnits(mocks)...)

	cu.MustRegisterMetrics()
	fatalErr := make(chan error, 1)
	startDone := make(chan struct{})
	go func() {
		cu.Start(fatalErr)
		close(startDone)
	}()
	require.Eventually(t, func() bool { return running.Load() == 3 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, cu.Stop(true))
	<-startDone
	cu.UnregisterMetrics()

	require.Zero(t, running.Load())
	require.Empty(t, fatalErr)
	for _, m := range mocks {
		require.EqualValues(t, 1, m.startCalled.Load())
		require.EqualValues(t, 1, m.stopGracefullyCalled.Load())
		require.EqualValues(t, 1, m.mustRegisterMetricsCalled.Load())
		require.EqualValues(t, 1, m.unregisterMetricsCalled.Load())
	}
}

func TestCompositeUnit_StopErrors(t *testing.T) {
	mocks := makeMockUnits(3, atomic.NewInt32(0))
	mocks[0].stopWithError = true
	mocks[2].stopWithError = true
	err := NewCompositeUnit(toUnits(mocks)...).Stop(false)

	var cuErr *CompositeUnitError
	require.ErrorAs(t, err, &cuErr)
	require.Len(t, cuErr.UnitErrors, 2)
	require.Contains(t, err.Error(), "unit-0: internal error")
	require.Contains(t, err.Error(), "unit-2: internal error")
}

func TestCompositeUnit_FatalErrorStopsOthers(t *testing.T) {
	errBoom := errors.New("boom")
	running := atomic.NewInt32(0)
	mocks := makeMockUnits(3, running)
	mocks[1].failOnStart = errBoom
	cu := NewCompositeUnit(toUnits(mocks)...)

	fatalErr := make(chan error, 1)
	cu.Start(fatalErr)

	err := <-fatalErr
	require.ErrorIs(t, err, errBoom)
	for _, m := range mocks {
		require.EqualValues(t, 1, m.stopCalled.Load())
		require.Zero(t, m.stopGracefullyCalled.Load())
	}
}
