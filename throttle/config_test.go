/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-msgthrottle/admission"
	"github.com/acronis/go-msgthrottle/clock"
	"github.com/acronis/go-msgthrottle/config"
)

func loadConfig(t *testing.T, cfgData string, dataType config.DataType, options ...ConfigOption) (*Config, error) {
	t.Helper()
	cfg := NewConfig(options...)
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgData), dataType, cfg)
	return cfg, err
}

func TestConfig(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		cfg, err := loadConfig(t, `{}`, config.DataTypeJSON)
		require.NoError(t, err)
		require.Equal(t, NewDefaultConfig(), cfg)
	})

	t.Run("read values", func(t *testing.T) {
		cfgData := `
throttle:
  maxEvents: 3
  interval: 250ms
  algorithm: TOKENBUCKET
  burst: 5
`
		cfg, err := loadConfig(t, cfgData, config.DataTypeYAML)
		require.NoError(t, err)
		require.Equal(t, 3, cfg.MaxEvents)
		require.Equal(t, config.TimeDuration(250*time.Millisecond), cfg.Interval)
		require.Equal(t, AlgorithmTokenBucket, cfg.Algorithm)
		require.Equal(t, 5, cfg.Burst)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		cfgData := `{"orders": {"throttle": {"maxEvents": 7}}}`
		cfg, err := loadConfig(t, cfgData, config.DataTypeJSON, WithKeyPrefix("orders.throttle"))
		require.NoError(t, err)
		require.Equal(t, "orders.throttle", cfg.KeyPrefix())
		require.Equal(t, 7, cfg.MaxEvents)
		require.Equal(t, 7, cfg.Burst)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name        string
			cfgData     string
			wantErrIs   error
			wantErrText string
		}{
			{
				name:      "zero maxEvents",
				cfgData:   `{"throttle": {"maxEvents": 0}}`,
				wantErrIs: admission.ErrInvalidMaxEvents,
			},
			{
				name:      "negative interval",
				cfgData:   `{"throttle": {"interval": "-1s"}}`,
				wantErrIs: admission.ErrInvalidInterval,
			},
			{
				name:        "unknown algorithm",
				cfgData:     `{"throttle": {"algorithm": "fixedWindow"}}`,
				wantErrText: `throttle.algorithm: unknown value "fixedWindow"`,
			},
			{
				name:        "negative burst",
				cfgData:     `{"throttle": {"burst": -1}}`,
				wantErrText: "throttle.burst: should be >= 0",
			},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				_, err := loadConfig(t, tt.cfgData, config.DataTypeJSON)
				require.Error(t, err)
				if tt.wantErrIs != nil {
					require.ErrorIs(t, err, tt.wantErrIs)
				}
				if tt.wantErrText != "" {
					require.Contains(t, err.Error(), tt.wantErrText)
				}
			})
		}
	})
}

func TestNewGate(t *testing.T) {
	start := time.Unix(1000, 0)

	t.Run("window", func(t *testing.T) {
		cfg := &Config{MaxEvents: 2, Interval: config.TimeDuration(time.Second)}
		gate, err := NewGate(cfg, WithGateClock(clock.NewManual(start)))
		require.NoError(t, err)
		require.IsType(t, &admission.Window{}, gate)
		require.Zero(t, gate.Request())
		require.Zero(t, gate.Request())
		require.Equal(t, time.Second, gate.Request())
	})

	t.Run("invalid window", func(t *testing.T) {
		cfg := &Config{MaxEvents: 0, Interval: config.TimeDuration(time.Second), Algorithm: AlgorithmWindow}
		gate, err := NewGate(cfg)
		require.ErrorIs(t, err, admission.ErrInvalidMaxEvents)
		require.Nil(t, gate)
	})

	for _, algorithm := range []Algorithm{AlgorithmTokenBucket, AlgorithmSlidingCounter} {
		algorithm := algorithm
		t.Run(string(algorithm), func(t *testing.T) {
			clk := clock.NewManual(start)
			cfg := &Config{MaxEvents: 2, Interval: config.TimeDuration(time.Second), Algorithm: algorithm, Burst: 2}
			gate, err := NewGate(cfg, WithGateClock(clk))
			require.NoError(t, err)
			require.Zero(t, gate.Request())
			require.Zero(t, gate.Request())
			delay := gate.Request()
			require.Positive(t, delay)
			require.LessOrEqual(t, delay, time.Second)

			require.NoError(t, clk.Advance(2*time.Second))
			require.Zero(t, gate.Request())
		})
	}

	t.Run(string(AlgorithmGCRA), func(t *testing.T) {
		cfg := &Config{MaxEvents: 1, Interval: config.TimeDuration(time.Hour), Algorithm: AlgorithmGCRA, Burst: 1}
		gate, err := NewGate(cfg)
		require.NoError(t, err)
		require.Zero(t, gate.Request())
		delay := gate.Request()
		require.Positive(t, delay)
		require.LessOrEqual(t, delay, time.Hour)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := NewGate(&Config{MaxEvents: 1, Interval: config.TimeDuration(time.Second), Algorithm: "bogus"})
		require.EqualError(t, err, `unknown admission algorithm "bogus"`)
	})

	t.Run("invalid limiter rate", func(t *testing.T) {
		_, err := NewGate(&Config{MaxEvents: 1, Algorithm: AlgorithmTokenBucket})
		require.ErrorIs(t, err, admission.ErrInvalidInterval)
	})
}

func TestNewFromConfig(t *testing.T) {
	clk := clock.NewManual(time.Unix(1000, 0))
	var got []interface{}
	sink := SinkFunc(func(msg interface{}) { got = append(got, msg) })

	cfg := &Config{MaxEvents: 1, Interval: config.TimeDuration(time.Second), Algorithm: AlgorithmWindow}
	thr, err := NewFromConfig[urgentMsg](cfg, sink, WithGateClock(clk))
	require.NoError(t, err)

	require.Zero(t, thr.Submit(regularMsg{1}))
	require.Equal(t, time.Second, thr.Submit(urgentMsg{1}))
	require.NoError(t, clk.Advance(2*time.Second))
	require.Zero(t, thr.Drain())
	require.Equal(t, []interface{}{regularMsg{1}, urgentMsg{1}}, got)

	_, err = NewFromConfig[urgentMsg](cfg, nil)
	require.ErrorIs(t, err, ErrNilSink)
}
