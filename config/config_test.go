/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testGateConfig struct {
	MaxEvents int
	Interval  time.Duration

	keyPrefix string
}

func (c *testGateConfig) KeyPrefix() string {
	return c.keyPrefix
}

func (c *testGateConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("maxEvents", 100)
	dp.SetDefault("interval", time.Second)
}

func (c *testGateConfig) Set(dp DataProvider) (err error) {
	if c.MaxEvents, err = dp.GetInt("maxEvents"); err != nil {
		return err
	}
	if c.Interval, err = dp.GetDuration("interval"); err != nil {
		return err
	}
	return nil
}

type testAppConfig struct {
	Gate    *testGateConfig
	Backup  *testGateConfig
	Missing *testGateConfig
	NilCfg  Config
	Verbose bool
}

func (c *testAppConfig) SetProviderDefaults(dp DataProvider) {
	CallSetProviderDefaultsForFields(c, dp)
}

func (c *testAppConfig) Set(dp DataProvider) (err error) {
	if err = CallSetForFields(c, dp); err != nil {
		return err
	}
	c.Verbose, err = dp.GetBool("verbose")
	return err
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &testGateConfig{keyPrefix: "throttle"}
		require.NoError(t, NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, cfg))
		require.Equal(t, 100, cfg.MaxEvents)
		require.Equal(t, time.Second, cfg.Interval)
	})

	t.Run("json with key prefix", func(t *testing.T) {
		cfg := &testGateConfig{keyPrefix: "throttle"}
		cfgJSON := `{"throttle":{"maxEvents":3,"interval":"250ms"}}`
		require.NoError(t, NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgJSON), DataTypeJSON, cfg))
		require.Equal(t, 3, cfg.MaxEvents)
		require.Equal(t, 250*time.Millisecond, cfg.Interval)
	})

	t.Run("several configs", func(t *testing.T) {
		first := &testGateConfig{keyPrefix: "first"}
		second := &testGateConfig{keyPrefix: "second"}
		cfgYAML := `
first:
  maxEvents: 1
second:
  interval: 2s
`
		require.NoError(t, NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgYAML), DataTypeYAML, first, second))
		require.Equal(t, 1, first.MaxEvents)
		require.Equal(t, time.Second, first.Interval)
		require.Equal(t, 100, second.MaxEvents)
		require.Equal(t, 2*time.Second, second.Interval)
	})

	t.Run("invalid value", func(t *testing.T) {
		cfg := &testGateConfig{keyPrefix: "throttle"}
		cfgYAML := `
throttle:
  maxEvents: many
`
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgYAML), DataTypeYAML, cfg)
		require.ErrorContains(t, err, "throttle.maxEvents")
	})
}

func TestLoader_LoadDefaults(t *testing.T) {
	t.Setenv("MSGTEST_THROTTLE_MAXEVENTS", "7")
	cfg := &testGateConfig{keyPrefix: "throttle"}
	require.NoError(t, NewDefaultLoader("msgtest").LoadDefaults(cfg))
	require.Equal(t, 7, cfg.MaxEvents)
	require.Equal(t, time.Second, cfg.Interval)
}

func TestCallHelpers(t *testing.T) {
	cfg := &testAppConfig{
		Gate:   &testGateConfig{keyPrefix: "gate"},
		Backup: &testGateConfig{keyPrefix: "backup"},
	}
	cfgYAML := `
verbose: true
gate:
  maxEvents: 3
  interval: 1s
`
	require.NoError(t, NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgYAML), DataTypeYAML, cfg))
	require.True(t, cfg.Verbose)
	require.Nil(t, cfg.Missing)
	require.Nil(t, cfg.NilCfg)
	require.Equal(t, 3, cfg.Gate.MaxEvents)
	require.Equal(t, 100, cfg.Backup.MaxEvents)
	require.Equal(t, time.Second, cfg.Backup.Interval)
}

func TestWrapKeyErrIfNeeded(t *testing.T) {
	require.NoError(t, WrapKeyErrIfNeeded("throttle.interval", nil))

	errInvalid := errors.New("invalid interval")
	err := WrapKeyErrIfNeeded("throttle.interval", errInvalid)
	require.EqualError(t, err, "throttle.interval: invalid interval")
	require.ErrorIs(t, err, errInvalid)
}
