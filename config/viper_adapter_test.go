/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testDispatcherConfigYAML = `
dispatcher:
  queueSize: 64
  algorithm: GCRA
  dedup:
    ttl: 30s
  log:
    maxSize: 10M
`

func TestViperAdapter_SetFromFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(fname, []byte(testDispatcherConfigYAML), 0o600))

	va := NewViperAdapter()
	require.NoError(t, va.SetFromFile(fname, DataTypeYAML))
	queueSize, err := va.GetInt("dispatcher.queueSize")
	require.NoError(t, err)
	require.Equal(t, 64, queueSize)

	require.Error(t, NewViperAdapter().SetFromFile(filepath.Join(t.TempDir(), "missing.yaml"), DataTypeYAML))
}

func TestViperAdapter_GetStringFromSet(t *testing.T) {
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(testDispatcherConfigYAML), DataTypeYAML))
	set := []string{"window", "gcra", "tokenBucket"}

	val, err := va.GetStringFromSet("dispatcher.algorithm", set, true)
	require.NoError(t, err)
	require.Equal(t, "gcra", val)

	_, err = va.GetStringFromSet("dispatcher.algorithm", set, false)
	require.EqualError(t, err, `dispatcher.algorithm: unknown value "GCRA", should be one of [window gcra tokenBucket]`)
}

func TestViperAdapter_GetDuration(t *testing.T) {
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(testDispatcherConfigYAML), DataTypeYAML))

	ttl, err := va.GetDuration("dispatcher.dedup.ttl")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, ttl)

	missing, err := va.GetDuration("dispatcher.dedup.missing")
	require.NoError(t, err)
	require.Zero(t, missing)

	va.Set("dispatcher.interval", TimeDuration(time.Minute))
	interval, err := va.GetDuration("dispatcher.interval")
	require.NoError(t, err)
	require.Equal(t, time.Minute, interval)

	va.Set("dispatcher.broken", "soon")
	_, err = va.GetDuration("dispatcher.broken")
	require.ErrorContains(t, err, "dispatcher.broken")
}

func TestViperAdapter_GetByteSize(t *testing.T) {
	tests := []struct {
		name    string
		val     interface{}
		want    ByteSize
		wantErr bool
	}{
		{"human-readable", "10M", 10 * 1024 * 1024, false},
		{"k8s suffix", "512Ki", 512 * 1024, false},
		{"integer", 2048, 2048, false},
		{"float", 1.0, 1, false},
		{"empty", "", 0, false},
		{"negative", -1, 0, true},
		{"garbage", "lots", 0, true},
		{"unsupported", []int{1}, 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			va := NewViperAdapter()
			va.Set("log.maxSize", tt.val)
			got, err := va.GetByteSize("log.maxSize")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestKeyPrefixedDataProvider_Unmarshal(t *testing.T) {
	type dedupConfig struct {
		TTL TimeDuration `mapstructure:"ttl"`
	}
	type dispatcherConfig struct {
		QueueSize int         `mapstructure:"queueSize"`
		Dedup     dedupConfig `mapstructure:"dedup"`
		Log       struct {
			MaxSize ByteSize `mapstructure:"maxSize"`
		} `mapstructure:"log"`
	}

	var dp DataProvider = NewKeyPrefixedDataProvider(NewViperAdapter(), "dispatcher")
	require.NoError(t, dp.SetFromReader(bytes.NewBufferString(testDispatcherConfigYAML), DataTypeYAML))

	var c dispatcherConfig
	require.NoError(t, dp.Unmarshal(&c))
	require.Equal(t, 64, c.QueueSize)
	require.Equal(t, TimeDuration(30*time.Second), c.Dedup.TTL)
	require.Equal(t, ByteSize(10*1024*1024), c.Log.MaxSize)

	var dedup dedupConfig
	require.NoError(t, dp.UnmarshalKey("dedup", &dedup))
	require.Equal(t, "30s", dedup.TTL.String())

	require.True(t, dp.IsSet("queueSize"))
	require.False(t, dp.IsSet("missing"))
	require.EqualError(t, dp.WrapKeyErr("queueSize", os.ErrInvalid), "dispatcher.queueSize: "+os.ErrInvalid.Error())
}
