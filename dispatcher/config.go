/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package dispatcher

import (
	"fmt"
	"time"

	"github.com/acronis/go-msgthrottle/config"
	"github.com/acronis/go-msgthrottle/retry"
)

const cfgDefaultKeyPrefix = "dispatcher"

const (
	cfgKeyQueueSize                    = "queueSize"
	cfgKeyBacklogWarnThreshold         = "backlogWarnThreshold"
	cfgKeyDedupEnabled                 = "dedup.enabled"
	cfgKeyDedupMaxKeys                 = "dedup.maxKeys"
	cfgKeyDedupTTL                     = "dedup.ttl"
	cfgKeyDeliveryRetryEnabled         = "delivery.retry.enabled"
	cfgKeyDeliveryRetryMaxAttempts     = "delivery.retry.maxAttempts"
	cfgKeyDeliveryRetryInitialInterval = "delivery.retry.initialInterval"
)

// Default values.
const (
	DefaultBacklogWarnThreshold         = 10000
	DefaultDedupMaxKeys                 = 10000
	DefaultDedupTTL                     = 5 * time.Minute
	DefaultDeliveryRetryMaxAttempts     = 3
	DefaultDeliveryRetryInitialInterval = 100 * time.Millisecond
)

// DedupConfig represents configuration of envelope deduplication.
type DedupConfig struct {
	Enabled bool                `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MaxKeys int                 `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`
	TTL     config.TimeDuration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

// RetryConfig represents configuration of delivery retries.
type RetryConfig struct {
	Enabled         bool                `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MaxAttempts     int                 `mapstructure:"maxAttempts" yaml:"maxAttempts" json:"maxAttempts"`
	InitialInterval config.TimeDuration `mapstructure:"initialInterval" yaml:"initialInterval" json:"initialInterval"`
}

// DeliveryConfig represents configuration of message delivery to the sink.
type DeliveryConfig struct {
	Retry RetryConfig `mapstructure:"retry" yaml:"retry" json:"retry"`
}

// Config represents a set of configuration parameters for Dispatcher.
type Config struct {
	QueueSize            int            `mapstructure:"queueSize" yaml:"queueSize" json:"queueSize"`
	BacklogWarnThreshold int            `mapstructure:"backlogWarnThreshold" yaml:"backlogWarnThreshold" json:"backlogWarnThreshold"`
	Dedup                DedupConfig    `mapstructure:"dedup" yaml:"dedup" json:"dedup"`
	Delivery             DeliveryConfig `mapstructure:"delivery" yaml:"delivery" json:"delivery"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for Dispatcher in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyQueueSize, DefaultQueueSize)
	dp.SetDefault(cfgKeyBacklogWarnThreshold, DefaultBacklogWarnThreshold)
	dp.SetDefault(cfgKeyDedupEnabled, false)
	dp.SetDefault(cfgKeyDedupMaxKeys, DefaultDedupMaxKeys)
	dp.SetDefault(cfgKeyDedupTTL, DefaultDedupTTL.String())
	dp.SetDefault(cfgKeyDeliveryRetryEnabled, false)
	dp.SetDefault(cfgKeyDeliveryRetryMaxAttempts, DefaultDeliveryRetryMaxAttempts)
	dp.SetDefault(cfgKeyDeliveryRetryInitialInterval, DefaultDeliveryRetryInitialInterval.String())
}

// Set sets Dispatcher configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.QueueSize, err = getNonNegativeInt(dp, cfgKeyQueueSize); err != nil {
		return err
	}
	if c.BacklogWarnThreshold, err = getNonNegativeInt(dp, cfgKeyBacklogWarnThreshold); err != nil {
		return err
	}

	if c.Dedup.Enabled, err = dp.GetBool(cfgKeyDedupEnabled); err != nil {
		return err
	}
	if c.Dedup.MaxKeys, err = dp.GetInt(cfgKeyDedupMaxKeys); err != nil {
		return err
	}
	if c.Dedup.Enabled && c.Dedup.MaxKeys < 1 {
		return dp.WrapKeyErr(cfgKeyDedupMaxKeys, fmt.Errorf("should be > 0"))
	}
	if c.Dedup.TTL, err = getNonNegativeDuration(dp, cfgKeyDedupTTL); err != nil {
		return err
	}

	if c.Delivery.Retry.Enabled, err = dp.GetBool(cfgKeyDeliveryRetryEnabled); err != nil {
		return err
	}
	if c.Delivery.Retry.MaxAttempts, err = getNonNegativeInt(dp, cfgKeyDeliveryRetryMaxAttempts); err != nil {
		return err
	}
	if c.Delivery.Retry.InitialInterval, err = getNonNegativeDuration(dp, cfgKeyDeliveryRetryInitialInterval); err != nil {
		return err
	}
	return nil
}

// Options returns dispatcher options described by the configuration.
func (c *Config) Options() []Option {
	opts := []Option{WithQueueSize(c.QueueSize), WithBacklogWarnThreshold(c.BacklogWarnThreshold)}
	if c.Dedup.Enabled {
		opts = append(opts, WithDedup(DedupOpts{MaxKeys: c.Dedup.MaxKeys, TTL: time.Duration(c.Dedup.TTL)}))
	}
	return opts
}

// RetryPolicy returns the delivery retry policy, or nil if retries are disabled.
func (c *Config) RetryPolicy() retry.Policy {
	if !c.Delivery.Retry.Enabled {
		return nil
	}
	return retry.NewExponentialBackoffPolicy(time.Duration(c.Delivery.Retry.InitialInterval), c.Delivery.Retry.MaxAttempts)
}

func getNonNegativeInt(dp config.DataProvider, key string) (int, error) {
	val, err := dp.GetInt(key)
	if err != nil {
		return 0, err
	}
	if val < 0 {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("should be >= 0"))
	}
	return val, nil
}

func getNonNegativeDuration(dp config.DataProvider, key string) (config.TimeDuration, error) {
	val, err := dp.GetDuration(key)
	if err != nil {
		return 0, err
	}
	if val < 0 {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("should be >= 0"))
	}
	return config.TimeDuration(val), nil
}
