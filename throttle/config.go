/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"fmt"
	"time"

	"github.com/acronis/go-msgthrottle/admission"
	"github.com/acronis/go-msgthrottle/clock"
	"github.com/acronis/go-msgthrottle/config"
	"github.com/acronis/go-msgthrottle/internal/ratelimit"
)

const cfgDefaultKeyPrefix = "throttle"

const (
	cfgKeyMaxEvents = "maxEvents"
	cfgKeyInterval  = "interval"
	cfgKeyAlgorithm = "algorithm"
	cfgKeyBurst     = "burst"
)

// Default values.
const (
	DefaultMaxEvents = 100
	DefaultInterval  = time.Second
)

// limiterKey is the only key used with keyed limiters: one Throttle is one rate domain.
const limiterKey = "throttle"

// Algorithm defines how the admission gate counts events.
type Algorithm string

// Admission algorithms.
const (
	// AlgorithmWindow is an exact sliding window over the timestamps of the last maxEvents admissions.
	AlgorithmWindow Algorithm = "window"
	// AlgorithmGCRA is the generic cell rate algorithm (leaky bucket).
	AlgorithmGCRA Algorithm = "gcra"
	// AlgorithmTokenBucket is a token bucket refilled continuously.
	AlgorithmTokenBucket Algorithm = "tokenBucket"
	// AlgorithmSlidingCounter approximates a sliding window by weighting two fixed-window counters.
	AlgorithmSlidingCounter Algorithm = "slidingCounter"
)

var availableAlgorithms = []string{
	string(AlgorithmWindow), string(AlgorithmGCRA), string(AlgorithmTokenBucket), string(AlgorithmSlidingCounter),
}

// Config represents a set of configuration parameters for Throttle.
type Config struct {
	MaxEvents int                 `mapstructure:"maxEvents" yaml:"maxEvents" json:"maxEvents"`
	Interval  config.TimeDuration `mapstructure:"interval" yaml:"interval" json:"interval"`
	Algorithm Algorithm           `mapstructure:"algorithm" yaml:"algorithm" json:"algorithm"`

	// Burst is the number of events admitted at once by AlgorithmGCRA and AlgorithmTokenBucket.
	// Zero means MaxEvents.
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`

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

func makeConfigOptions(options []ConfigOption) configOptions {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	return &Config{keyPrefix: makeConfigOptions(options).keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	return &Config{
		keyPrefix: makeConfigOptions(options).keyPrefix,
		MaxEvents: DefaultMaxEvents,
		Interval:  config.TimeDuration(DefaultInterval),
		Algorithm: AlgorithmWindow,
		Burst:     DefaultMaxEvents,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for Throttle in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxEvents, DefaultMaxEvents)
	dp.SetDefault(cfgKeyInterval, DefaultInterval.String())
	dp.SetDefault(cfgKeyAlgorithm, string(AlgorithmWindow))
	dp.SetDefault(cfgKeyBurst, 0)
}

// Set sets Throttle configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxEvents, err = dp.GetInt(cfgKeyMaxEvents); err != nil {
		return err
	}
	if c.MaxEvents < 1 {
		return dp.WrapKeyErr(cfgKeyMaxEvents, fmt.Errorf("%w, got %d", admission.ErrInvalidMaxEvents, c.MaxEvents))
	}

	interval, err := dp.GetDuration(cfgKeyInterval)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return dp.WrapKeyErr(cfgKeyInterval, fmt.Errorf("%w, got %s", admission.ErrInvalidInterval, interval))
	}
	c.Interval = config.TimeDuration(interval)

	algorithm, err := dp.GetStringFromSet(cfgKeyAlgorithm, availableAlgorithms, true)
	if err != nil {
		return err
	}
	c.Algorithm = Algorithm(algorithm)

	if c.Burst, err = dp.GetInt(cfgKeyBurst); err != nil {
		return err
	}
	if c.Burst < 0 {
		return dp.WrapKeyErr(cfgKeyBurst, fmt.Errorf("should be >= 0"))
	}
	if c.Burst == 0 {
		c.Burst = c.MaxEvents
	}
	return nil
}

// BuildOption is a functional option for NewGate and NewFromConfig.
type BuildOption func(*buildOptions)

type buildOptions struct {
	clock   clock.Clock
	onError func(err error)
}

// WithGateClock sets the clock used by the admission gate.
// AlgorithmGCRA ignores it and always uses the system clock.
func WithGateClock(clk clock.Clock) BuildOption {
	return func(o *buildOptions) {
		o.clock = clk
	}
}

// WithGateErrorHandler sets a callback for errors of the underlying limiter (e.g. to log them).
// A failing limiter denies the event and asks to retry after ratelimit.DefaultErrorRetryAfter.
func WithGateErrorHandler(fn func(err error)) BuildOption {
	return func(o *buildOptions) {
		o.onError = fn
	}
}

// NewGate creates an admission gate for the algorithm chosen in cfg.
func NewGate(cfg *Config, opts ...BuildOption) (admission.Gate, error) {
	bo := buildOptions{clock: clock.System{}}
	for _, opt := range opts {
		opt(&bo)
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = cfg.MaxEvents
	}
	maxRate := ratelimit.Rate{Count: cfg.MaxEvents, Duration: time.Duration(cfg.Interval)}

	var limiter ratelimit.Limiter
	var err error
	switch cfg.Algorithm {
	case AlgorithmWindow, "":
		window, windowErr := admission.New(cfg.MaxEvents, time.Duration(cfg.Interval), admission.WithClock(bo.clock))
		if windowErr != nil {
			return nil, windowErr
		}
		return window, nil
	case AlgorithmGCRA:
		limiter, err = ratelimit.NewLeakyBucketLimiter(maxRate, burst, 0)
	case AlgorithmTokenBucket:
		limiter, err = ratelimit.NewTokenBucketLimiter(maxRate, burst, 0, bo.clock)
	case AlgorithmSlidingCounter:
		limiter, err = ratelimit.NewSlidingWindowLimiter(maxRate, 0, bo.clock)
	default:
		return nil, fmt.Errorf("unknown admission algorithm %q", cfg.Algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("new %s limiter: %w", cfg.Algorithm, err)
	}
	return ratelimit.GateWithOpts(limiter, limiterKey, ratelimit.GateOpts{OnError: bo.onError}), nil
}

// NewFromConfig creates a Throttle with the admission gate described by cfg.
func NewFromConfig[H any](cfg *Config, sink Sink, opts ...BuildOption) (*Throttle[H], error) {
	gate, err := NewGate(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithGate[H](gate, sink)
}
