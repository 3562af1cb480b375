/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package driverconfig loads and validates the driver's tunables (pool
// sizing, timeouts, TLS, retry budget) from a viper source, re-decoding on
// every file change so a running driver can pick up edits without a restart.
package driverconfig

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github/sabouaram/boltdriver/duration"
	liberr "github/sabouaram/boltdriver/errors"
)

// Config is the complete set of driver tunables.
type Config struct {
	URI      string `mapstructure:"uri" validate:"required"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Realm    string `mapstructure:"realm"`

	MaxConnectionPoolSize   int               `mapstructure:"max_connection_pool_size" validate:"gte=1"`
	ConnectionAcquisition   duration.Duration `mapstructure:"connection_acquisition_timeout"`
	ConnectionTimeout       duration.Duration `mapstructure:"connection_timeout"`
	MaxConnectionLifetime   duration.Duration `mapstructure:"max_connection_lifetime"`
	MaxConnectionIdleTime   duration.Duration `mapstructure:"max_connection_idle_time"`
	// ConnectionLivenessCheckTimeout gates a cheap RESET round-trip on
	// acquire for a connection idle past this threshold but not yet past
	// MaxConnectionIdleTime, catching a peer that dropped the socket
	// without the client noticing. 0 disables the check entirely.
	ConnectionLivenessCheckTimeout duration.Duration `mapstructure:"connection_liveness_check_timeout"`
	MaxTransactionRetryTime duration.Duration `mapstructure:"max_transaction_retry_time"`
	FetchSize               int64             `mapstructure:"fetch_size" validate:"gte=-1"`

	Encrypted              bool   `mapstructure:"encrypted"`
	TrustedCertificatesPath string `mapstructure:"trusted_certificates_path"`

	UserAgent string `mapstructure:"user_agent"`

	// StrictValues, when true, rejects a server record containing any
	// BrokenValue rather than letting the driver surface it lazily at the
	// point a caller actually reads that field.
	StrictValues bool `mapstructure:"strict_values"`
}

// Default returns the tunables used when a key is absent from the source,
// mirroring the reference client's own defaults.
func Default() Config {
	return Config{
		MaxConnectionPoolSize:   100,
		ConnectionAcquisition:   duration.Seconds(60),
		ConnectionTimeout:       duration.Seconds(30),
		MaxConnectionLifetime:   duration.Hours(1),
		MaxConnectionIdleTime:   duration.Minutes(1),
		ConnectionLivenessCheckTimeout: 0,
		MaxTransactionRetryTime: duration.Seconds(30),
		FetchSize:               1000,
		UserAgent:               "boltdriver/1.0",
	}
}

// Loader decodes and validates Config from a viper instance, and can watch
// the backing file for changes.
type Loader struct {
	v   *viper.Viper
	val *validator.Validate
	key string

	onChange func(Config, error)
}

// NewLoader wraps an already-configured viper.Viper (file path, env
// prefix, etc. are the caller's responsibility to set up); key is the
// sub-tree this driver's settings live under ("" for the viper root).
func NewLoader(v *viper.Viper, key string) *Loader {
	return &Loader{v: v, val: validator.New(), key: key}
}

// decodeHook lets duration.Duration fields (and anything else implementing
// encoding.TextUnmarshaler) decode from the plain strings a config file
// naturally holds ("30s", "1h"), instead of requiring nanosecond integers.
func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

func (l *Loader) unmarshal(out *Config) error {
	*out = Default()
	if l.key == "" {
		return l.v.Unmarshal(out, decodeHook())
	}
	return l.v.UnmarshalKey(l.key, out, decodeHook())
}

// Load decodes and validates the configuration once.
func (l *Loader) Load() (Config, error) {
	var cfg Config
	if err := l.unmarshal(&cfg); err != nil {
		return Config{}, liberr.DriverConfigInvalid.Error(err)
	}
	if err := l.val.Struct(cfg); err != nil {
		return Config{}, liberr.DriverConfigInvalid.Error(err)
	}
	return cfg, nil
}

// Watch calls onChange with a freshly decoded Config every time the backing
// source reports a write, including an invalid-configuration error rather
// than silently keeping the stale value.
func (l *Loader) Watch(onChange func(Config, error)) {
	l.onChange = onChange
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.Load()
		l.onChange(cfg, err)
	})
	l.v.WatchConfig()
}

// Validate re-checks an already-decoded Config, useful after a caller
// mutates one programmatically instead of through the loader.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return liberr.DriverConfigInvalid.Error(err)
	}
	if cfg.MaxConnectionPoolSize < 1 {
		return liberr.DriverConfigInvalid.Error(fmt.Errorf("max_connection_pool_size must be >= 1"))
	}
	return nil
}
