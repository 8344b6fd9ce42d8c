package config

import (
	"time"
)

// DefaultIdleWait paces passes that sent nothing (empty lyrics).
const DefaultIdleWait = time.Second

// Settings is one immutable snapshot of the configuration file.
//
// Example (config.yaml):
//
//	prefix: "♪ "
//	reload: true
//	interval: 5
//	lyrics:
//	  - hello
//	  - world
type Settings struct {
	Prefix *string  `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Suffix *string  `mapstructure:"suffix" yaml:"suffix,omitempty"`
	Reload bool     `mapstructure:"reload" yaml:"reload"`
	Lyrics []string `mapstructure:"lyrics" yaml:"lyrics"`

	// IntervalSeconds is the pause after every send.
	IntervalSeconds uint32 `mapstructure:"interval" yaml:"interval"`

	// IdleWait is a Go duration string (e.g. "500ms", "1s").
	// Omitted means DefaultIdleWait; "0s" disables pacing of empty passes.
	IdleWait *string `mapstructure:"idle_wait" yaml:"idle_wait,omitempty"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging,omitempty"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics,omitempty"`
}

type LoggingConfig struct {
	Level   string      `mapstructure:"level" yaml:"level,omitempty"`
	Console bool        `mapstructure:"console" yaml:"console,omitempty"`
	File    LoggingFile `mapstructure:"file" yaml:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

// MetricsConfig controls the optional Prometheus exposition server.
//
// Addr defaults to "127.0.0.1:9464". Non-loopback addresses are refused.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Addr    string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// PrefixText returns the prefix, or "" when absent.
func (s *Settings) PrefixText() string {
	if s == nil || s.Prefix == nil {
		return ""
	}
	return *s.Prefix
}

// SuffixText returns the suffix, or "" when absent.
func (s *Settings) SuffixText() string {
	if s == nil || s.Suffix == nil {
		return ""
	}
	return *s.Suffix
}

func (s *Settings) Interval() time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// IdleDuration resolves IdleWait.
func (s *Settings) IdleDuration() (time.Duration, error) {
	if s == nil || s.IdleWait == nil {
		return DefaultIdleWait, nil
	}
	return ParseDurationField("idle_wait", *s.IdleWait)
}
