package staffauth

import (
	"fmt"
	"time"
)

// Config is the full engine configuration. Start from DefaultConfig and
// inject Signing.Secret; there is no usable default secret.
type Config struct {
	Signing  SigningConfig
	TTL      TTLConfig
	Store    StoreConfig
	Issuance IssuanceConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// SigningConfig controls HS256 token signing.
type SigningConfig struct {
	Secret []byte
	Issuer string
	Leeway time.Duration
}

// TTLConfig sets credential lifetimes. Refresh must outlive Access.
type TTLConfig struct {
	Access  time.Duration
	Refresh time.Duration
}

// StoreConfig applies to stores the builder constructs itself.
type StoreConfig struct {
	KeyPrefix string
	OpTimeout time.Duration
}

// IssuanceConfig restricts who may receive credentials.
type IssuanceConfig struct {
	RequireStaff bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	minSecretLength = 32
	maxLeeway       = 2 * time.Minute
)

// DefaultConfig returns production defaults without a signing secret.
func DefaultConfig() Config {
	return Config{
		Signing: SigningConfig{
			Issuer: "staffauth",
			Leeway: 0,
		},
		TTL: TTLConfig{
			Access:  15 * time.Minute,
			Refresh: 7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			KeyPrefix: "srt",
			OpTimeout: 2 * time.Second,
		},
		Issuance: IssuanceConfig{
			RequireStaff: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Signing.Secret = cloneBytes(cfg.Signing.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if len(c.Signing.Secret) < minSecretLength {
		return invalidConfig("Signing Secret must be at least %d bytes", minSecretLength)
	}
	if c.Signing.Leeway < 0 || c.Signing.Leeway > maxLeeway {
		return invalidConfig("Signing Leeway must be between 0 and %s", maxLeeway)
	}
	if c.TTL.Access <= 0 {
		return invalidConfig("TTL Access must be > 0")
	}
	if c.TTL.Refresh <= c.TTL.Access {
		return invalidConfig("TTL Refresh must be greater than TTL Access")
	}
	if c.TTL.Access%time.Second != 0 || c.TTL.Refresh%time.Second != 0 {
		return invalidConfig("TTL values must be whole seconds")
	}
	if c.Store.OpTimeout < 0 {
		return invalidConfig("Store OpTimeout must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalidConfig("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalidConfig("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}
