package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/detector"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Config holds every engine setting. Obtain one from [DefaultConfig], adjust
// it, then pass it to [Builder.WithConfig]. The builder copies it; later
// changes have no effect on a built engine.
type Config struct {
	Session       SessionConfig       `koanf:"session"`
	Password      PasswordConfig      `koanf:"password"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	Lockout       LockoutConfig       `koanf:"lockout"`
	PasswordReset PasswordResetConfig `koanf:"password_reset"`
	Detector      DetectorConfig      `koanf:"detector"`
	Audit         AuditConfig         `koanf:"audit"`
	Metrics       MetricsConfig       `koanf:"metrics"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session token signing and lifetime.
type SessionConfig struct {
	// RefreshInterval is the validity of each issued token; clients refresh
	// at least this often.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	// MaxLifetime bounds a session from the original login; refresh never
	// extends past it.
	MaxLifetime   time.Duration     `koanf:"max_lifetime"`
	SigningMethod string            `koanf:"signing_method"` // "ed25519" (default) or "hs256"
	PrivateKey    []byte            `koanf:"-"`
	PublicKey     []byte            `koanf:"-"`
	KeyID         string            `koanf:"key_id"`
	VerifyKeys    map[string][]byte `koanf:"-"`
	Issuer        string            `koanf:"issuer"`
	Audience      string            `koanf:"audience"`
	Leeway        time.Duration     `koanf:"leeway"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls hashing cost and reuse history.
type PasswordConfig struct {
	Memory           uint32 `koanf:"memory"`
	Time             uint32 `koanf:"time"`
	Parallelism      uint8  `koanf:"parallelism"`
	SaltLength       uint32 `koanf:"salt_length"`
	KeyLength        uint32 `koanf:"key_length"`
	MaxPasswordBytes int    `koanf:"max_password_bytes"`
	// UpgradeOnLogin re-hashes legacy or weaker hashes after a successful login.
	UpgradeOnLogin bool `koanf:"upgrade_on_login"`
	// HistoryDepth is how many previous passwords are checked for reuse.
	HistoryDepth int `koanf:"history_depth"`
	// HistoryRetention is how many previous hashes the Redis history keeps.
	HistoryRetention int `koanf:"history_retention"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the per-client login limiter.
type RateLimitConfig struct {
	Window        time.Duration `koanf:"window"`
	Threshold     int           `koanf:"threshold"`
	BlockDuration time.Duration `koanf:"block_duration"`
	// IdentifierSalt is mixed into the client identifier hash.
	IdentifierSalt string `koanf:"identifier_salt"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls the account-scoped lockout guard.
type LockoutConfig struct {
	Threshold int           `koanf:"threshold"`
	Duration  time.Duration `koanf:"duration"`
	// CounterTTL expires an idle failure counter.
	CounterTTL time.Duration `koanf:"counter_ttl"`
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls reset token issuance.
type PasswordResetConfig struct {
	TokenTTL time.Duration `koanf:"token_ttl"`
	// MaxRequests bounds reset requests per email, and per client IP when
	// IPThrottle is set, within each RequestWindow.
	MaxRequests   int           `koanf:"max_requests"`
	RequestWindow time.Duration `koanf:"request_window"`
	IPThrottle    bool          `koanf:"ip_throttle"`
	// LinkBase, when set, is prefixed to the token to build the "link"
	// notification field.
	LinkBase string `koanf:"link_base"`
}

/*
====================================
DETECTOR CONFIG
====================================
*/

// DetectorConfig tunes suspicious login heuristics.
type DetectorConfig struct {
	Enabled                bool          `koanf:"enabled"`
	RecentFailureWindow    time.Duration `koanf:"recent_failure_window"`
	RecentFailureThreshold int           `koanf:"recent_failure_threshold"`
	UnusualHourMinLogins   int           `koanf:"unusual_hour_min_logins"`
	UnusualHourMinAverage  float64       `koanf:"unusual_hour_min_average"`
	HistoryLimit           int           `koanf:"history_limit"`
	Lookback               time.Duration `koanf:"lookback"`
	// TimeZone is the IANA zone used to bucket login hours.
	TimeZone string `koanf:"time_zone"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls forwarding of audit events to an external sink. Events
// are always written to the Redis audit store.
type AuditConfig struct {
	Enabled      bool          `koanf:"enabled"`
	BufferSize   int           `koanf:"buffer_size"`
	DropIfFull   bool          `koanf:"drop_if_full"`
	MaxRetries   uint64        `koanf:"max_retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by authcore APIs.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Signing keys must still be set.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	det := detector.DefaultConfig()
	return Config{
		Session: SessionConfig{
			RefreshInterval: time.Hour,
			MaxLifetime:     8 * time.Hour,
			SigningMethod:   "ed25519",
			Leeway:          30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
			UpgradeOnLogin:   true,
			HistoryDepth:     5,
			HistoryRetention: 10,
		},
		RateLimit: RateLimitConfig{
			Window:        15 * time.Minute,
			Threshold:     5,
			BlockDuration: 30 * time.Minute,
		},
		Lockout: LockoutConfig{
			Threshold:  10,
			Duration:   time.Hour,
			CounterTTL: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:      time.Hour,
			MaxRequests:   3,
			RequestWindow: time.Hour,
			IPThrottle:    true,
		},
		Detector: DetectorConfig{
			Enabled:                true,
			RecentFailureWindow:    det.RecentFailureWindow,
			RecentFailureThreshold: det.RecentFailureThreshold,
			UnusualHourMinLogins:   det.UnusualHourMinLogins,
			UnusualHourMinAverage:  det.UnusualHourMinAverage,
			HistoryLimit:           det.HistoryLimit,
			Lookback:               det.Lookback,
			TimeZone:               "UTC",
		},
		Audit: AuditConfig{
			Enabled:      false,
			BufferSize:   1024,
			DropIfFull:   true,
			MaxRetries:   3,
			RetryBackoff: 50 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	if cfg.Session.VerifyKeys != nil {
		out.Session.VerifyKeys = make(map[string][]byte, len(cfg.Session.VerifyKeys))
		for kid, key := range cfg.Session.VerifyKeys {
			out.Session.VerifyKeys[kid] = cloneBytes(key)
		}
	}
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

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first invalid setting it finds. It does not mutate c.
func (c *Config) Validate() error {
	// Session
	if c.Session.RefreshInterval <= 0 {
		return errors.New("Session RefreshInterval must be > 0")
	}
	if c.Session.MaxLifetime < c.Session.RefreshInterval {
		return errors.New("Session MaxLifetime must be >= RefreshInterval")
	}
	switch c.Session.SigningMethod {
	case "ed25519":
		if len(c.Session.PrivateKey) == 0 || len(c.Session.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	case "hs256":
		if len(c.Session.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported session signing method")
	}
	if c.Session.Leeway < 0 || c.Session.Leeway > 2*time.Minute {
		return errors.New("Session Leeway must be between 0 and 2m")
	}
	if c.Session.Audience != "" && strings.TrimSpace(c.Session.Audience) == "" {
		return errors.New("Session Audience must not be blank")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.HistoryDepth < 1 {
		return errors.New("Password HistoryDepth must be >= 1")
	}
	if c.Password.HistoryRetention < c.Password.HistoryDepth {
		return errors.New("Password HistoryRetention must be >= HistoryDepth")
	}

	// Rate limit
	if c.RateLimit.Window <= 0 || c.RateLimit.BlockDuration <= 0 {
		return errors.New("RateLimit Window and BlockDuration must be > 0")
	}
	if c.RateLimit.Threshold < 1 {
		return errors.New("RateLimit Threshold must be >= 1")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}
	if c.Lockout.CounterTTL < c.Lockout.Duration {
		return errors.New("Lockout CounterTTL must be >= Duration")
	}

	// Password reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.PasswordReset.MaxRequests <= 0 || c.PasswordReset.RequestWindow <= 0 {
		return errors.New("PasswordReset MaxRequests and RequestWindow must be > 0")
	}

	// Detector
	if c.Detector.Enabled {
		if c.Detector.RecentFailureWindow <= 0 || c.Detector.Lookback <= 0 {
			return errors.New("Detector windows must be > 0")
		}
		if c.Detector.RecentFailureThreshold < 1 || c.Detector.HistoryLimit < 1 {
			return errors.New("Detector thresholds must be >= 1")
		}
		if _, err := time.LoadLocation(c.Detector.TimeZone); err != nil {
			return errors.New("Detector TimeZone is invalid")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0")
		}
		if c.Audit.RetryBackoff < 0 {
			return errors.New("Audit RetryBackoff must be >= 0")
		}
	}

	return nil
}

/*
====================================
COMPONENT CONFIG
====================================
*/

func (c *Config) jwtConfig() jwt.Config {
	return jwt.Config{
		RefreshInterval: c.Session.RefreshInterval,
		MaxLifetime:     c.Session.MaxLifetime,
		SigningMethod:   jwt.SigningMethod(c.Session.SigningMethod),
		PrivateKey:      c.Session.PrivateKey,
		PublicKey:       c.Session.PublicKey,
		Issuer:          c.Session.Issuer,
		Audience:        c.Session.Audience,
		Leeway:          c.Session.Leeway,
		KeyID:           c.Session.KeyID,
		VerifyKeys:      c.Session.VerifyKeys,
	}
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

func (c *Config) rateConfig() rate.Config {
	return rate.Config{
		Window:        c.RateLimit.Window,
		Threshold:     c.RateLimit.Threshold,
		BlockDuration: c.RateLimit.BlockDuration,
	}
}

func (c *Config) lockoutConfig() limiters.LockoutConfig {
	return limiters.LockoutConfig{
		Threshold:  c.Lockout.Threshold,
		Duration:   c.Lockout.Duration,
		CounterTTL: c.Lockout.CounterTTL,
	}
}

func (c *Config) resetLimiterConfig() limiters.PasswordResetConfig {
	return limiters.PasswordResetConfig{
		EnableIPThrottle: c.PasswordReset.IPThrottle,
		MaxRequests:      c.PasswordReset.MaxRequests,
		Window:           c.PasswordReset.RequestWindow,
	}
}

func (c *Config) detectorConfig() detector.Config {
	loc, err := time.LoadLocation(c.Detector.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	return detector.Config{
		RecentFailureWindow:    c.Detector.RecentFailureWindow,
		RecentFailureThreshold: c.Detector.RecentFailureThreshold,
		UnusualHourMinLogins:   c.Detector.UnusualHourMinLogins,
		UnusualHourMinAverage:  c.Detector.UnusualHourMinAverage,
		HistoryLimit:           c.Detector.HistoryLimit,
		Lookback:               c.Detector.Lookback,
		Location:               loc,
	}
}

func (c *Config) auditConfig() audit.Config {
	return audit.Config{
		Enabled:      c.Audit.Enabled,
		BufferSize:   c.Audit.BufferSize,
		DropIfFull:   c.Audit.DropIfFull,
		MaxRetries:   c.Audit.MaxRetries,
		RetryBackoff: c.Audit.RetryBackoff,
	}
}
