package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable read by Load.
const EnvPrefix = "SIRIUS_"

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures environment driven configuration values for the meeting service.
type Config struct {
	HTTPPort          int           `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseDriver    string        `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	SQLitePath        string        `env:"SQLITE_PATH" envDefault:"sirius-meet.db"`
	PostgresDSN       string        `env:"POSTGRES_DSN"`
	SessionSecret     string        `env:"SESSION_SECRET"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	RTCAppID          string        `env:"RTC_APP_ID"`
	RTCAppCertificate string        `env:"RTC_APP_CERTIFICATE"`
	RTCTokenTTL       time.Duration `env:"RTC_TOKEN_TTL" envDefault:"24h"`
	PublicRatePerSec  float64       `env:"PUBLIC_RATE_PER_SECOND" envDefault:"2"`
	PublicRateBurst   int           `env:"PUBLIC_RATE_BURST" envDefault:"10"`
	TrustedProxies    []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	MetricsEnabled    bool          `env:"METRICS_ENABLED" envDefault:"true"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses configuration values from the current process environment.
//
// Defaults cover every optional field. Missing or malformed values are
// reported with the variable names so operators can fix them in one pass.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("valores inválidos en variables de entorno: %w", err)
	}

	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.SessionSecret = strings.TrimSpace(cfg.SessionSecret)
	cfg.PostgresDSN = strings.TrimSpace(cfg.PostgresDSN)

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if cfg.SessionSecret == "" {
		missing = append(missing, EnvPrefix+"SESSION_SECRET")
	}
	switch cfg.DatabaseDriver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			missing = append(missing, EnvPrefix+"SQLITE_PATH")
		}
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			missing = append(missing, EnvPrefix+"POSTGRES_DSN")
		}
	case DriverMemory:
	default:
		invalid = append(invalid, EnvPrefix+"DATABASE_DRIVER")
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, EnvPrefix+"HTTP_PORT")
	}
	if cfg.SessionTTL <= 0 {
		invalid = append(invalid, EnvPrefix+"SESSION_TTL")
	}
	if cfg.StoreTimeout <= 0 {
		invalid = append(invalid, EnvPrefix+"STORE_TIMEOUT")
	}
	if cfg.RTCTokenTTL <= 0 {
		invalid = append(invalid, EnvPrefix+"RTC_TOKEN_TTL")
	}
	if cfg.PublicRatePerSec <= 0 {
		invalid = append(invalid, EnvPrefix+"PUBLIC_RATE_PER_SECOND")
	}
	if cfg.PublicRateBurst <= 0 {
		invalid = append(invalid, EnvPrefix+"PUBLIC_RATE_BURST")
	}
	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		invalid = append(invalid, EnvPrefix+"TRUSTED_PROXIES")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("faltan variables de entorno obligatorias: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("valores inválidos en variables de entorno: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// RTCConfigured reports whether RTC credentials were supplied.
func (c Config) RTCConfigured() bool {
	return strings.TrimSpace(c.RTCAppID) != "" && strings.TrimSpace(c.RTCAppCertificate) != ""
}

// TrustedProxyPrefixes parses TrustedProxies. Entries may be CIDR prefixes or
// bare addresses; a bare address trusts that single host.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
