package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/sessionkit/pkg/codec"
)

// Config holds the filter configuration. Values load from environment
// variables (with an optional .env properties file) via LoadConfig, or can
// be built directly.
type Config struct {
	// UseLibraryMode suppresses session cookie emission; the embedding
	// application owns the transport-level cookie.
	UseLibraryMode bool `env:"SESSION_USE_LIBRARY_MODE" envDefault:"false"`

	// Namespace prefixes every attribute-namespace key.
	Namespace string `env:"SESSION_NAMESPACE" envDefault:"_khan_"`

	// ExcludeRegExp is matched against the request path; matching requests
	// bypass the filter entirely. Empty disables exclusion.
	ExcludeRegExp string `env:"SESSION_EXCLUDE_REGEXP"`

	// SessionIDKey is the session cookie name.
	SessionIDKey string `env:"SESSION_ID_KEY" envDefault:"JSESSIONID"`

	Domain string `env:"SESSION_COOKIE_DOMAIN"`
	Path   string `env:"SESSION_COOKIE_PATH" envDefault:"/"`
	Secure bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// HttpOnly switches cookie emission to a manually composed Set-Cookie
	// header, for embedding servers whose cookie type lacks the attribute.
	HttpOnly bool `env:"SESSION_COOKIE_HTTP_ONLY" envDefault:"false"`

	// TimeoutMinutes is the session timeout; the store TTL is this value
	// in seconds.
	TimeoutMinutes int `env:"SESSION_TIMEOUT_MIN" envDefault:"10"`

	// AllowDuplicateLogin disables the single-user-session protocol.
	AllowDuplicateLogin bool `env:"SESSION_ALLOW_DUPLICATE_LOGIN" envDefault:"false"`

	// LogoutURL is the internal forward target for superseded sessions.
	LogoutURL string `env:"SESSION_LOGOUT_URL"`

	// EnableStatistics gates the lifecycle counters.
	EnableStatistics bool `env:"SESSION_ENABLE_STATISTICS" envDefault:"true"`

	// Codec names the registered value codec ("json", "gob").
	Codec string `env:"SESSION_CODEC" envDefault:"json"`
}

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() Config {
	return Config{
		Namespace:        GlobalNamespace,
		SessionIDKey:     "JSESSIONID",
		Path:             "/",
		TimeoutMinutes:   10,
		EnableStatistics: true,
		Codec:            codec.DefaultName,
	}
}

// TTL returns the session timeout as a duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Validate fails fast on misconfiguration.
func (c Config) Validate() error {
	var errs []error

	if c.Namespace == "" {
		errs = append(errs, fmt.Errorf("%w: namespace is required", ErrInvalidConfig))
	} else if strings.Contains(c.Namespace, Separator) {
		errs = append(errs, fmt.Errorf("%w: namespace must not contain %q", ErrInvalidConfig, Separator))
	}
	if c.SessionIDKey == "" {
		errs = append(errs, fmt.Errorf("%w: session id key is required", ErrInvalidConfig))
	}
	if c.TimeoutMinutes <= 0 {
		errs = append(errs, fmt.Errorf("%w: session timeout must be positive", ErrInvalidConfig))
	}
	if c.ExcludeRegExp != "" {
		if _, err := regexp.Compile(c.ExcludeRegExp); err != nil {
			errs = append(errs, fmt.Errorf("%w: exclude regexp: %v", ErrInvalidConfig, err))
		}
	}
	if _, err := codec.Resolve(c.Codec); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}

	return errors.Join(errs...)
}

// LoadConfig reads configuration from the environment, loading a .env
// properties file first when one exists.
func LoadConfig() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
