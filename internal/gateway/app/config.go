package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for the gateway.
type Config struct {
	// First-party token trust. The issuer doubles as the iss claim on
	// minted tokens.
	Issuer    string   `env:"APP_JWT_ISSUER" envDefault:"https://innerpeace.app"`
	Audiences []string `env:"APP_JWT_AUDIENCES" envDefault:"innerpeace-app"`

	// HS256 shared secret for backend session tokens. Optional; session
	// tokens are rejected when unset.
	SessionSecret string `env:"SUPABASE_JWT_SECRET"`

	// Asymmetric app-token material. PrivateKeyPEM enables minting;
	// PublicJWK enables verification of already-minted tokens. Either may
	// be set without the other.
	PrivateKeyPEM string `env:"APP_JWT_PRIVATE_KEY"`
	KeyID         string `env:"APP_JWT_KID" envDefault:"app-1"`
	PublicJWK     string `env:"APP_JWT_PUBLIC_JWK"`

	// Audience pins for federated sign-in tokens. A provider with no pins
	// is disabled.
	GoogleAudiences []string `env:"GOOGLE_CLIENT_IDS"`
	AppleAudiences  []string `env:"APPLE_APP_IDS"`

	// JWKS endpoint overrides for the federated providers. Empty means
	// the published endpoints.
	GoogleJWKSURL string `env:"GOOGLE_JWKS_URL"`
	AppleJWKSURL  string `env:"APPLE_JWKS_URL"`

	// How long fetched provider keys stay fresh.
	KeySetTTL time.Duration `env:"JWKS_CACHE_TTL" envDefault:"30m"`

	// Accept the API gateway's pre-verified user-info header. Only safe
	// behind a gateway that strips the header from client traffic.
	TrustGatewayUserInfo bool `env:"TRUST_GATEWAY_USERINFO" envDefault:"false"`

	// Google Workspace resources the gateway fronts.
	MediaFolderID string `env:"DRIVE_MEDIA_FOLDER_ID"`
	CalendarID    string `env:"BOOKING_CALENDAR_ID" envDefault:"primary"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig reads configuration from the environment, loading a .env
// file first when one is present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("APP_JWT_ISSUER must not be empty")
	}
	if len(c.Audiences) == 0 {
		return fmt.Errorf("APP_JWT_AUDIENCES must not be empty")
	}
	if c.PrivateKeyPEM != "" && c.KeyID == "" {
		return fmt.Errorf("APP_JWT_KID is required when APP_JWT_PRIVATE_KEY is set")
	}
	return nil
}
