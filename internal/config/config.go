package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAddr         = "127.0.0.1:8080"
	defaultSQLitePath   = "data/habits.db"
	defaultClientOrigin = "http://localhost:5173"
	defaultSessionTTL   = time.Hour
	defaultOAuthTimeout = 10 * time.Second

	minJWTSecretBytes = 32
)

type Config struct {
	Env       string
	Addr      string
	LogLevel  string
	PublicURL *url.URL

	// DBDSN selects Postgres when set; otherwise SQLitePath is used.
	DBDSN      string
	SQLitePath string

	JWTSecret  string
	SessionTTL time.Duration

	ClientOrigin string

	Google       OAuthConfig
	GitHub       OAuthConfig
	OAuthTimeout time.Duration

	TokenPreviews  bool
	VAPIDPublicKey string
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Load reads .env (existing variables win), then the YAML file named by
// APP_CONFIG_FILE for anything the environment leaves unset.
func Load() (Config, error) {
	if err := loadDotEnvFile(".env", os.Setenv, os.Getenv); err != nil {
		return Config{}, err
	}

	getenv := os.Getenv
	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		fileValues, err := loadYAMLFile(path)
		if err != nil {
			return Config{}, err
		}
		getenv = func(k string) string {
			if v := os.Getenv(k); v != "" {
				return v
			}
			return fileValues[k]
		}
	}
	return LoadFromEnv(getenv)
}

func loadDotEnvFile(path string, setenv func(string, string) error, getenv func(string) string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	for k, v := range values {
		if v == "" || getenv(k) != "" {
			continue
		}
		if err := setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:            getenv("APP_ENV"),
		Addr:           getenv("APP_ADDR"),
		LogLevel:       getenv("APP_LOG_LEVEL"),
		DBDSN:          getenv("APP_DB_DSN"),
		SQLitePath:     getenv("APP_SQLITE_PATH"),
		JWTSecret:      getenv("APP_JWT_SECRET"),
		ClientOrigin:   strings.TrimRight(getenv("APP_CLIENT_ORIGIN"), "/"),
		VAPIDPublicKey: getenv("APP_VAPID_PUBLIC_KEY"),
		Google: OAuthConfig{
			ClientID:     getenv("APP_GOOGLE_CLIENT_ID"),
			ClientSecret: getenv("APP_GOOGLE_CLIENT_SECRET"),
			RedirectURL:  getenv("APP_GOOGLE_REDIRECT_URL"),
		},
		GitHub: OAuthConfig{
			ClientID:     getenv("APP_GITHUB_CLIENT_ID"),
			ClientSecret: getenv("APP_GITHUB_CLIENT_SECRET"),
			RedirectURL:  getenv("APP_GITHUB_REDIRECT_URL"),
		},
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = defaultSQLitePath
	}

	if raw := getenv("APP_PUBLIC_URL"); raw != "" {
		u, err := parseAbsURL(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		cfg.PublicURL = u
	}
	if cfg.ClientOrigin == "" {
		cfg.ClientOrigin = defaultClientOrigin
	}
	if _, err := parseAbsURL(cfg.ClientOrigin); err != nil {
		return Config{}, fmt.Errorf("APP_CLIENT_ORIGIN: %w", err)
	}

	var err error
	if cfg.SessionTTL, err = parsePositiveDuration(getenv, "APP_SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.OAuthTimeout, err = parsePositiveDuration(getenv, "APP_OAUTH_TIMEOUT", defaultOAuthTimeout); err != nil {
		return Config{}, err
	}

	cfg.TokenPreviews = !cfg.IsProd()
	if raw := getenv("APP_TOKEN_PREVIEWS"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_TOKEN_PREVIEWS: %w", err)
		}
		cfg.TokenPreviews = v
	}

	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = cfg.baseURL() + "/api/auth/google/callback"
	}
	if cfg.GitHub.RedirectURL == "" {
		cfg.GitHub.RedirectURL = cfg.baseURL() + "/api/auth/github/callback"
	}

	if cfg.IsProd() && len(cfg.JWTSecret) < minJWTSecretBytes {
		return Config{}, fmt.Errorf("APP_JWT_SECRET: must be at least %d bytes in prod", minJWTSecretBytes)
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

func (c Config) baseURL() string {
	if c.PublicURL != nil {
		return strings.TrimRight(c.PublicURL.String(), "/")
	}
	return "http://" + c.Addr
}

func parseAbsURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, errors.New("must be an absolute URL")
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, errors.New("scheme must be http or https")
	}
	return u, nil
}

func parsePositiveDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}
