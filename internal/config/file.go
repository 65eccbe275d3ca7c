package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Env      string `yaml:"env"`
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	PublicURL    string `yaml:"public_url"`
	ClientOrigin string `yaml:"client_origin"`

	Database struct {
		DSN        string `yaml:"dsn"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret     string        `yaml:"jwt_secret"`
		SessionTTL    time.Duration `yaml:"session_ttl"`
		TokenPreviews *bool         `yaml:"token_previews"`
	} `yaml:"auth"`

	OAuth struct {
		Timeout time.Duration   `yaml:"timeout"`
		Google  fileOAuthClient `yaml:"google"`
		GitHub  fileOAuthClient `yaml:"github"`
	} `yaml:"oauth"`

	Push struct {
		VAPIDPublicKey string `yaml:"vapid_public_key"`
	} `yaml:"push"`
}

type fileOAuthClient struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// loadYAMLFile reads a config file and returns its settings keyed by the
// environment variable each one stands in for.
func loadYAMLFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return fc.values(), nil
}

func (fc fileConfig) values() map[string]string {
	out := map[string]string{
		"APP_ENV":                  fc.Env,
		"APP_ADDR":                 fc.Addr,
		"APP_LOG_LEVEL":            fc.LogLevel,
		"APP_PUBLIC_URL":           fc.PublicURL,
		"APP_CLIENT_ORIGIN":        fc.ClientOrigin,
		"APP_DB_DSN":               fc.Database.DSN,
		"APP_SQLITE_PATH":          fc.Database.SQLitePath,
		"APP_JWT_SECRET":           fc.Auth.JWTSecret,
		"APP_GOOGLE_CLIENT_ID":     fc.OAuth.Google.ClientID,
		"APP_GOOGLE_CLIENT_SECRET": fc.OAuth.Google.ClientSecret,
		"APP_GOOGLE_REDIRECT_URL":  fc.OAuth.Google.RedirectURL,
		"APP_GITHUB_CLIENT_ID":     fc.OAuth.GitHub.ClientID,
		"APP_GITHUB_CLIENT_SECRET": fc.OAuth.GitHub.ClientSecret,
		"APP_GITHUB_REDIRECT_URL":  fc.OAuth.GitHub.RedirectURL,
		"APP_VAPID_PUBLIC_KEY":     fc.Push.VAPIDPublicKey,
	}
	if fc.Auth.SessionTTL > 0 {
		out["APP_SESSION_TTL"] = fc.Auth.SessionTTL.String()
	}
	if fc.OAuth.Timeout > 0 {
		out["APP_OAUTH_TIMEOUT"] = fc.OAuth.Timeout.String()
	}
	if fc.Auth.TokenPreviews != nil {
		out["APP_TOKEN_PREVIEWS"] = fmt.Sprint(*fc.Auth.TokenPreviews)
	}
	return out
}
