package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 3789
	defaultEnv        = "development"
	defaultMongoURL   = "mongodb://localhost:27017"
	defaultMongoName  = "contactly"
	defaultRedisURL   = "redis://localhost:6379/0"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int          `yaml:"port"`
	Env            string       `yaml:"env"` // "development" | "production"
	MongoURL       string       `yaml:"mongo_url"`
	MongoName      string       `yaml:"mongo_name"`
	RedisURL       string       `yaml:"redis_url"`
	AllowedOrigins []string     `yaml:"allowed_origins"`
	CookieDomain   string       `yaml:"cookie_domain"`
	ClientURL      string       `yaml:"client_url"`
	Secrets        SecretConfig `yaml:"secrets"`
	Mail           MailConfig   `yaml:"mail"`
	OAuth          OAuthConfig  `yaml:"oauth"`
	Geo            GeoConfig    `yaml:"geo"`
	Timezone       string       `yaml:"timezone"`
}

// SecretConfig carries one signing secret per credential kind plus the OTP
// hashing pepper. All are required in production.
type SecretConfig struct {
	Access         string `yaml:"access"`
	Refresh        string `yaml:"refresh"`
	Recover        string `yaml:"recover"`
	Activation     string `yaml:"activation"`
	PasswordChange string `yaml:"password_change"`
	OTP            string `yaml:"otp"`
}

// MailConfig holds mail provider settings.
type MailConfig struct {
	Enable    bool   `yaml:"enable"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	UseResend bool   `yaml:"use_resend"`
	ResendKey string `yaml:"resend_key"`
}

// OAuthConfig lists social login providers.
type OAuthConfig struct {
	GitHub OAuthProvider `yaml:"github"`
	Google OAuthProvider `yaml:"google"`
}

type OAuthProvider struct {
	Enable       bool   `yaml:"enable"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// GeoConfig points at the IP geolocation lookup endpoint. Empty disables
// location resolution; sessions then record an empty location.
type GeoConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// Load reads and validates the YAML config at path.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if strings.TrimSpace(cfg.MongoURL) == "" {
		return nil, fmt.Errorf("mongo_url is required in %q", path)
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("redis_url is required in %q", path)
	}
	if !cfg.IsDev() {
		if err := cfg.Secrets.requireAll(); err != nil {
			return nil, fmt.Errorf("%w in %q", err, path)
		}
	}
	cfg.Secrets.fillDevDefaults()

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:      defaultPort,
		Env:       defaultEnv,
		MongoURL:  defaultMongoURL,
		MongoName: defaultMongoName,
		RedisURL:  defaultRedisURL,
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development") || strings.TrimSpace(c.Env) == ""
}

func (s *SecretConfig) requireAll() error {
	missing := []string{}
	for name, v := range map[string]string{
		"secrets.access":          s.Access,
		"secrets.refresh":         s.Refresh,
		"secrets.recover":         s.Recover,
		"secrets.activation":      s.Activation,
		"secrets.password_change": s.PasswordChange,
		"secrets.otp":             s.OTP,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required %s", strings.Join(missing, ", "))
	}
	return nil
}

// fillDevDefaults derives per-kind dev secrets so a bare dev config boots.
// Each kind still gets a distinct secret.
func (s *SecretConfig) fillDevDefaults() {
	fill := func(v *string, suffix string) {
		if strings.TrimSpace(*v) == "" {
			*v = "contactly-dev-secret-" + suffix
		}
	}
	fill(&s.Access, "access")
	fill(&s.Refresh, "refresh")
	fill(&s.Recover, "recover")
	fill(&s.Activation, "activation")
	fill(&s.PasswordChange, "password-change")
	fill(&s.OTP, "otp")
}
