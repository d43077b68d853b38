package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"INFO"`

	GeneratorCfg *GeneratorConfig
	NodeCfg      *NodeConfig
	MqttCfg      *MqttConfig
	DatabaseCfg  *DatabaseConfig
	AuthCfg      *AuthConfig
}

type GeneratorConfig struct {
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"5s"`
	HistoryLength   int           `env:"HISTORY_LENGTH" envDefault:"20"`
	HistorySpacing  time.Duration `env:"HISTORY_SPACING" envDefault:"5m"`
	// 0 seeds from the runtime.
	Seed uint64 `env:"GENERATOR_SEED" envDefault:"0"`
}

type NodeConfig struct {
	ID    string `env:"NODE_ID" envDefault:"eco-esp32"`
	Name  string `env:"NODE_NAME" envDefault:"Eco ESP32"`
	Model string `env:"NODE_MODEL" envDefault:"ESP32"`
}

type MqttConfig struct {
	Host     string `env:"MQTT_HOST"`
	Username string `env:"MQTT_USER"`
	Password string `env:"MQTT_PASS"`
	ClientID string `env:"MQTT_CLIENT_ID" envDefault:"eco-monitor"`
}

func (c *MqttConfig) Enabled() bool {
	return c != nil && c.Host != ""
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	Retention       time.Duration `env:"RETENTION" envDefault:"168h"`
	CleanupSchedule string        `env:"CLEANUP_SCHEDULE" envDefault:"0 3 * * *"`
}

func (c *DatabaseConfig) Enabled() bool {
	return c != nil && c.URL != ""
}

type AuthConfig struct {
	PasswordHash string        `env:"DASHBOARD_PASSWORD_HASH"`
	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
}

func (c *AuthConfig) Enabled() bool {
	return c != nil && c.PasswordHash != ""
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		GeneratorCfg: &GeneratorConfig{},
		NodeCfg:      &NodeConfig{},
		MqttCfg:      &MqttConfig{},
		DatabaseCfg:  &DatabaseConfig{},
		AuthCfg:      &AuthConfig{},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
