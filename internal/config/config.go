package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from the YAML
// file first, then env vars override the secrets and endpoints that
// differ per deployment.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	DB struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"db"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
		// RetryMax bounds publish retries before an event is dropped.
		RetryMax int `yaml:"retry_max"`
	} `yaml:"nats"`

	Secrets struct {
		// CredentialSecret derives the AES key for NVR passwords.
		CredentialSecret string `yaml:"credential_secret"`
		JWTSigningKey    string `yaml:"jwt_signing_key"`
	} `yaml:"secrets"`

	Media struct {
		WebRTCBaseURL string `yaml:"webrtc_base_url"`
		HLSBaseURL    string `yaml:"hls_base_url"`
	} `yaml:"media"`

	Deploy struct {
		Enabled              bool `yaml:"enabled"`
		AllowRestartCommands bool `yaml:"allow_restart_commands"`
	} `yaml:"deploy"`

	Monitor struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		Workers         int `yaml:"workers"`
		QueueSize       int `yaml:"queue_size"`
	} `yaml:"monitor"`

	Onvif struct {
		TimeoutMs   int `yaml:"timeout_ms"`
		Concurrency int `yaml:"concurrency"`
	} `yaml:"onvif"`
}

func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

func (c *Config) OnvifTimeout() time.Duration {
	return time.Duration(c.Onvif.TimeoutMs) * time.Millisecond
}

// DSN renders the postgres connection string the way the driver
// expects it.
func (c *Config) DSN() string {
	sslmode := c.DB.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	port := c.DB.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, port, c.DB.Name, sslmode)
}

func defaults() Config {
	var c Config
	c.Server.Addr = ":8080"
	c.DB.Host = "localhost"
	c.DB.Port = 5432
	c.DB.SSLMode = "disable"
	c.Redis.Addr = "localhost:6379"
	c.NATS.Subject = "campus.cameras.events"
	c.NATS.RetryMax = 3
	c.Monitor.IntervalSeconds = 60
	c.Monitor.Workers = 8
	c.Monitor.QueueSize = 256
	c.Onvif.TimeoutMs = 5000
	c.Onvif.Concurrency = 4
	return c
}

// Load reads the YAML file at path and applies env overrides. A
// missing file is not an error: env-only deployments are supported.
func Load(path string) (Config, error) {
	c := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&c)
	return c, nil
}

func applyEnv(c *Config) {
	envString(&c.Server.Addr, "SERVER_ADDR")
	envString(&c.DB.Host, "DB_HOST")
	envInt(&c.DB.Port, "DB_PORT")
	envString(&c.DB.User, "DB_USER")
	envString(&c.DB.Password, "DB_PASSWORD")
	envString(&c.DB.Name, "DB_NAME")
	envString(&c.Redis.Addr, "REDIS_ADDR")
	envString(&c.Redis.Password, "REDIS_PASSWORD")
	envString(&c.NATS.URL, "NATS_URL")
	envString(&c.Secrets.CredentialSecret, "CREDENTIAL_SECRET")
	envString(&c.Secrets.JWTSigningKey, "JWT_SIGNING_KEY")
	envString(&c.Media.WebRTCBaseURL, "WEBRTC_BASE_URL")
	envString(&c.Media.HLSBaseURL, "HLS_BASE_URL")
	envBool(&c.Deploy.Enabled, "DEPLOY_ENABLED")
	envBool(&c.Deploy.AllowRestartCommands, "DEPLOY_ALLOW_RESTART")
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
