package config

import "time"

// Config is the root configuration for a session daemon.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Session     SessionConfig     `yaml:"session"`
	Retry       RetryConfig       `yaml:"retry"`
	Reconnect   ReconnectConfig   `yaml:"reconnect"`
	Socket      SocketConfig      `yaml:"socket"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Events      EventsConfig      `yaml:"events"`
	Health      HealthConfig      `yaml:"health"`
}

// ServerConfig identifies the realtime backend.
type ServerConfig struct {
	ServerKey string `yaml:"server_key" env:"SERVER_KEY"`
	Host      string `yaml:"host" env:"SERVER_HOST"`
	Port      int    `yaml:"port" env:"SERVER_PORT"`
	UseSSL    bool   `yaml:"use_ssl" env:"SERVER_USE_SSL"`
	Trace     bool   `yaml:"trace" env:"SERVER_TRACE"`
}

// SessionConfig controls how a restored session opens its sockets.
type SessionConfig struct {
	AppearOnline    *bool         `yaml:"appear_online"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	RefreshWindow   time.Duration `yaml:"refresh_window"`   // Refresh when the token expires within this window
	RefreshInterval time.Duration `yaml:"refresh_interval"` // How often a running daemon checks the window
}

// RetryConfig bounds connect retries. MaxAttempts counts the first attempt.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// ReconnectConfig controls recovery from dropped sockets.
type ReconnectConfig struct {
	OnDrop bool `yaml:"on_drop" env:"RECONNECT_ON_DROP"`
}

// SocketConfig holds websocket keepalive settings.
type SocketConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// CredentialsConfig selects the credential store backend.
type CredentialsConfig struct {
	Type     string       `yaml:"type" env:"CREDENTIALS_TYPE"` // memory, file, redis, postgres, sqlite
	Profile  string       `yaml:"profile" env:"CREDENTIALS_PROFILE"`
	File     FileConfig   `yaml:"file"`
	Redis    RedisConfig  `yaml:"redis"`
	Postgres DBConfig     `yaml:"postgres"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
}

// FileConfig holds the YAML credential file location.
type FileConfig struct {
	Path string `yaml:"path" env:"CREDENTIALS_FILE"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"REDIS_ADDR"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SQLiteConfig holds the SQLite database path.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

// EventsConfig holds event forwarding settings.
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig enables the Kafka sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic        string        `yaml:"topic" env:"KAFKA_TOPIC"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// HealthConfig holds the health/trigger HTTP server settings.
type HealthConfig struct {
	Port int `yaml:"port" env:"HEALTH_PORT"`
}

// ShouldAppearOnline reports the configured presence flag (default true).
func (s SessionConfig) ShouldAppearOnline() bool {
	if s.AppearOnline == nil {
		return true
	}
	return *s.AppearOnline
}
