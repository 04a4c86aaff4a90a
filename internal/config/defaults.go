package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort               = 7350
	DefaultConnectTimeout     = 30 * time.Second
	DefaultRefreshWindow      = 5 * time.Minute
	DefaultRefreshInterval    = time.Minute
	DefaultRetryMaxAttempts   = 3
	DefaultRetryBaseDelay     = 500 * time.Millisecond
	DefaultRetryMaxDelay      = 10 * time.Second
	DefaultPingInterval       = 15 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultCredentialsType    = "memory"
	DefaultCredentialsProfile = "default"
	DefaultCredentialsFile    = "credentials.yaml"
	DefaultRedisKeyPrefix     = "gamelink:credentials:"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultSQLitePath         = "gamelink.db"
	DefaultKafkaTopic         = "gamelink.events"
	DefaultKafkaWriteTimeout  = 5 * time.Second
	DefaultHealthPort         = 8080
)

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	// Session defaults
	if c.Session.ConnectTimeout == 0 {
		c.Session.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Session.RefreshWindow == 0 {
		c.Session.RefreshWindow = DefaultRefreshWindow
	}
	if c.Session.RefreshInterval == 0 {
		c.Session.RefreshInterval = DefaultRefreshInterval
	}

	// Retry defaults
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = DefaultRetryMaxDelay
	}

	// Socket defaults
	if c.Socket.PingInterval == 0 {
		c.Socket.PingInterval = DefaultPingInterval
	}
	if c.Socket.PingTimeout == 0 {
		c.Socket.PingTimeout = DefaultPingTimeout
	}
	if c.Socket.WriteTimeout == 0 {
		c.Socket.WriteTimeout = DefaultWriteTimeout
	}

	// Credential store defaults
	if c.Credentials.Type == "" {
		c.Credentials.Type = DefaultCredentialsType
	}
	if c.Credentials.Profile == "" {
		c.Credentials.Profile = DefaultCredentialsProfile
	}
	if c.Credentials.File.Path == "" {
		c.Credentials.File.Path = DefaultCredentialsFile
	}
	if c.Credentials.Redis.KeyPrefix == "" {
		c.Credentials.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	applyDBDefaults(&c.Credentials.Postgres)
	if c.Credentials.SQLite.Path == "" {
		c.Credentials.SQLite.Path = DefaultSQLitePath
	}

	// Events defaults
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Events.Kafka.WriteTimeout == 0 {
		c.Events.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
