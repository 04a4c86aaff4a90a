package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}

	if c.Session.ConnectTimeout <= 0 {
		return errors.New("session.connect_timeout must be > 0")
	}
	if c.Session.RefreshWindow < 0 {
		return errors.New("session.refresh_window must be >= 0")
	}
	if c.Session.RefreshInterval < 0 {
		return errors.New("session.refresh_interval must be >= 0")
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("retry.base_delay (%s) cannot exceed max_delay (%s)", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}

	if c.Socket.PingInterval >= c.Socket.PingTimeout {
		return fmt.Errorf("socket.ping_interval (%s) must be less than ping_timeout (%s)", c.Socket.PingInterval, c.Socket.PingTimeout)
	}

	if err := c.Credentials.validate(); err != nil {
		return err
	}

	if len(c.Events.Kafka.Brokers) > 0 && c.Events.Kafka.Topic == "" {
		return errors.New("events.kafka.topic is required when brokers are set")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

// Validate checks the fields needed to construct a backend client.
func (s ServerConfig) Validate() error {
	if s.ServerKey == "" {
		return errors.New("server.server_key is required")
	}
	if s.Host == "" {
		return errors.New("server.host is required")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port)
	}
	return nil
}

func (c *CredentialsConfig) validate() error {
	switch c.Type {
	case "memory":
	case "file":
		if c.File.Path == "" {
			return errors.New("credentials.file.path is required")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("credentials.redis.addr is required")
		}
	case "postgres":
		return c.Postgres.validate("credentials.postgres")
	case "sqlite":
		if c.SQLite.Path == "" {
			return errors.New("credentials.sqlite.path is required")
		}
	default:
		return fmt.Errorf("credentials.type %q is not supported", c.Type)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
