package config

import (
	"errors"
	"fmt"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	TransportRabbitMQ = "rabbitmq"
	TransportSMTP     = "smtp"
	TransportLog      = "log"

	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

const minSecretLength = 32

func (c *Config) validate() error {
	if len(c.Tokens.Secret) < minSecretLength {
		return fmt.Errorf("tokens.secret must be at least %d bytes", minSecretLength)
	}

	if c.Tokens.AccessTokenTTL <= 0 || c.Tokens.RefreshTokenTTL <= 0 {
		return errors.New("token ttls must be positive")
	}

	if c.Tokens.RefreshTokenTTL <= c.Tokens.AccessTokenTTL {
		return errors.New("tokens.refresh_token_ttl must be longer than tokens.access_token_ttl")
	}

	// запись реестра не должна исчезнуть раньше, чем истечет access token
	if c.Ledger.Retention < 0 || (c.Ledger.Retention > 0 && c.Ledger.Retention < c.Tokens.AccessTokenTTL) {
		return errors.New("ledger.retention must be 0 or at least tokens.access_token_ttl")
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Ledger.Driver {
	case DriverMemory, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown ledger.driver %q", c.Ledger.Driver)
	}

	switch c.Notifier.Transport {
	case TransportRabbitMQ:
		if c.RabbitMQ.URL == "" {
			return errors.New("rabbitmq.url is required for rabbitmq transport")
		}
	case TransportSMTP:
		if c.SMTP.Host == "" {
			return errors.New("smtp.host is required for smtp transport")
		}
	case TransportLog:
	default:
		return fmt.Errorf("unknown notifier.transport %q", c.Notifier.Transport)
	}

	switch c.Password.Algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return fmt.Errorf("unknown password.algorithm %q", c.Password.Algorithm)
	}

	// tokens.user_id references users.id
	if c.Ledger.Driver == DriverPostgres && c.Storage.Driver != DriverPostgres {
		return errors.New("ledger.driver postgres requires storage.driver postgres")
	}

	if c.Storage.Driver == DriverPostgres || c.Ledger.Driver == DriverPostgres {
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			return errors.New("postgres.user and postgres.dbname are required")
		}
	}

	return nil
}
