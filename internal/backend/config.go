package backend

import (
	"errors"
	"fmt"
	"time"

	"dividi/internal/config"
)

// Config holds what the factory needs to assemble a backend.
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// Empty AMQPURL disables events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// CacheSize of zero disables the settlement plan cache.
	CacheSize int
	CacheTTL  time.Duration
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		CacheSize:    appConfig.CacheSize,
		CacheTTL:     appConfig.CacheTTL,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}
	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		return errors.New("cache TTL must be positive when the cache is enabled")
	}
	return nil
}

// BackendTypeStrings returns all valid backend type names.
func BackendTypeStrings() []string {
	return []string{MemoryBackend.String(), SQLiteBackend.String()}
}
