package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig - конфигурация Redis appender
type RedisConfig struct {
	// Address - адрес Redis (host:port)
	Address string `yaml:"address"`

	// Password - пароль (пусто = без аутентификации)
	Password string `yaml:"password"`

	// DB - номер базы Redis
	DB int `yaml:"db"`

	// KeyPrefix - префикс ключей, по умолчанию "dbcore:journal"
	KeyPrefix string `yaml:"key_prefix"`

	// TTL - время жизни записей
	TTL time.Duration `yaml:"ttl"`
}

// RedisAppender публикует записи журнала в Redis:
//
//	SET  <prefix>:<entry-id>  <JSON>  EX <ttl>  для опроса (polling)
//	PUB  <prefix>:events      <JSON>            для подписки (pub/sub)
type RedisAppender struct {
	client *redis.Client
	config RedisConfig
}

// Compile-time check
var _ Appender = (*RedisAppender)(nil)

// NewRedisAppender создает Redis appender на основе конфигурации
func NewRedisAppender(config RedisConfig) *RedisAppender {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "dbcore:journal"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisAppender{client: client, config: config}
}

// Append публикует entry в Redis
func (r *RedisAppender) Append(ctx context.Context, entry *Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	key := fmt.Sprintf("%s:%s", r.config.KeyPrefix, entry.ID)
	if err := r.client.Set(ctx, key, payload, r.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store journal entry: %w", err)
	}

	channel := r.config.KeyPrefix + ":events"
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish journal entry: %w", err)
	}

	return nil
}

// Close закрывает клиент Redis
func (r *RedisAppender) Close() error {
	return r.client.Close()
}
