package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gravity/internal/app/gravity/entity"
	"gravity/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	serviceName     = "gravity"
	bookKeyPrefix   = "book"
	bookKeyTemplate = "book:%s"
)

// RedisClient - кеш карточек книг с TTL. Инвалидируется при каждом
// пересчёте рейтинга, чтобы клиенты не видели устаревший агрегат
// дольше одного запроса
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int, ttl time.Duration) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client, ttl: ttl}, nil
}

// NewRedisClientWithBackend оборачивает уже созданный redis.Client
// (используется в тестах с miniredis)
func NewRedisClientWithBackend(client *redis.Client, ttl time.Duration) *RedisClient {
	return &RedisClient{client: client, ttl: ttl}
}

func (r *RedisClient) GetBook(ctx context.Context, id primitive.ObjectID) (*entity.Book, error) {
	data, err := r.client.Get(ctx, fmt.Sprintf(bookKeyTemplate, id.Hex())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss(serviceName, bookKeyPrefix)
			return nil, nil
		}
		metrics.RecordRedisError(serviceName, "get")
		return nil, fmt.Errorf("failed to get book from cache: %w", err)
	}

	var book entity.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached book: %w", err)
	}

	metrics.RecordCacheHit(serviceName, bookKeyPrefix)
	return &book, nil
}

func (r *RedisClient) SetBook(ctx context.Context, book *entity.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to marshal book: %w", err)
	}

	if err := r.client.Set(ctx, fmt.Sprintf(bookKeyTemplate, book.ID.Hex()), data, r.ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, "set")
		return fmt.Errorf("failed to set book in cache: %w", err)
	}

	return nil
}

func (r *RedisClient) DeleteBook(ctx context.Context, id primitive.ObjectID) error {
	if err := r.client.Del(ctx, fmt.Sprintf(bookKeyTemplate, id.Hex())).Err(); err != nil {
		metrics.RecordRedisError(serviceName, "del")
		return fmt.Errorf("failed to delete book from cache: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
