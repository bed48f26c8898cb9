package bookkeeping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Docuflow/internal/domain"
)

// defaultTTL — срок жизни учётных записей запуска.
// Статусы нужны для наблюдения за активными запусками и rerun-ов
// по горячим следам, а не для долгой истории (она в Postgres).
const defaultTTL = time.Hour

// ErrNotFound — учётная запись отсутствует (или истёк TTL).
var ErrNotFound = errors.New("bookkeeping record not found")

// Config — конфигурация стора.
type Config struct {
	// Addr — адрес Redis (host:port).
	Addr string

	// Password — пароль (пустой — без авторизации).
	Password string

	// DB — номер базы.
	DB int

	// TTL — срок жизни записей. 0 — default 1h.
	TTL time.Duration
}

// ConfigFromEnv собирает конфигурацию из окружения:
// REDIS_ADDR, REDIS_PASSWORD, REDIS_DB игнорируется (всегда 0).
func ConfigFromEnv() Config {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return Config{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	}
}

// Store — учёт статусов запусков и шагов в Redis.
//
// Ключи:
//
//	task:{requestID}                     — статус запуска
//	task:{requestID}:step:{stepID}       — статус шага
//	task:{requestID}:cancel              — флаг запрошенной отмены
//
// Все записи живут с TTL: стор — оперативная доска, не хранилище.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore создаёт стор поверх нового клиента Redis.
func NewStore(cfg Config) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client, ttl: ttl}
}

// NewStoreWithClient создаёт стор поверх готового клиента (для тестов).
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Ping проверяет доступность Redis.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает клиент.
func (s *Store) Close() error {
	return s.client.Close()
}

func runKey(requestID string) string {
	return "task:" + requestID
}

func stepKey(requestID, stepID string) string {
	return "task:" + requestID + ":step:" + stepID
}

func cancelKey(requestID string) string {
	return "task:" + requestID + ":cancel"
}

// SetRunStatus записывает статус запуска.
func (s *Store) SetRunStatus(ctx context.Context, requestID string, status domain.StepStatus) error {
	if err := s.client.Set(ctx, runKey(requestID), string(status), s.ttl).Err(); err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	return nil
}

// RunStatus возвращает статус запуска.
func (s *Store) RunStatus(ctx context.Context, requestID string) (domain.StepStatus, error) {
	val, err := s.client.Get(ctx, runKey(requestID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: run %s", ErrNotFound, requestID)
	}
	if err != nil {
		return "", fmt.Errorf("get run status: %w", err)
	}
	return domain.ParseStatus(val), nil
}

// SetStepStatus записывает статус шага запуска.
func (s *Store) SetStepStatus(ctx context.Context, requestID, stepID string, status domain.StepStatus) error {
	if err := s.client.Set(ctx, stepKey(requestID, stepID), string(status), s.ttl).Err(); err != nil {
		return fmt.Errorf("set step status: %w", err)
	}
	return nil
}

// StepStatus возвращает статус шага запуска.
func (s *Store) StepStatus(ctx context.Context, requestID, stepID string) (domain.StepStatus, error) {
	val, err := s.client.Get(ctx, stepKey(requestID, stepID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: run %s step %s", ErrNotFound, requestID, stepID)
	}
	if err != nil {
		return "", fmt.Errorf("get step status: %w", err)
	}
	return domain.ParseStatus(val), nil
}

// StepStatuses возвращает статусы всех шагов запуска: stepID → статус.
func (s *Store) StepStatuses(ctx context.Context, requestID string) (map[string]domain.StepStatus, error) {
	pattern := stepKey(requestID, "*")
	prefix := stepKey(requestID, "")

	statuses := make(map[string]domain.StepStatus)
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get step status %s: %w", key, err)
		}
		statuses[key[len(prefix):]] = domain.ParseStatus(val)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan step statuses: %w", err)
	}
	return statuses, nil
}

// RequestCancel ставит флаг отмены запуска.
//
// Отмена кооперативная: драйвер проверяет флаг между шагами,
// выполняющийся шаг не прерывается.
func (s *Store) RequestCancel(ctx context.Context, requestID string) error {
	if err := s.client.Set(ctx, cancelKey(requestID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	return nil
}

// IsCancelRequested проверяет флаг отмены запуска.
func (s *Store) IsCancelRequested(ctx context.Context, requestID string) (bool, error) {
	_, err := s.client.Get(ctx, cancelKey(requestID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check cancel flag: %w", err)
	}
	return true, nil
}
