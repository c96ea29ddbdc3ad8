package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"narrative-server/internal/model"
)

// Compile-time check.
var _ StoryRepository = (*redisStoryRepository)(nil)

const storyKeyPrefix = "story:"

// redisStoryRepository хранит каждую историю как JSON-документ в Redis.
// TTL опционален (0 — без истечения). Сериализация per-story реализована
// внутрипроцессным мьютексом — предполагается один экземпляр сервиса;
// для горизонтального масштабирования потребуется распределённая
// блокировка (SET NX), что выходит за рамки текущего деплоя.
type redisStoryRepository struct {
	client *redis.Client
	ttl    time.Duration
	locks  *lockTable
	logger *zap.Logger
}

// NewRedisStoryRepository создает Redis-хранилище историй.
func NewRedisStoryRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) StoryRepository {
	return &redisStoryRepository{
		client: client,
		ttl:    ttl,
		locks:  newLockTable(),
		logger: logger.Named("RedisStoryRepo"),
	}
}

func storyKey(id string) string { return storyKeyPrefix + id }

func (r *redisStoryRepository) Create(ctx context.Context, story *model.Story) error {
	payload, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("failed to marshal story %s: %w", story.ID, err)
	}

	ok, err := r.client.SetNX(ctx, storyKey(story.ID), payload, r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to store story in redis", zap.String("storyID", story.ID), zap.Error(err))
		return fmt.Errorf("failed to store story: %w", err)
	}
	if !ok {
		return fmt.Errorf("story %s already exists", story.ID)
	}

	r.logger.Debug("Story stored", zap.String("storyID", story.ID), zap.Duration("ttl", r.ttl))
	return nil
}

func (r *redisStoryRepository) Get(ctx context.Context, id string) (*model.Story, error) {
	payload, err := r.client.Get(ctx, storyKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to read story from redis", zap.String("storyID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to read story: %w", err)
	}

	var story model.Story
	if err := json.Unmarshal(payload, &story); err != nil {
		return nil, fmt.Errorf("failed to unmarshal story %s: %w", id, err)
	}
	return &story, nil
}

func (r *redisStoryRepository) Update(ctx context.Context, id string, mutate func(*model.Story) error) (*model.Story, error) {
	idLock := r.locks.get(id)
	idLock.Lock()
	defer idLock.Unlock()

	story, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(story); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(story)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal story %s: %w", id, err)
	}

	// KeepTTL, чтобы апдейт не продлевал истечение до бесконечности.
	expiration := time.Duration(redis.KeepTTL)
	if r.ttl > 0 {
		expiration = r.ttl
	}
	if err := r.client.Set(ctx, storyKey(id), payload, expiration).Err(); err != nil {
		r.logger.Error("Failed to update story in redis", zap.String("storyID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update story: %w", err)
	}

	return story, nil
}
