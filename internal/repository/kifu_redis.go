package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	errs "kifu_viewer/internal/errors"
)

const kifuKeyPrefix = "kifu:"

// KifuRedisStorage хранит рабочую копию редактируемой записи как текст SGF.
type KifuRedisStorage struct {
	redis *redis.Client
	ttl   time.Duration
	log   *zap.SugaredLogger
}

func NewKifuRedisStorage(client *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *KifuRedisStorage {
	return &KifuRedisStorage{
		redis: client,
		ttl:   ttl,
		log:   log,
	}
}

func (k *KifuRedisStorage) SaveSGF(ctx context.Context, key string, sgfText string) error {
	if err := k.redis.Set(ctx, kifuKeyPrefix+key, sgfText, k.ttl).Err(); err != nil {
		k.log.Errorw("failed to save kifu to redis", "key", key, "error", err)
		return fmt.Errorf("save kifu %s: %w", key, err)
	}
	return nil
}

func (k *KifuRedisStorage) LoadSGF(ctx context.Context, key string) (string, error) {
	text, err := k.redis.Get(ctx, kifuKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.ErrKifuNotFound
	}
	if err != nil {
		k.log.Errorw("failed to load kifu from redis", "key", key, "error", err)
		return "", fmt.Errorf("load kifu %s: %w", key, err)
	}
	return text, nil
}

func (k *KifuRedisStorage) DeleteSGF(ctx context.Context, key string) error {
	return k.redis.Del(ctx, kifuKeyPrefix+key).Err()
}
