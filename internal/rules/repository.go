package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"herald/internal/constants"
)

// Repository is the shared key/value store of rule text. Every pipeline
// replica reads the same keys; writes come from the administrative API.
type Repository interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, expression string) error
	Delete(ctx context.Context, name string) error
	Seed(ctx context.Context, defaults map[string]string) error
}

type RedisRepository struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Get(ctx context.Context, name string) (string, bool, error) {
	val, err := r.client.Get(ctx, constants.RuleKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get rule %s: %w", name, err)
	}
	return val, true, nil
}

func (r *RedisRepository) Set(ctx context.Context, name, expression string) error {
	if err := r.client.Set(ctx, constants.RuleKeyPrefix+name, expression, 0).Err(); err != nil {
		return fmt.Errorf("failed to set rule %s: %w", name, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, constants.RuleKeyPrefix+name).Err(); err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", name, err)
	}
	return nil
}

// Seed writes each default only if the key is absent, so it is safe to
// run on every process start without clobbering operator overrides.
func (r *RedisRepository) Seed(ctx context.Context, defaults map[string]string) error {
	for name, expression := range defaults {
		if err := r.client.SetNX(ctx, constants.RuleKeyPrefix+name, expression, 0).Err(); err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", name, err)
		}
	}
	return nil
}
