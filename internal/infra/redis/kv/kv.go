package infra_redis_kv

import (
	"context"
	"time"

	"github.com/go-redis/redis"
)

// Driver exposes the small slice of redis the game needs: plain keys with
// expiry plus one membership set. Absent keys read as empty values, never
// as errors.
type Driver struct {
	client *redis.Client
}

func New(client *redis.Client) *Driver {
	return &Driver{client: client}
}

func (d *Driver) Get(ctx context.Context, key string) (string, error) {
	val, err := d.client.Get(key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

func (d *Driver) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return d.client.Set(key, value, ttl).Err()
}

func (d *Driver) Del(ctx context.Context, key string) error {
	return d.client.Del(key).Err()
}

func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Driver) SAdd(ctx context.Context, key string, member string) error {
	return d.client.SAdd(key, member).Err()
}

func (d *Driver) SRem(ctx context.Context, key string, member string) error {
	return d.client.SRem(key, member).Err()
}

func (d *Driver) SMembers(ctx context.Context, key string) ([]string, error) {
	return d.client.SMembers(key).Result()
}

func (d *Driver) SCard(ctx context.Context, key string) (int64, error) {
	return d.client.SCard(key).Result()
}
