package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const productVersionKey = "catalog:version"

// バージョン付きのRedisキャッシュ。書き込み時はBumpで全体を無効化する。
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// clientがnilなら素通し
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

func (c *ProductCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, productVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		//SetNXで初期化（同時初期化でも1になる）
		if err := c.client.SetNX(ctx, productVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, productVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// catalog:product:<id>:<version>
func (c *ProductCache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"catalog"}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// キャッシュにあれば返し、なければloaderの結果を保存して返す
func (c *ProductCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return loadInto(ctx, dest, loader)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// バージョンを上げて古いキーを読まれなくする
func (c *ProductCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, productVersionKey).Err()
}

func loadInto(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
