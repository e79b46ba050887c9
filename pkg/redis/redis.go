package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"astro-union/config"
)

// Client Redis 客户端封装
// 当前用于展示目录（标签分组/颜色预设）的读穿缓存；后续可扩展分布式锁等场景
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 展示目录缓存 ──

const catalogPrefix = "catalog:snapshot:"

// CacheCatalog 缓存租户的展示目录快照（序列化后的 JSON）
func (c *Client) CacheCatalog(ctx context.Context, tenantID string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, catalogPrefix+tenantID, payload, ttl).Err()
}

// GetCatalog 读取租户的展示目录快照；缓存未命中时返回 (nil, nil)
func (c *Client) GetCatalog(ctx context.Context, tenantID string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, catalogPrefix+tenantID).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// InvalidateCatalog 目录写操作后使缓存失效
func (c *Client) InvalidateCatalog(ctx context.Context, tenantID string) error {
	return c.rdb.Del(ctx, catalogPrefix+tenantID).Err()
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数；窗口首个请求设置过期时间
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
