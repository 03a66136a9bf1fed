package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mailpool/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = fmt.Errorf("cache miss")

// Cache Redis 缓存实现，为热点的邮箱与令牌查询提供读缓存。
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ========== 邮箱缓存 ==========

// CacheMailbox 按地址缓存邮箱信息
func (c *Cache) CacheMailbox(mailbox *domain.Mailbox, ttl time.Duration) error {
	key := mailboxKey(mailbox.Email)
	data, err := json.Marshal(mailbox)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedMailbox 获取缓存的邮箱信息
func (c *Cache) GetCachedMailbox(email string) (*domain.Mailbox, error) {
	data, err := c.client.Get(c.ctx, mailboxKey(email)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var mailbox domain.Mailbox
	if err := json.Unmarshal([]byte(data), &mailbox); err != nil {
		return nil, err
	}
	return &mailbox, nil
}

// InvalidateMailbox 清除邮箱缓存
func (c *Cache) InvalidateMailbox(email string) error {
	return c.client.Del(c.ctx, mailboxKey(email)).Err()
}

// ========== 令牌缓存 ==========

// CacheToken 按令牌串缓存令牌
func (c *Cache) CacheToken(token *domain.APIToken, ttl time.Duration) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, tokenKey(token.Token), data, ttl).Err()
}

// GetCachedToken 获取缓存的令牌
func (c *Cache) GetCachedToken(secret string) (*domain.APIToken, error) {
	data, err := c.client.Get(c.ctx, tokenKey(secret)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var token domain.APIToken
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// InvalidateToken 清除令牌缓存
func (c *Cache) InvalidateToken(secret string) error {
	return c.client.Del(c.ctx, tokenKey(secret)).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health 检查 Redis 连接状态
func (c *Cache) Health() error {
	return c.client.Ping(c.ctx).Err()
}

func mailboxKey(email string) string {
	return fmt.Sprintf("mailbox:email:%s", email)
}

func tokenKey(secret string) string {
	return fmt.Sprintf("apitoken:%s", secret)
}
