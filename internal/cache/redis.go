package cache

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis 将 Cache 落到 go-redis 上。所有操作都是尽力而为：
// Redis 故障只会记日志并表现为未命中，不影响主流程。
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Dial 连接 Redis 并做一次 ping 探活；ping 失败只告警不报错，
// 和存储层启动时的处理方式保持一致。
func Dial(addr string) *Redis {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	bs, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return bs, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("warn: cache set %s: %v", key, err)
	}
}

// Delete 精确 key 直接 DEL；模式则用 SCAN MATCH 分批扫描后删除，
// 避免 KEYS 在大库上阻塞。
func (r *Redis) Delete(ctx context.Context, pattern string) int {
	if !strings.ContainsAny(pattern, "*?[") {
		n, err := r.client.Del(ctx, pattern).Result()
		if err != nil {
			log.Printf("warn: cache del %s: %v", pattern, err)
			return 0
		}
		return int(n)
	}

	removed := 0
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			log.Printf("warn: cache scan %s: %v", pattern, err)
			return removed
		}
		if len(keys) > 0 {
			if n, err := r.client.Del(ctx, keys...).Result(); err == nil {
				removed += int(n)
			}
		}
		cursor = next
		if cursor == 0 {
			return removed
		}
	}
}
