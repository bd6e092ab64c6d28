package redis

import (
	"context"
	"sync"
	"time"

	"MProject/logger"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var (
	redisOnce sync.Once
	redisMgr  *Manager
)

// Config 用于初始化 Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Manager wraps the shared key/value + pub/sub service. It is a cache and
// coordination layer, not a system of record: every operation degrades
// gracefully. Reads come back empty on transport error, writes are logged
// and dropped. Callers must already treat "miss" as a normal path.
type Manager struct {
	client *redis.Client
}

// InitRedis 初始化 Redis 管理器（单例）
func InitRedis(c Config) error {
	var initErr error
	redisOnce.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
			PoolSize: c.PoolSize,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = err
			return
		}

		redisMgr = &Manager{client: rdb}
	})
	return initErr
}

// GetManager 获取 Redis Manager
func GetManager() *Manager {
	if redisMgr == nil {
		panic("redis not initialized, call InitRedis first")
	}
	return redisMgr
}

// NewManager builds a Manager around an existing client (tests, tools).
func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client}
}

// CloseRedis 关闭连接
func CloseRedis() error {
	if redisMgr != nil && redisMgr.client != nil {
		return redisMgr.client.Close()
	}
	return nil
}

// ===== string keys =====

func (m *Manager) Get(ctx context.Context, key string) string {
	val, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ""
	}
	if err != nil {
		logger.Warnf("[redis] get %s: %v", key, err)
		return ""
	}
	return val
}

func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := m.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logger.Warnf("[redis] set %s dropped: %v", key, err)
	}
}

func (m *Manager) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warnf("[redis] del %v dropped: %v", keys, err)
	}
}

func (m *Manager) Expire(ctx context.Context, key string, ttl time.Duration) {
	if err := m.client.Expire(ctx, key, ttl).Err(); err != nil {
		logger.Warnf("[redis] expire %s dropped: %v", key, err)
	}
}

// ===== hashes (structured records, e.g. chat metadata) =====

func (m *Manager) HSet(ctx context.Context, key string, pairs ...string) {
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return
	}
	args := make([]interface{}, 0, len(pairs))
	for _, p := range pairs {
		args = append(args, p)
	}
	if err := m.client.HSet(ctx, key, args...).Err(); err != nil {
		logger.Warnf("[redis] hset %s dropped: %v", key, err)
	}
}

func (m *Manager) HGet(ctx context.Context, key, field string) string {
	val, err := m.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return ""
	}
	if err != nil {
		logger.Warnf("[redis] hget %s %s: %v", key, field, err)
		return ""
	}
	return val
}

func (m *Manager) HGetAll(ctx context.Context, key string) map[string]string {
	val, err := m.client.HGetAll(ctx, key).Result()
	if err != nil {
		logger.Warnf("[redis] hgetall %s: %v", key, err)
		return map[string]string{}
	}
	return val
}

func (m *Manager) HDel(ctx context.Context, key string, fields ...string) {
	if err := m.client.HDel(ctx, key, fields...).Err(); err != nil {
		logger.Warnf("[redis] hdel %s dropped: %v", key, err)
	}
}

// ===== sets (membership, typing indicators, per-user chat lists) =====

func (m *Manager) SAdd(ctx context.Context, key string, members ...string) {
	args := make([]interface{}, 0, len(members))
	for _, mem := range members {
		args = append(args, mem)
	}
	if err := m.client.SAdd(ctx, key, args...).Err(); err != nil {
		logger.Warnf("[redis] sadd %s dropped: %v", key, err)
	}
}

func (m *Manager) SRem(ctx context.Context, key string, members ...string) {
	args := make([]interface{}, 0, len(members))
	for _, mem := range members {
		args = append(args, mem)
	}
	if err := m.client.SRem(ctx, key, args...).Err(); err != nil {
		logger.Warnf("[redis] srem %s dropped: %v", key, err)
	}
}

func (m *Manager) SMembers(ctx context.Context, key string) []string {
	val, err := m.client.SMembers(ctx, key).Result()
	if err != nil {
		logger.Warnf("[redis] smembers %s: %v", key, err)
		return nil
	}
	return val
}

// ===== sorted sets (time-ordered message indices) =====

func (m *Manager) ZAdd(ctx context.Context, key string, score float64, member string) {
	if err := m.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		logger.Warnf("[redis] zadd %s dropped: %v", key, err)
	}
}

func (m *Manager) ZRange(ctx context.Context, key string, start, stop int64) []string {
	val, err := m.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		logger.Warnf("[redis] zrange %s: %v", key, err)
		return nil
	}
	return val
}

func (m *Manager) ZRevRange(ctx context.Context, key string, start, stop int64) []string {
	val, err := m.client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		logger.Warnf("[redis] zrevrange %s: %v", key, err)
		return nil
	}
	return val
}

// ===== pub/sub =====

func (m *Manager) Publish(ctx context.Context, channel string, payload []byte) {
	if err := m.client.Publish(ctx, channel, payload).Err(); err != nil {
		logger.Warnf("[redis] publish %s dropped: %v", channel, err)
	}
}

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload string
}

// Subscribe consumes the given channels until ctx is cancelled. go-redis
// reconnects the underlying pubsub connection on its own; we only forward.
func (m *Manager) Subscribe(ctx context.Context, channels ...string) <-chan Message {
	out := make(chan Message, 1024)
	sub := m.client.Subscribe(ctx, channels...)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
				default:
					logger.Warnf("[redis] subscriber queue full, drop message on %s", msg.Channel)
				}
			}
		}
	}()
	return out
}
