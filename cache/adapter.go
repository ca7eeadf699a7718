package cache

import (
	"context"
	"time"

	"github.com/hazuki-games/steelduel/server/cache/local"
	cacheredis "github.com/hazuki-games/steelduel/server/cache/redis"
)

// Cache is the key/value surface the server needs: string keys with TTLs
// for editor session tokens, and one sorted set for the tree-wins
// leaderboard. Anything redis offers beyond that is deliberately not
// exposed here.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Expire resets the TTL on an existing key. Used to slide session
	// expiry on authenticated requests.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
}

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub carries arena events and admin announcements to SSE clients, and
// tree-save notifications between server instances.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
}

// CacheConfig selects and tunes the backend. An empty RedisAddr means the
// in-process backend, which is what tests and single-node deployments use.
type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// NewCache returns a redis-backed Cache when RedisAddr is set, otherwise an
// in-process store.
func NewCache(cfg CacheConfig) (Cache, error) {
	if cfg.RedisAddr != "" {
		return cacheredis.Dial(cacheredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return local.NewStore(cfg.LocalGCInterval), nil
}

// NewPubSub returns a PubSub on the same backend selection as NewCache.
func NewPubSub(cfg CacheConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		client, err := cacheredis.Dial(cacheredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return &redisPubSub{c: client}, nil
	}
	return &localPubSub{b: local.NewBroker(cfg.LocalPubSubBuf)}, nil
}

// The backends declare their own message types so they stay importable
// without a cycle; these adapters bridge them to cache.Message.

type localPubSub struct {
	b *local.Broker
}

func (a *localPubSub) Publish(ctx context.Context, channel, message string) error {
	return a.b.Publish(ctx, channel, message)
}

func (a *localPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	src, cancel, err := a.b.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan *Message, 256)
	go func() {
		defer close(out)
		for m := range src {
			out <- &Message{Channel: m.Channel, Payload: m.Payload}
		}
	}()
	return out, cancel, nil
}

type redisPubSub struct {
	c *cacheredis.Client
}

func (a *redisPubSub) Publish(ctx context.Context, channel, message string) error {
	return a.c.Publish(ctx, channel, message)
}

func (a *redisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	src, cancel, err := a.c.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan *Message, 256)
	go func() {
		defer close(out)
		for m := range src {
			out <- &Message{Channel: m.Channel, Payload: m.Payload}
		}
	}()
	return out, cancel, nil
}
