package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sitescan/engine/pkg/types"
)

const redisKeyPrefix = "audit:report:"

// redisEnvelope wraps a stored report with its creation time so readers can
// compute the cache age without a second round trip.
type redisEnvelope struct {
	CreatedAtMs int64         `json:"createdAtMs"`
	Payload     *types.Report `json:"payload"`
}

// Redis is the external Store variant. It holds the same contract as Memory;
// expiry is enforced by the key TTL.
type Redis struct {
	rdb         *redis.Client
	ttl         time.Duration
	compression string
	logger      *zap.Logger
}

// NewRedis creates a Redis-backed cache. compression selects the payload
// algorithm (none, snappy, lz4).
func NewRedis(rdb *redis.Client, ttl time.Duration, compression string, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		rdb:         rdb,
		ttl:         ttl,
		compression: compression,
		logger:      logger,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (*types.Report, time.Duration, bool) {
	raw, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, 0, false
	}
	if err != nil {
		r.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, 0, false
	}

	data, err := Decompress(raw)
	if err != nil {
		r.logger.Warn("Cache payload unreadable, evicting", zap.String("key", key), zap.Error(err))
		r.rdb.Del(ctx, redisKeyPrefix+key)
		return nil, 0, false
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Payload == nil {
		r.logger.Warn("Cache envelope unreadable, evicting", zap.String("key", key), zap.Error(err))
		r.rdb.Del(ctx, redisKeyPrefix+key)
		return nil, 0, false
	}

	age := time.Since(time.UnixMilli(env.CreatedAtMs))
	if age < 0 {
		age = 0
	}
	return env.Payload, age, true
}

func (r *Redis) Set(ctx context.Context, key string, report *types.Report) {
	env := redisEnvelope{
		CreatedAtMs: time.Now().UnixMilli(),
		Payload:     report,
	}
	data, err := json.Marshal(env)
	if err != nil {
		r.logger.Error("Cache envelope marshal failed", zap.String("key", key), zap.Error(err))
		return
	}

	stored, err := Compress(data, r.compression)
	if err != nil {
		r.logger.Error("Cache compression failed, storing raw", zap.String("key", key), zap.Error(err))
		stored, _ = Compress(data, CompressionNone)
	}

	if err := r.rdb.Set(ctx, redisKeyPrefix+key, stored, r.ttl).Err(); err != nil {
		r.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
