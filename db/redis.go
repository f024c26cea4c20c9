package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"vrfGameServer/config"
)

// RedisStore keeps each record under its own key, indexed by a per-table set.
// A record expires TTL after its own last write.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitRedis connects and pings. An empty address means localhost:6379.
func InitRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	log.Println("🔌 Connecting to Redis...")

	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("✅ Redis connected successfully - URL: %s", opts.Addr)
	return &RedisStore{Client: client, TTL: config.AnonymousCacheTTL}, nil
}

func (s *RedisStore) Close() error {
	if s.Client != nil {
		log.Println("🔌 Closing Redis connection...")
		return s.Client.Close()
	}
	return nil
}

/* =========================
   RECORDS
   Redis Keys:
   - cache:{table}:{key} -> record JSON, expires TTL after its last write
   - cache:{table}       -> Set{key}, index of the table's records
========================= */

func (s *RedisStore) Upsert(ctx context.Context, table, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", table, err)
	}

	indexKey := fmt.Sprintf(config.RedisTableKey, table)
	pipe := s.Client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(config.RedisRecordKey, table, key), data, s.TTL)
	pipe.SAdd(ctx, indexKey, key)
	if s.TTL > 0 {
		// The index is refreshed on every write, so it outlives its records.
		pipe.Expire(ctx, indexKey, s.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store %s record: %w", table, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, table, key string, out any) (bool, error) {
	data, err := s.Client.Get(ctx, fmt.Sprintf(config.RedisRecordKey, table, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s record: %w", table, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s record: %w", table, err)
	}
	return true, nil
}

// Select loads every live record of the table and filters in process. Index
// entries whose record has expired are pruned on the way.
func (s *RedisStore) Select(ctx context.Context, table string, filter Filter, opts SelectOptions) ([]json.RawMessage, error) {
	indexKey := fmt.Sprintf(config.RedisTableKey, table)

	keys, err := s.Client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s records: %w", table, err)
	}
	if len(keys) == 0 {
		return applySelect(nil, filter, opts)
	}
	sort.Strings(keys)

	recordKeys := make([]string, len(keys))
	for i, k := range keys {
		recordKeys[i] = fmt.Sprintf(config.RedisRecordKey, table, k)
	}
	vals, err := s.Client.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s records: %w", table, err)
	}

	raws := make([][]byte, 0, len(vals))
	var expired []any
	for i, v := range vals {
		data, ok := v.(string)
		if !ok {
			expired = append(expired, keys[i])
			continue
		}
		raws = append(raws, []byte(data))
	}
	if len(expired) > 0 {
		if err := s.Client.SRem(ctx, indexKey, expired...).Err(); err != nil {
			log.Printf("⚠️  Failed to prune expired %s keys: %v", table, err)
		}
	}
	return applySelect(raws, filter, opts)
}

/* =========================
   HEALTH CHECK
========================= */

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}
