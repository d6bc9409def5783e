package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	runIndexKey     = "pipeline_runs"
	processedSetKey = "pipeline_inbox_processed"
	runIndexCap     = 500
	defaultRunTTL   = 72 * time.Hour
	processedKeyTTL = 30 * 24 * time.Hour
)

// RedisStore keeps runs in Redis with a TTL, newest-first in a list index.
// It mirrors the shape of an upload-session store: one JSON blob per run
// plus separate keys for the heavyweight artifacts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRunTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) runKey(id string) string      { return fmt.Sprintf("pipeline_run:%s", id) }
func (s *RedisStore) datasetKey(id string) string  { return fmt.Sprintf("pipeline_run_dataset:%s", id) }
func (s *RedisStore) payloadsKey(id string) string { return fmt.Sprintf("pipeline_run_payloads:%s", id) }

func (s *RedisStore) SaveRun(ctx context.Context, run *Run, artifacts *Artifacts) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	if err := s.client.Set(ctx, s.runKey(run.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	if artifacts != nil && len(artifacts.Dataset) > 0 {
		if err := s.client.Set(ctx, s.datasetKey(run.ID), artifacts.Dataset, s.ttl).Err(); err != nil {
			return fmt.Errorf("store dataset: %w", err)
		}
	}
	if artifacts != nil && len(artifacts.Payloads) > 0 {
		if err := s.client.Set(ctx, s.payloadsKey(run.ID), artifacts.Payloads, s.ttl).Err(); err != nil {
			return fmt.Errorf("store payloads: %w", err)
		}
	}

	if err := s.client.LPush(ctx, runIndexKey, run.ID).Err(); err != nil {
		return fmt.Errorf("index run: %w", err)
	}
	s.client.LTrim(ctx, runIndexKey, 0, runIndexCap-1)
	return nil
}

func (s *RedisStore) GetRun(ctx context.Context, id string) (*Run, error) {
	data, err := s.client.Get(ctx, s.runKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &run, nil
}

func (s *RedisStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = runIndexCap
	}
	ids, err := s.client.LRange(ctx, runIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]*Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(ctx, id)
		if err == ErrRunNotFound {
			continue // expired but still indexed
		}
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *RedisStore) GetDataset(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.datasetKey(id)).Bytes()
	if err == redis.Nil {
		if _, runErr := s.GetRun(ctx, id); runErr != nil {
			return nil, runErr
		}
		return nil, ErrNoDataset
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}
	return data, nil
}

func (s *RedisStore) GetPayloads(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.payloadsKey(id)).Bytes()
	if err == redis.Nil {
		if _, runErr := s.GetRun(ctx, id); runErr != nil {
			return nil, runErr
		}
		return nil, ErrNoDataset
	}
	if err != nil {
		return nil, fmt.Errorf("get payloads: %w", err)
	}
	return data, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, key string) error {
	if err := s.client.SAdd(ctx, processedSetKey, key).Err(); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	s.client.Expire(ctx, processedSetKey, processedKeyTTL)
	return nil
}

func (s *RedisStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, processedSetKey, key).Result()
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
