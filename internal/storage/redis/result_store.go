package redis

import (
	"context"
	"strings"
	"time"

	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type resultStore struct {
	client *redis.Client
	keys   keys
}

// Add records an analysis run and indexes it by time and movement
func (s *resultStore) Add(ctx context.Context, record storage.ResultRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	fields, err := resultFields(record)
	if err != nil {
		return err
	}

	score := float64(record.CreatedAt.UnixNano())
	member := redis.Z{Score: score, Member: record.ID}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.result(record.ID), fields)
	pipe.ZAdd(ctx, s.keys.resultLog(), member)
	seen := make(map[string]bool)
	for _, res := range record.Results {
		movement := strings.ToLower(res.Movement)
		if movement == "" || seen[movement] {
			continue
		}
		seen[movement] = true
		pipe.ZAdd(ctx, s.keys.resultsByMovement(movement), member)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Get retrieves a result record by ID
func (s *resultStore) Get(ctx context.Context, id string) (*storage.ResultRecord, error) {
	data, err := s.client.HGetAll(ctx, s.keys.result(id)).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return parseResultRecord(data)
}

// List returns result records newest first
func (s *resultStore) List(ctx context.Context, filter storage.ResultFilter) ([]storage.ResultRecord, error) {
	index := s.keys.resultLog()
	if filter.Movement != "" {
		index = s.keys.resultsByMovement(strings.ToLower(filter.Movement))
	}

	stop := int64(-1)
	if filter.Limit > 0 {
		stop = int64(filter.Limit - 1)
	}

	ids, err := s.client.ZRevRange(ctx, index, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.ResultRecord{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))

	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keys.result(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	records := make([]storage.ResultRecord, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		record, err := parseResultRecord(data)
		if err == nil {
			records = append(records, *record)
		}
	}

	return records, nil
}
