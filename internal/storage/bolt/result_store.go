package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/motioncoach/internal/storage"
	"go.etcd.io/bbolt"
)

type resultStore struct {
	db *bbolt.DB
}

func (s *resultStore) Add(ctx context.Context, record storage.ResultRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	key, err := timeKey(record.CreatedAt)
	if err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = key
	}
	data, err := marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketResults))
		if bucket == nil {
			return fmt.Errorf("results bucket missing")
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return err
		}
		return s.addIndexes(tx, key, record)
	})
}

func (s *resultStore) addIndexes(tx *bbolt.Tx, key string, record storage.ResultRecord) error {
	ids, err := ensureIndexBucket(tx, bucketIndexResultID)
	if err != nil {
		return err
	}
	if err := ids.Put([]byte(record.ID), []byte(key)); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, res := range record.Results {
		movement := normalizeIndexKey(res.Movement)
		if seen[movement] {
			continue
		}
		seen[movement] = true
		idx, err := ensureIndexBucket(tx, bucketIndexMovement, movement)
		if err != nil {
			return err
		}
		if err := idx.Put([]byte(key), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *resultStore) Get(ctx context.Context, id string) (*storage.ResultRecord, error) {
	var key string
	err := s.db.View(func(tx *bbolt.Tx) error {
		ids := nestedBucket(tx, bucketIndexes, bucketIndexResultID)
		if ids == nil {
			return storage.ErrNotFound
		}
		value := ids.Get([]byte(id))
		if value == nil {
			return storage.ErrNotFound
		}
		key = string(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return getBucketValue[storage.ResultRecord](ctx, s.db, bucketResults, key)
}

func (s *resultStore) List(ctx context.Context, filter storage.ResultFilter) ([]storage.ResultRecord, error) {
	records := make([]storage.ResultRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		results := tx.Bucket([]byte(bucketResults))
		if results == nil {
			return nil
		}

		// Walk either the full log or a movement index, newest first.
		cursorBucket := results
		if filter.Movement != "" {
			cursorBucket = nestedBucket(tx, bucketIndexes, bucketIndexMovement, normalizeIndexKey(filter.Movement))
			if cursorBucket == nil {
				return nil
			}
		}

		c := cursorBucket.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			value := results.Get(k)
			if value == nil {
				continue
			}
			var record storage.ResultRecord
			if err := unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
			if filter.Limit > 0 && len(records) >= filter.Limit {
				break
			}
		}
		return nil
	})
	return records, err
}
