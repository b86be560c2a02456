package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/motioncoach/internal/storage"
	"go.etcd.io/bbolt"
)

type exampleStore struct {
	db *bbolt.DB
}

func (s *exampleStore) Append(ctx context.Context, example storage.Example) error {
	if example.Movement == "" {
		return fmt.Errorf("example movement is required")
	}
	if example.CreatedAt.IsZero() {
		example.CreatedAt = time.Now().UTC()
	}
	if example.ID == "" {
		key, err := timeKey(example.CreatedAt)
		if err != nil {
			return err
		}
		example.ID = key
	}
	data, err := marshal(example)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketExamples))
		if root == nil {
			return fmt.Errorf("examples bucket missing")
		}
		bucket, err := root.CreateBucketIfNotExists([]byte(example.Movement))
		if err != nil {
			return fmt.Errorf("create movement bucket %s: %w", example.Movement, err)
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(sequenceKey(seq), data)
	})
}

func (s *exampleStore) List(ctx context.Context, movement string) ([]storage.Example, error) {
	return listBucket[storage.Example](ctx, s.db, bucketExamples, movement)
}

func (s *exampleStore) Movements(ctx context.Context) ([]string, error) {
	movements := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketExamples))
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if v != nil {
				return nil
			}
			if b := root.Bucket(k); b != nil {
				if first, _ := b.Cursor().First(); first != nil {
					movements = append(movements, string(k))
				}
			}
			return nil
		})
	})
	return movements, err
}

func (s *exampleStore) Clear(ctx context.Context, movement string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		root := tx.Bucket([]byte(bucketExamples))
		if root == nil {
			return nil
		}
		bucket := root.Bucket([]byte(movement))
		if bucket == nil {
			return nil
		}
		deleted = bucket.Stats().KeyN
		return root.DeleteBucket([]byte(movement))
	})
	return deleted, err
}
