package bolt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodtune/motioncoach/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketExamples      = "examples" // one nested bucket per movement
	bucketResults       = "results"
	bucketIndexes       = "indexes"
	bucketIndexResultID = "result_id"
	bucketIndexMovement = "movement"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			[]byte(bucketExamples),
			[]byte(bucketResults),
			[]byte(bucketIndexes),
		}

		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}

		indexes := tx.Bucket([]byte(bucketIndexes))
		if indexes == nil {
			return fmt.Errorf("indexes bucket missing")
		}
		if _, err := indexes.CreateBucketIfNotExists([]byte(bucketIndexResultID)); err != nil {
			return fmt.Errorf("create result id index: %w", err)
		}
		if _, err := indexes.CreateBucketIfNotExists([]byte(bucketIndexMovement)); err != nil {
			return fmt.Errorf("create movement index: %w", err)
		}

		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Examples returns the training example store.
func (s *Store) Examples() storage.ExampleStore { return &exampleStore{db: s.db} }

// Results returns the analysis result store.
func (s *Store) Results() storage.ResultStore { return &resultStore{db: s.db} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// timeKey produces keys that sort chronologically within a bucket.
func timeKey(ts time.Time) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%020d-%s", ts.UnixNano(), suffix), nil
}

// sequenceKey encodes a bucket sequence so keys sort in insertion order.
func sequenceKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}

func listBucket[T any](ctx context.Context, db *bbolt.DB, path ...string) ([]T, error) {
	items := make([]T, 0)
	err := db.View(func(tx *bbolt.Tx) error {
		b := nestedBucket(tx, path...)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if v == nil {
				return nil
			}
			var item T
			if err := unmarshal(v, &item); err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
	})
	return items, err
}

func getBucketValue[T any](ctx context.Context, db *bbolt.DB, bucket string, key string) (*T, error) {
	var item *T
	err := db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		var result T
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		item = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// nestedBucket walks path from the root, returning nil if any level is
// missing.
func nestedBucket(tx *bbolt.Tx, path ...string) *bbolt.Bucket {
	if len(path) == 0 {
		return nil
	}
	current := tx.Bucket([]byte(path[0]))
	for _, part := range path[1:] {
		if current == nil {
			return nil
		}
		current = current.Bucket([]byte(part))
	}
	return current
}

func ensureIndexBucket(tx *bbolt.Tx, path ...string) (*bbolt.Bucket, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty index bucket path")
	}
	root := tx.Bucket([]byte(bucketIndexes))
	if root == nil {
		return nil, fmt.Errorf("indexes bucket missing")
	}
	current := root
	for _, part := range path {
		bucket, err := current.CreateBucketIfNotExists([]byte(part))
		if err != nil {
			return nil, err
		}
		current = bucket
	}
	return current, nil
}

func normalizeIndexKey(value string) string {
	if value == "" {
		return "unknown"
	}
	return strings.ToLower(value)
}
