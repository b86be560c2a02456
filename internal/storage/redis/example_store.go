package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type exampleStore struct {
	client *redis.Client
	keys   keys
}

// Append adds an example to the end of its movement's list
func (s *exampleStore) Append(ctx context.Context, example storage.Example) error {
	if example.Movement == "" {
		return fmt.Errorf("example movement is required")
	}
	if example.CreatedAt.IsZero() {
		example.CreatedAt = time.Now().UTC()
	}
	if example.ID == "" {
		example.ID = uuid.NewString()
	}

	payload, err := json.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example: %w", err)
	}

	script := redis.NewScript(appendExampleScript)
	keys := []string{s.keys.examples(example.Movement), s.keys.movements()}
	return script.Run(ctx, s.client, keys, example.Movement, string(payload)).Err()
}

// List returns a movement's examples in insertion order
func (s *exampleStore) List(ctx context.Context, movement string) ([]storage.Example, error) {
	payloads, err := s.client.LRange(ctx, s.keys.examples(movement), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	examples := make([]storage.Example, 0, len(payloads))
	for _, payload := range payloads {
		var example storage.Example
		if err := json.Unmarshal([]byte(payload), &example); err != nil {
			return nil, fmt.Errorf("failed to unmarshal example: %w", err)
		}
		examples = append(examples, example)
	}
	return examples, nil
}

// Movements returns every movement with at least one example, sorted
func (s *exampleStore) Movements(ctx context.Context) ([]string, error) {
	movements, err := s.client.SMembers(ctx, s.keys.movements()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(movements)
	return movements, nil
}

// Clear removes all examples for a movement
func (s *exampleStore) Clear(ctx context.Context, movement string) (int, error) {
	script := redis.NewScript(clearExamplesScript)
	keys := []string{s.keys.examples(movement), s.keys.movements()}
	count, err := script.Run(ctx, s.client, keys, movement).Int()
	if err != nil {
		return 0, err
	}
	return count, nil
}
