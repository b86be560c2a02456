package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/motioncoach/internal/motion"
	"github.com/goodtune/motioncoach/internal/storage"
)

// resultFields converts a ResultRecord to Redis hash fields
func resultFields(record storage.ResultRecord) (map[string]interface{}, error) {
	results, err := json.Marshal(record.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return map[string]interface{}{
		"id":         record.ID,
		"output_id":  record.OutputID,
		"device_id":  record.DeviceID,
		"mode":       record.Mode,
		"movement":   record.Movement,
		"results":    string(results),
		"created_at": record.CreatedAt.Format(time.RFC3339Nano),
	}, nil
}

// parseResultRecord converts a Redis hash to ResultRecord
func parseResultRecord(data map[string]string) (*storage.ResultRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	var results []motion.Result
	if raw := data["results"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &results); err != nil {
			return nil, fmt.Errorf("failed to parse results: %w", err)
		}
	}

	return &storage.ResultRecord{
		ID:        data["id"],
		OutputID:  data["output_id"],
		DeviceID:  data["device_id"],
		Mode:      data["mode"],
		Movement:  data["movement"],
		Results:   results,
		CreatedAt: createdAt,
	}, nil
}
