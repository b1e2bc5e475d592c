package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	recordKeyPrefix = "dosing:result:"
	recentListKey   = "dosing:results"
	// keepRecent bounds the recent-results list.
	keepRecent = 200
)

// Record is one completed dosing run.
type Record struct {
	ID               string    `json:"id"`
	Substance        string    `json:"substance"`
	TargetMilligrams float64   `json:"target_mg"`
	DosedMilligrams  float64   `json:"dosed_mg"`
	Attempts         int       `json:"attempts"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Store keeps dosing results in Redis so workflow orchestrators can
// audit past runs.
type Store struct {
	client *redis.Client
}

// NewStore creates a result store on the given client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save persists one record and pushes it onto the recent-results list.
func (s *Store) Save(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return errors.New("record must have an id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal dosing record")
	}

	if err := s.client.Set(ctx, recordKeyPrefix+record.ID, data, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save dosing record")
	}
	if err := s.client.LPush(ctx, recentListKey, record.ID).Err(); err != nil {
		return errors.Wrap(err, "failed to index dosing record")
	}
	if err := s.client.LTrim(ctx, recentListKey, 0, keepRecent-1).Err(); err != nil {
		return errors.Wrap(err, "failed to trim dosing record index")
	}
	return nil
}

// Get loads one record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, recordKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.Errorf("dosing record %s not found", id)
		}
		return nil, errors.Wrap(err, "failed to load dosing record")
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal dosing record")
	}
	return &record, nil
}

// Recent returns up to n of the most recently saved records, newest
// first. Records whose payload has expired are skipped.
func (s *Store) Recent(ctx context.Context, n int) ([]*Record, error) {
	if n <= 0 {
		n = 20
	}

	ids, err := s.client.LRange(ctx, recentListKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recent dosing records")
	}

	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}
