// Package history persists finished interviews in an embedded Badger store
// so candidates can review past sessions and reports.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"ai-interview-coach-service/internal/models"
	"ai-interview-coach-service/internal/observability/logging"
	"ai-interview-coach-service/internal/observability/metrics"
)

var ErrNotFound = errors.New("interview not found")

const keyPrefix = "interview/"

// Store is an embedded key-value store of interview records, keyed by
// interview ID.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens (or creates) the store at dir. An empty dir opens an in-memory
// store, used in development and tests.
func Open(dir string) (*Store, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: open %q: %w", dir, err)
	}
	return &Store{
		db:     db,
		logger: logging.WithComponent("history"),
	}, nil
}

// SaveInterview writes a finished interview record.
func (s *Store) SaveInterview(record *models.InterviewRecord) error {
	if record.ID == "" {
		return errors.New("history: record has no id")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		metrics.DefaultMetrics.RecordHistoryWrite(err)
		return fmt.Errorf("history: encode %s: %w", record.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+record.ID), payload)
	})
	metrics.DefaultMetrics.RecordHistoryWrite(err)
	if err != nil {
		return fmt.Errorf("history: save %s: %w", record.ID, err)
	}

	s.logger.Debug().Str("id", record.ID).Int("turns", len(record.Exchanges)).Msg("interview saved")
	return nil
}

// GetInterview loads one interview by ID.
func (s *Store) GetInterview(id string) (*models.InterviewRecord, error) {
	var record models.InterviewRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get %s: %w", id, err)
	}
	return &record, nil
}

// ListInterviews returns all stored interviews, most recent first.
func (s *Store) ListInterviews() ([]*models.InterviewRecord, error) {
	var records []*models.InterviewRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record models.InterviewRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FinishedAt.After(records[j].FinishedAt)
	})
	return records, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}
