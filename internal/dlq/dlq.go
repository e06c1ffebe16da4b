// Package dlq persists extractions that exhausted their retry budget so they
// can be replayed on the next service start. The store is deliberately a single
// JSON document with atomic-replace writes, not a database: the workload is a
// handful of entries and the only requirement is crash durability.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/guttosm/powerpulse/internal/domain/models"
	"github.com/guttosm/powerpulse/internal/logger"
)

const queueFileName = "FailedExtractions.json"

// Queue is a persistent FIFO of failed extractions, ordered by ascending
// ExtractionTimeUtc with at most one entry per instant.
//
// Every operation serializes through one mutex, and every change rewrites the
// whole document via a temp-file rename, so a crash leaves either the prior or
// the new queue intact; partial state is never observable.
type Queue struct {
	path string
	mu   sync.Mutex
}

// New creates the queue directory if absent and returns a Queue backed by
// <dir>/FailedExtractions.json.
func New(dir string) (*Queue, error) {
	if dir == "" {
		return nil, fmt.Errorf("dlq directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dlq directory %s: %w", dir, err)
	}
	return &Queue{path: filepath.Join(dir, queueFileName)}, nil
}

// Enqueue adds an entry, replacing any existing entry with the same
// ExtractionTimeUtc (the new RetryCount supersedes the old one), and persists
// the re-sorted queue.
func (q *Queue) Enqueue(ctx context.Context, entry models.FailedExtraction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.load()
	replaced := false
	for i := range entries {
		if entries[i].ExtractionTimeUtc.Equal(entry.ExtractionTimeUtc) {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	sortByExtractionTime(entries)

	if err := q.save(entries); err != nil {
		return err
	}
	logger.L().Info().
		Time("extraction_time_utc", entry.ExtractionTimeUtc).
		Int("retry_count", entry.RetryCount).
		Bool("replaced", replaced).
		Msg("dead letter enqueued")
	return nil
}

// DequeueAll returns every entry sorted by ascending ExtractionTimeUtc and
// atomically empties the store.
func (q *Queue) DequeueAll(ctx context.Context) ([]models.FailedExtraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.load()
	if len(entries) == 0 {
		return nil, nil
	}
	sortByExtractionTime(entries)
	if err := q.save(nil); err != nil {
		return nil, err
	}
	return entries, nil
}

// PeekAll returns every entry sorted by ascending ExtractionTimeUtc without
// modifying the store.
func (q *Queue) PeekAll(ctx context.Context) ([]models.FailedExtraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.load()
	sortByExtractionTime(entries)
	return entries, nil
}

// Count returns the number of queued entries.
func (q *Queue) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load()), nil
}

// Remove deletes the entry with the given ExtractionTimeUtc, reporting whether
// one was present.
func (q *Queue) Remove(ctx context.Context, extractionTimeUtc time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.load()
	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ExtractionTimeUtc.Equal(extractionTimeUtc) {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return false, nil
	}
	if err := q.save(kept); err != nil {
		return false, err
	}
	return true, nil
}

// load reads the queue document. A missing, empty, or malformed file is
// treated as an empty queue; recovery is best-effort and malformed state is
// logged rather than propagated.
func (q *Queue) load() []models.FailedExtraction {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.L().Warn().Err(err).Str("path", q.path).Msg("dead letter file unreadable, treating as empty")
		}
		return nil
	}
	if len(data) == 0 {
		logger.L().Warn().Str("path", q.path).Msg("dead letter file empty, treating as empty queue")
		return nil
	}
	var entries []models.FailedExtraction
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.L().Warn().Err(err).Str("path", q.path).Msg("dead letter file malformed, treating as empty queue")
		return nil
	}
	return entries
}

// save writes the full document to a temp file and renames it over the target.
func (q *Queue) save(entries []models.FailedExtraction) error {
	if entries == nil {
		entries = []models.FailedExtraction{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dead letter queue: %w", err)
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, q.path); err != nil {
		return fmt.Errorf("replace %s: %w", q.path, err)
	}
	return nil
}

func sortByExtractionTime(entries []models.FailedExtraction) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ExtractionTimeUtc.Before(entries[j].ExtractionTimeUtc)
	})
}
