package queue

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/internal/models"
	"github.com/trailmark/geotrack-agent/pkg/file"
)

// DeliveryQueue is a bounded, thread-safe FIFO of location fixes awaiting
// delivery. Reads run concurrently; every mutation is exclusive and leaves
// the collection in a consistent state. When the queue is full, the oldest
// record is evicted to admit a new one, a deliberate lossy degrade.
type DeliveryQueue struct {
	mu      sync.RWMutex
	records []models.PendingLocationRecord

	maxSize    int
	filePath   string
	fileClient file.FileOperations
	logger     zerolog.Logger
}

// NewDeliveryQueue creates a queue bounded at maxSize records, backed by the
// JSON file at filePath. Any previously persisted queue that fails to parse
// is treated as empty rather than aborting.
func NewDeliveryQueue(maxSize int, filePath string, fileClient file.FileOperations, logger zerolog.Logger) *DeliveryQueue {
	q := &DeliveryQueue{
		maxSize:    maxSize,
		filePath:   filePath,
		fileClient: fileClient,
		logger:     logger,
	}
	q.load()
	return q
}

// load restores the persisted queue from disk.
func (q *DeliveryQueue) load() {
	if q.filePath == "" {
		return
	}

	exists, err := q.fileClient.IsFileExists(q.filePath)
	if err != nil || !exists {
		return
	}

	var records []models.PendingLocationRecord
	if err := q.fileClient.ReadJsonFile(q.filePath, &records); err != nil {
		q.logger.Warn().
			Err(err).
			Str("path", q.filePath).
			Msg("Persisted delivery queue is unreadable, starting empty")
		return
	}

	if q.maxSize > 0 && len(records) > q.maxSize {
		records = records[len(records)-q.maxSize:]
	}
	q.records = records

	q.logger.Info().
		Int("pending", len(q.records)).
		Msg("Delivery queue restored")
}

// persist writes the current queue to disk. Callers must hold the write lock.
func (q *DeliveryQueue) persist() {
	if q.filePath == "" {
		return
	}
	if err := q.fileClient.WriteJsonFile(q.filePath, q.records); err != nil {
		q.logger.Error().
			Err(err).
			Str("path", q.filePath).
			Msg("Failed to persist delivery queue")
	}
}

// Add appends a record, evicting the oldest record when the queue is at
// capacity.
func (q *DeliveryQueue) Add(record models.PendingLocationRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && len(q.records) >= q.maxSize {
		evicted := q.records[0]
		q.records = q.records[1:]
		q.logger.Warn().
			Str("evicted_id", evicted.ID).
			Int("max_size", q.maxSize).
			Msg("Delivery queue full, evicting oldest record")
	}

	q.records = append(q.records, record)
	q.persist()
}

// Remove deletes the record with the given id, reporting whether it existed.
func (q *DeliveryQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, record := range q.records {
		if record.ID == id {
			q.records = append(q.records[:i], q.records[i+1:]...)
			q.persist()
			return true
		}
	}
	return false
}

// IncrementRetry bumps the retry count of the record with the given id,
// reporting whether it existed.
func (q *DeliveryQueue) IncrementRetry(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.records {
		if q.records[i].ID == id {
			q.records[i].RetryCount++
			q.persist()
			return true
		}
	}
	return false
}

// RemoveExceedingRetries drops every record whose retry count has reached
// maxRetries and returns how many were dropped. Each drop is a terminal,
// non-retryable loss for that one record.
func (q *DeliveryQueue) RemoveExceedingRetries(maxRetries int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.records[:0]
	dropped := 0
	for _, record := range q.records {
		if record.RetryCount >= maxRetries {
			dropped++
			q.logger.Warn().
				Str("id", record.ID).
				Int("retry_count", record.RetryCount).
				Msg("Dropping record after exhausting retries")
			continue
		}
		kept = append(kept, record)
	}

	if dropped > 0 {
		q.records = kept
		q.persist()
	}
	return dropped
}

// Clear empties the queue.
func (q *DeliveryQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.records = nil
	q.persist()
}

// Snapshot returns a copy of the pending records in FIFO order.
func (q *DeliveryQueue) Snapshot() []models.PendingLocationRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]models.PendingLocationRecord, len(q.records))
	copy(out, q.records)
	return out
}

// Len returns the number of pending records.
func (q *DeliveryQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.records)
}
