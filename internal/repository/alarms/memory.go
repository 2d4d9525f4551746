package alarms

import (
	"sync"
	"time"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
)

// Repository defines the operations the lifecycle engine relies on.
type Repository interface {
	Get(id string) (*domain.Record, bool)
	Put(record *domain.Record)
	RemoveOlderThan(retention time.Duration, now time.Time) int
	Len() int
}

// MemoryRepository keeps alarm records in a map.
// The lifecycle engine is its only writer; the lock lets metrics and health
// probes read it from their own goroutines.
type MemoryRepository struct {
	// records holds one record per alarm identifier.
	records map[string]*domain.Record
	// mu protects records.
	mu sync.RWMutex
}

// NewMemoryRepository creates an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*domain.Record),
	}
}

// Get returns a copy of the record for id.
func (r *MemoryRepository) Get(id string) (*domain.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, false
	}

	return record.Clone(), true
}

// Put stores a copy of record, replacing any previous record with the same ID.
func (r *MemoryRepository) Put(record *domain.Record) {
	if record == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.ID] = record.Clone()
}

// RemoveOlderThan evicts every record whose last send is more than retention
// before now and returns how many were evicted.
func (r *MemoryRepository) RemoveOlderThan(retention time.Duration, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0

	for id, record := range r.records {
		if now.Sub(record.LastSentAt()) > retention {
			delete(r.records, id)

			removed++
		}
	}

	return removed
}

// Len returns the number of tracked alarms.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

// CountByStatus returns the number of tracked alarms per status.
func (r *MemoryRepository) CountByStatus() map[domain.Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.Status]int, 2)
	for _, record := range r.records {
		counts[record.Status()]++
	}

	return counts
}
