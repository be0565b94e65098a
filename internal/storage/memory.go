package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStorage keeps every record in process memory. All operations are
// serialized by a single RWMutex, which makes it the storage engine's own
// isolation mechanism: readers proceed concurrently, writers never interleave.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*URLRecord
	seq     int64
}

func CreateMemoryStorage() (*MemoryStorage, error) {
	return &MemoryStorage{
		records: make(map[string]*URLRecord),
	}, nil
}

// Write inserts a new active record. The short code must not be used by any
// record, including soft-deleted ones.
func (m *MemoryStorage) Write(_ context.Context, record URLRecord) (*URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.Short]; exists {
		return nil, ErrConflict
	}

	m.seq++
	r := record
	r.ID = m.seq
	r.Clicks = 0
	r.IsActive = true
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	m.records[r.Short] = &r

	res := r
	return &res, nil
}

func (m *MemoryStorage) FindByShort(_ context.Context, short string) (*URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[short]
	if !ok || !r.IsActive {
		return nil, ErrNotFound
	}

	res := *r
	return &res, nil
}

// Exists reports whether any record, active or not, uses the short code.
func (m *MemoryStorage) Exists(_ context.Context, short string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.records[short]
	return ok, nil
}

func (m *MemoryStorage) UpdateOriginal(_ context.Context, short string, original string) (*URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[short]
	if !ok || !r.IsActive {
		return nil, ErrNotFound
	}
	r.Original = original

	res := *r
	return &res, nil
}

// Delete flips the active flag of the record. A second delete of the same code
// reports ErrNotFound.
func (m *MemoryStorage) Delete(_ context.Context, short string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[short]
	if !ok || !r.IsActive {
		return ErrNotFound
	}
	r.IsActive = false

	return nil
}

// IncrementClicks adds one click to an active record and silently ignores
// unknown or inactive codes.
func (m *MemoryStorage) IncrementClicks(_ context.Context, short string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[short]; ok && r.IsActive {
		r.Clicks++
	}

	return nil
}

// ReadActive returns active records, newest first.
func (m *MemoryStorage) ReadActive(_ context.Context) ([]URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]URLRecord, 0, len(m.records))
	for _, r := range m.records {
		if r.IsActive {
			records = append(records, *r)
		}
	}

	sortNewestFirst(records)
	return records, nil
}

func (m *MemoryStorage) PingContext(_ context.Context) error {
	return errors.ErrUnsupported
}

func (m *MemoryStorage) Close() error {
	return nil
}

// snapshot returns a copy of the record regardless of its active flag.
func (m *MemoryStorage) snapshot(short string) (URLRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[short]
	if !ok {
		return URLRecord{}, false
	}
	return *r, true
}

// restore puts a record back as-is. It is used to replay a storage file and to
// roll back a mutation whose persistence failed.
func (m *MemoryStorage) restore(r URLRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := r
	m.records[r.Short] = &rec
	if r.ID > m.seq {
		m.seq = r.ID
	}
}

func (m *MemoryStorage) remove(short string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, short)
}

func sortNewestFirst(records []URLRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
