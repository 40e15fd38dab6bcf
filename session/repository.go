package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"threadline/models"
)

var ErrNotFound = errors.New("session not found")

// Record is what survives a restart: identity and tokens, never the caches.
type Record struct {
	ID        string
	User      *models.User
	Tokens    Tokens
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository interface {
	Load(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepository keeps records for the lifetime of the process.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: map[string]Record{}}
}

func (r *MemoryRepository) Load(_ context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRepository) Save(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = *rec
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}
