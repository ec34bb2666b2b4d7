package camera

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the boundary the relay supervisor consumes: a lookup of camera
// configuration and a write-through of the camera's online flag.
type Store interface {
	GetCameraConfig(ctx context.Context, id string) (Config, error)
	SetCameraOnlineStatus(ctx context.Context, id string, online bool, at time.Time) error
}

// Repository extends Store with the administrative operations used by the CLI.
type Repository interface {
	Store
	SaveCameraConfig(ctx context.Context, cfg Config) error
	ListCameraConfigs(ctx context.Context) ([]Config, error)
	DeleteCameraConfig(ctx context.Context, id string) error
}

// MemoryStore is an in-memory, concurrency-safe implementation of Repository.
type MemoryStore struct {
	mu      sync.RWMutex
	cameras map[string]Config
}

// NewMemoryStore returns a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cameras: make(map[string]Config),
	}
}

// GetCameraConfig implements Store.GetCameraConfig.
func (s *MemoryStore) GetCameraConfig(_ context.Context, id string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.cameras[id]
	if !ok {
		return Config{}, ErrNotFound
	}
	return cfg, nil
}

// SetCameraOnlineStatus implements Store.SetCameraOnlineStatus.
func (s *MemoryStore) SetCameraOnlineStatus(_ context.Context, id string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.cameras[id]
	if !ok {
		return ErrNotFound
	}
	cfg.Online = online
	cfg.LastStatusAt = &at
	s.cameras[id] = cfg
	return nil
}

// SaveCameraConfig implements Repository.SaveCameraConfig. Existing records
// are replaced.
func (s *MemoryStore) SaveCameraConfig(_ context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if prev, ok := s.cameras[cfg.ID]; ok {
		cfg.CreatedAt = prev.CreatedAt
	} else {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	s.cameras[cfg.ID] = cfg
	return nil
}

// ListCameraConfigs implements Repository.ListCameraConfigs, ordered by id.
func (s *MemoryStore) ListCameraConfigs(_ context.Context) ([]Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Config, 0, len(s.cameras))
	for _, cfg := range s.cameras {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteCameraConfig implements Repository.DeleteCameraConfig.
func (s *MemoryStore) DeleteCameraConfig(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cameras[id]; !ok {
		return ErrNotFound
	}
	delete(s.cameras, id)
	return nil
}
