package store_test

import (
	"context"
	"sync"
	"time"

	"smartchair/internal/models"
	"smartchair/internal/store"
)

// fakeKVStore 仅用于单元测试（内存 KV + TTL）
type fakeKVStore struct {
	mu   sync.Mutex
	data map[string]fakeKVItem
}

type fakeKVItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{
		data: make(map[string]fakeKVItem),
	}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.data[key]
	if !ok {
		return "", store.ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", store.ErrCacheMiss
	}
	return item.value, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, expires: exp}
	return nil
}

func (f *fakeKVStore) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

// memoryBackend 内存持久化后端，可注入错误与延迟
type memoryBackend struct {
	mu      sync.Mutex
	loaded  []models.TelemetryEntry
	loadErr error
	saved   []models.TelemetryEntry
	err     error
	delay   time.Duration
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) Load(ctx context.Context) ([]models.TelemetryEntry, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return append([]models.TelemetryEntry{}, b.loaded...), nil
}

func (b *memoryBackend) Persist(ctx context.Context, entry models.TelemetryEntry, snapshot []models.TelemetryEntry) error {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, entry)
	return nil
}

func (b *memoryBackend) savedCopy() []models.TelemetryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.TelemetryEntry{}, b.saved...)
}
