package tile_test

import (
	"context"
	"errors"
	"sync"

	"patient-tile/internal/store"
)

// fakeStore 内存会话存储，仅用于单元测试
type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeStore) Set(ctx context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

var errStorageDisabled = errors.New("storage disabled")

// brokenStore 每次调用都失败
type brokenStore struct{ calls int }

func (b *brokenStore) Get(ctx context.Context, key string) (string, error) {
	b.calls++
	return "", errStorageDisabled
}

func (b *brokenStore) Set(ctx context.Context, key string, value string) error {
	b.calls++
	return errStorageDisabled
}

func (b *brokenStore) Remove(ctx context.Context, key string) error {
	b.calls++
	return errStorageDisabled
}
