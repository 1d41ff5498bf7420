package storagesvc

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
)

type memoryObject struct {
	content     []byte
	contentType string
}

// MemoryStorage keeps objects in memory; downloads are streamed through the API.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

var _ core.ObjectStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject)}
}

func (s *MemoryStorage) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{content: content, contentType: contentType}
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStorage) DownloadURL(context.Context, string, string, time.Duration) (string, error) {
	return "", nil
}

// Len returns the number of stored objects.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
