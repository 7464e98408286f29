package memory

import (
	"context"
	"io"
	"strings"
	"sync"

	"rentalcore/internal/app/policies"
	"rentalcore/internal/pkg/errs"
)

// ObjectStore keeps uploads in memory and hands out memory:// URLs.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]StoredObject
}

type StoredObject struct {
	ContentType string
	Data        []byte
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]StoredObject)}
}

func (s *ObjectStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" || reader == nil {
		return "", errs.New("memory: object key and reader are required")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", errs.Wrap(err, "memory: read upload")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = StoredObject{ContentType: contentType, Data: data}
	return "memory://" + key, nil
}

// Object returns what was stored under key.
func (s *ObjectStore) Object(key string) (StoredObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys lists every stored key.
func (s *ObjectStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

var _ policies.ObjectStore = (*ObjectStore)(nil)
