package store

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemStore struct {
	Data *xsync.MapOf[string, []byte]
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		Data: xsync.NewMapOf[string, []byte](),
	}
}

func memKey(collection, key string) string {
	return collection + "/" + key
}

func (s *MemStore) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	v, ok := s.Data.Load(memKey(collection, key))
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemStore) Put(ctx context.Context, collection, key string, val []byte) error {
	cp := make([]byte, len(val))
	copy(cp, val)
	s.Data.Store(memKey(collection, key), cp)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, collection, key string) error {
	s.Data.Delete(memKey(collection, key))
	return nil
}
