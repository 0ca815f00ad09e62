package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

// MemStore is a JSON-bytes backed store for tests. Round-tripping through
// JSON on every call mirrors the durable backends, so anything that would not
// survive serialization fails here too.
type MemStore struct {
	raw []byte

	// SaveErr, when set, makes the next Save fail. Tests use it to verify
	// that nothing is announced for state that was never persisted.
	SaveErr error
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Load(_ context.Context) (*vending.Dataset, error) {
	if m.raw == nil {
		return vending.NewDataset(), nil
	}
	var ds vending.Dataset
	if err := json.Unmarshal(m.raw, &ds); err != nil {
		return nil, fmt.Errorf("%w: %v", vending.ErrStorageCorrupt, err)
	}
	ds.Normalize()
	return &ds, nil
}

func (m *MemStore) Save(_ context.Context, ds *vending.Dataset) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("%w: %v", vending.ErrStorageWrite, err)
	}
	m.raw = raw
	return nil
}
