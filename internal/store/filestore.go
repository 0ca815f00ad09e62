package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MellowIQ3/zi-hanki/core/logger"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
	"log/slog"
)

// FileStore persists the dataset as a single pretty-printed JSON file.
// Saves go through a temp file in the same directory followed by a rename,
// so a crash mid-write never corrupts the previous dataset.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the dataset. A missing file is a first run: an empty dataset is
// persisted immediately so the file exists from then on.
func (f *FileStore) Load(ctx context.Context) (*vending.Dataset, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		ds := vending.NewDataset()
		if err := f.Save(ctx, ds); err != nil {
			return nil, err
		}
		logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "dataset.init",
			slog.String("path", f.path))
		return ds, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", vending.ErrStorageWrite, f.path, err)
	}
	var ds vending.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", vending.ErrStorageCorrupt, f.path, err)
	}
	ds.Normalize()
	return &ds, nil
}

// Save writes the full dataset atomically.
func (f *FileStore) Save(_ context.Context, ds *vending.Dataset) error {
	raw, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", vending.ErrStorageWrite, err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: temp file in %s: %v", vending.ErrStorageWrite, dir, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", vending.ErrStorageWrite, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", vending.ErrStorageWrite, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", vending.ErrStorageWrite, f.path, err)
	}
	return nil
}
