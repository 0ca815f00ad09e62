package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/MellowIQ3/zi-hanki/core/logger"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
	"log/slog"
)

// PGStore keeps the dataset as a single jsonb row, preserving the wholesale
// load/save contract of the file backend while gaining durable storage.
type PGStore struct {
	db *sqlx.DB
}

func NewPGStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

func (p *PGStore) Load(ctx context.Context) (*vending.Dataset, error) {
	var raw []byte
	err := p.db.GetContext(ctx, &raw, `SELECT data FROM vending_dataset WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		ds := vending.NewDataset()
		if err := p.Save(ctx, ds); err != nil {
			return nil, err
		}
		logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "dataset.init",
			slog.String("backend", "postgres"))
		return ds, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select dataset: %v", vending.ErrStorageWrite, err)
	}
	var ds vending.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("%w: dataset row: %v", vending.ErrStorageCorrupt, err)
	}
	ds.Normalize()
	return &ds, nil
}

func (p *PGStore) Save(ctx context.Context, ds *vending.Dataset) error {
	raw, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", vending.ErrStorageWrite, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO vending_dataset (id, data, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		raw,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert dataset: %v", vending.ErrStorageWrite, err)
	}
	return nil
}
