// Package store provides persistence backends for the vending dataset. Every
// backend loads and saves the dataset wholesale; there are no partial writes.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/MellowIQ3/zi-hanki/core/config"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

// Open selects a backend from config. The postgres driver requires an open
// connection from bootstrap; the file driver ignores db.
func Open(cfg coreconfig.VendingConfig, db *sqlx.DB) (vending.Store, error) {
	switch cfg.StoreDriver {
	case coreconfig.StoreDriverFile:
		return NewFileStore(cfg.DataFile), nil
	case coreconfig.StoreDriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("store: postgres driver selected but no database connection")
		}
		return NewPGStore(db), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.StoreDriver)
	}
}
