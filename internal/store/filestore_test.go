package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	coreconfig "github.com/MellowIQ3/zi-hanki/core/config"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

func TestFileStoreFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	fs := NewFileStore(path)

	ds, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ds.Machines) != 0 {
		t.Fatalf("machines = %d, want 0", len(ds.Machines))
	}
	// first load must have created the file
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("dataset file missing after first load: %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	fs := NewFileStore(path)
	ctx := context.Background()

	ds := vending.NewDataset()
	m := vending.NewMachine()
	m.Items["coffee"] = vending.Item{Stock: 3, Price: 300, Payload: "code", Position: 0}
	m.DisplayRefs = append(m.DisplayRefs, vending.DisplayRef{ChatID: -100, MessageID: 7})
	ds.Machines["lobby"] = m

	if err := fs.Save(ctx, ds); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := loaded.Machines["lobby"]
	if !ok {
		t.Fatal("machine lost in round trip")
	}
	if got.Items["coffee"] != m.Items["coffee"] {
		t.Fatalf("item = %+v, want %+v", got.Items["coffee"], m.Items["coffee"])
	}
	if len(got.DisplayRefs) != 1 || got.DisplayRefs[0].ChatID != -100 {
		t.Fatalf("display refs = %+v", got.DisplayRefs)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fs := NewFileStore(path)
	if _, err := fs.Load(context.Background()); !errors.Is(err, vending.ErrStorageCorrupt) {
		t.Fatalf("err = %v, want ErrStorageCorrupt", err)
	}
}

func TestOpenDriverSelection(t *testing.T) {
	st, err := Open(coreconfig.VendingConfig{
		StoreDriver: coreconfig.StoreDriverFile,
		DataFile:    filepath.Join(t.TempDir(), "d.json"),
	}, nil)
	if err != nil {
		t.Fatalf("open file driver: %v", err)
	}
	if _, ok := st.(*FileStore); !ok {
		t.Fatalf("store type = %T, want *FileStore", st)
	}
	if _, err := Open(coreconfig.VendingConfig{StoreDriver: coreconfig.StoreDriverPostgres}, nil); err == nil {
		t.Fatal("postgres driver without a connection must fail")
	}
	if _, err := Open(coreconfig.VendingConfig{StoreDriver: "redis"}, nil); err == nil {
		t.Fatal("unknown driver must fail")
	}
}
