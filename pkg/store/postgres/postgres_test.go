package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"ledger-core/pkg/store"
)

func setupTestPostgres(t *testing.T) *Layer {
	t.Helper()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	config := DefaultConfig()
	config.DSN = dsn
	config.Table = "documents_test"

	p, err := New(config)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(func() {
		p.db.Exec("DROP TABLE IF EXISTS documents_test")
		p.Close()
	})
	return p
}

func TestConfig_ConnString(t *testing.T) {
	c := DefaultConfig()
	got := c.ConnString()
	for _, want := range []string{"host=localhost", "port=5432", "dbname=ledger", "sslmode=disable"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in %q", want, got)
		}
	}

	c.DSN = "postgres://u:p@db/ledger"
	if c.ConnString() != c.DSN {
		t.Errorf("Expected DSN to win, got %q", c.ConnString())
	}
}

func TestLayer_SetGetDelete(t *testing.T) {
	p := setupTestPostgres(t)
	ctx := context.Background()

	if _, err := p.Get(ctx, "ledger:users"); !store.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := p.Set(ctx, "ledger:users", []byte(`[]`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := p.Set(ctx, "ledger:users", []byte(`[{"id":"a"}]`), 0); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := p.Get(ctx, "ledger:users")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `[{"id":"a"}]` {
		t.Errorf("Expected upserted value, got %s", got)
	}

	if err := p.Delete(ctx, "ledger:users"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := p.Get(ctx, "ledger:users"); !store.IsNotFound(err) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestLayer_Expiry(t *testing.T) {
	p := setupTestPostgres(t)
	ctx := context.Background()

	if err := p.Set(ctx, "ledger:session", []byte(`{}`), time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := p.Get(ctx, "ledger:session"); !store.IsNotFound(err) {
		t.Errorf("Expected expired row to miss, got %v", err)
	}
	if n, err := p.Purge(ctx); err != nil || n != 1 {
		t.Errorf("Expected one purged row, got %d (%v)", n, err)
	}
}
