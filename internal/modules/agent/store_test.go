package agent

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestStoreSeedUpsertsAgents(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	seed := []Agent{
		{ID: "agent-b", Name: "Youssef", Email: "y@binwise.test", Active: true},
		{ID: "agent-a", Name: "Amira", Email: "a@binwise.test", Active: true},
	}
	if err := store.Seed(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := store.Get(ctx, "agent-a")
	if err != nil || got.Name != "Amira" || got.Email != "a@binwise.test" || !got.Active {
		t.Fatalf("unexpected agent %+v %v", got, err)
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "agent-a" || list[1].ID != "agent-b" {
		t.Fatalf("expected both agents by name, got %+v", list)
	}

	// upsert refreshes an existing row in place
	if err := store.Upsert(ctx, Agent{ID: "agent-b", Name: "Youssef K", Email: "yk@binwise.test", Active: false}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err = store.Get(ctx, "agent-b")
	if err != nil || got.Name != "Youssef K" || got.Active {
		t.Fatalf("upsert did not refresh: %+v %v", got, err)
	}
	list, _ = store.List(ctx)
	if len(list) != 1 || list[0].ID != "agent-a" {
		t.Fatalf("inactive agent must leave the list, got %+v", list)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// testStore returns a PostgreSQL store, skipping when BINWISE_TEST_DSN is not set.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("BINWISE_TEST_DSN")
	if dsn == "" {
		t.Skip("BINWISE_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := createAgentsTable(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "DELETE FROM delivery_agents WHERE id LIKE 'agent-%'"); err != nil {
		t.Fatalf("clean agents: %v", err)
	}
	return NewStore(db)
}

// createAgentsTable runs the delivery_agents statement from the initial migration.
func createAgentsTable(ctx context.Context, db *pgxpool.Pool) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return os.ErrNotExist
		}
		dir = parent
	}
	f, err := os.Open(filepath.Join(dir, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	defer f.Close()

	var stmt strings.Builder
	capturing := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "CREATE TABLE IF NOT EXISTS delivery_agents") {
			capturing = true
		}
		if !capturing {
			continue
		}
		stmt.WriteString(line)
		stmt.WriteString("\n")
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if stmt.Len() == 0 {
		return errors.New("delivery_agents table not found in migration")
	}
	_, err = db.Exec(ctx, stmt.String())
	return err
}
