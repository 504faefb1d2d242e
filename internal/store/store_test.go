package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	// Verify the database file doesn't exist yet
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := setupTestStore(t)

	for _, table := range []string{"sessions", "settings"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	var idx string
	if err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_sessions_updated_at'",
	).Scan(&idx); err != nil {
		t.Errorf("index should exist after migrations: %v", err)
	}
}

func TestNewStore_SchemaVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	version, err := s.SchemaVersion()
	if err != nil || version != len(migrations) {
		t.Errorf("SchemaVersion() = %d, %v, want %d", version, err, len(migrations))
	}

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("journal_mode = %q, %v, want wal", mode, err)
	}

	// A database from a newer build is refused.
	if _, err := s.DB().Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if _, err := New(dbPath); err == nil {
		t.Error("New() should fail on a newer schema version")
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Sessions().Write(ctx, "abc", []byte(`[]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	data, err := s.Sessions().Read(ctx, "abc")
	if err != nil || string(data) != `[]` {
		t.Errorf("Read() after reopen = %q, %v", data, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	// After closing, DB operations should fail
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestSessionRepository_WriteRead(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Sessions()
	ctx := context.Background()

	if err := repo.Write(ctx, "s1", []byte(`[{"inputs":[],"labels":[1]}]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// Writing the same id replaces the data.
	if err := repo.Write(ctx, "s1", []byte(`[]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := repo.Read(ctx, "s1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != `[]` {
		t.Errorf("Read() = %q, want []", data)
	}

	if _, err := repo.Read(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_List(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Sessions()
	ctx := context.Background()

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() on empty store error = %v, want ErrNotFound", err)
	}

	repo.Write(ctx, "a", []byte(`[]`))
	repo.Write(ctx, "b", []byte(`[1]`))

	sessions, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	sizes := map[string]int{}
	for _, sess := range sessions {
		sizes[sess.ID] = sess.Size
	}
	if sizes["a"] != 2 || sizes["b"] != 3 {
		t.Errorf("unexpected sizes %v", sizes)
	}

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != sessions[0].ID {
		t.Errorf("Latest() = %q, List()[0] = %q", latest.ID, sessions[0].ID)
	}
}

func TestSettingsRepository(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Settings()
	ctx := context.Background()

	if _, err := repo.Get(ctx, SettingLabel); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on empty store error = %v, want ErrNotFound", err)
	}

	repo.Set(ctx, SettingLabel, "1,0,0")
	repo.Set(ctx, SettingLabel, "0,1,0")

	got, err := repo.Get(ctx, SettingLabel)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "0,1,0" {
		t.Errorf("Get() = %q, want 0,1,0", got)
	}
}
