package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_payments.sql", "CREATE TABLE payment ();")
	writeFile(t, dir, "001_core.sql", "CREATE TABLE episode ();")
	writeFile(t, dir, "010_indexes.sql", "CREATE INDEX i ON episode (id);")
	writeFile(t, dir, "notes.txt", "not a migration")
	writeFile(t, dir, "README.sql", "no numeric prefix")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("loaded %d migrations, want 3", len(migrations))
	}
	wantOrder := []int{1, 2, 10}
	for i, mig := range migrations {
		if mig.Version != wantOrder[i] {
			t.Errorf("migrations[%d].Version = %d, want %d", i, mig.Version, wantOrder[i])
		}
		if mig.SQL == "" {
			t.Errorf("migrations[%d] has empty SQL", i)
		}
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("first migration = %q", migrations[0].Name)
	}
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	m := NewMigrator(nil, "/nonexistent/migrations")
	if _, err := m.LoadMigrations(); err == nil {
		t.Error("LoadMigrations succeeded on a missing directory")
	}
}
