package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test file %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadMigrations(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"002_prescription.sql": "CREATE TABLE prescription (id BIGINT PRIMARY KEY);",
		"001_segment.sql":      "CREATE TABLE segment (id INT PRIMARY KEY);",
		"010_notes.sql":        "CREATE TABLE clinical_note (id BIGINT PRIMARY KEY);",
		"README.md":            "ignored",
		"seed.sql":             "ignored, no numeric prefix",
		"abc_outlier.sql":      "ignored, prefix is not a number",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	wantVersions := []int{1, 2, 10}
	for i, v := range wantVersions {
		if migrations[i].Version != v {
			t.Errorf("migrations[%d].Version = %d, want %d", i, migrations[i].Version, v)
		}
	}
	if migrations[0].Name != "001_segment.sql" {
		t.Errorf("expected name 001_segment.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE segment (id INT PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_a.sql": "SELECT 1;",
		"001_b.sql": "SELECT 2;",
	})
	if _, err := NewMigrator(nil, dir).LoadMigrations(); err == nil {
		t.Fatal("expected error for duplicate migration version")
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	_, err := NewMigrator(nil, filepath.Join(t.TempDir(), "missing")).LoadMigrations()
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := map[int]time.Time{1: time.Now(), 3: time.Now()}

	pending := Pending(migrations, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("expected only version 2 pending, got %+v", pending)
	}
	if got := Pending(migrations, nil); len(got) != 3 {
		t.Errorf("expected all pending with no applied versions, got %d", len(got))
	}
}

func TestMigratorFor_Scope(t *testing.T) {
	if m := MigratorFor(nil, "/m", PublicSchema); m.dir != filepath.Join("/m", ScopePublic) {
		t.Errorf("public schema should use public dir, got %s", m.dir)
	}
	if m := MigratorFor(nil, "/m", "hospital_a"); m.dir != filepath.Join("/m", ScopeTenant) {
		t.Errorf("hospital schema should use tenant dir, got %s", m.dir)
	}
}
