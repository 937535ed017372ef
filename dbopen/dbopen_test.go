package dbopen

import (
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMemory(t *testing.T) {
	// WHAT: An in-memory database opens and answers queries.
	// WHY: Every store test builds on this helper.
	db := OpenMemory(t)
	var one int
	if err := db.QueryRow("SELECT 1").Scan(&one); err != nil || one != 1 {
		t.Fatalf("select 1: %v (got %d)", err, one)
	}
}

func TestOpen_WithSchema(t *testing.T) {
	// WHAT: Inline schemas execute after pragmas.
	// WHY: Stores pass their DDL through the opener.
	db := OpenMemory(t, WithSchema("CREATE TABLE t (x INTEGER)"))
	if _, err := db.Exec("INSERT INTO t (x) VALUES (42)"); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestOpen_MkdirAll(t *testing.T) {
	// WHAT: WithMkdirAll creates missing parent directories.
	// WHY: Services point at db/ paths that may not exist on first boot.
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db, err := Open(path, WithMkdirAll())
	if err != nil {
		t.Fatalf("open with mkdir: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpen_ForeignKeysPragma(t *testing.T) {
	// WHAT: foreign_keys defaults to ON.
	// WHY: Referential integrity must hold without per-connection setup.
	db := OpenMemory(t)
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("pragma foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
