package migrations

import (
	"strings"
	"testing"
)

func TestLoadEntries_LexicographicOrder(t *testing.T) {
	entries, err := loadEntries()
	if err != nil {
		t.Fatalf("loadEntries: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("got %d entries, want at least 2", len(entries))
	}
	if entries[0].version != "000_migrations_table.sql" {
		t.Errorf("first migration = %q, want 000_migrations_table.sql", entries[0].version)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].version >= entries[i].version {
			t.Errorf("entries out of order: %q before %q", entries[i-1].version, entries[i].version)
		}
	}
}

func TestLoadEntries_SamplesSchema(t *testing.T) {
	entries, err := loadEntries()
	if err != nil {
		t.Fatalf("loadEntries: %v", err)
	}

	var found bool
	for _, e := range entries {
		if !strings.Contains(e.sql, "CREATE TABLE IF NOT EXISTS samples") {
			continue
		}
		found = true
		for _, want := range []string{"GEOMETRY(POINT, 4326)", "USING GIST (geom)", "TIMESTAMPTZ", "gen_random_uuid()"} {
			if !strings.Contains(e.sql, want) {
				t.Errorf("%s: missing %q", e.version, want)
			}
		}
	}
	if !found {
		t.Fatal("no migration creates the samples table")
	}
}
