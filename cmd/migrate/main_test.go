package main

import (
	"sort"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	cases := []struct {
		filename string
		want     int64
		wantErr  bool
	}{
		{"001_ledger_events.up.sql", 1, false},
		{"012_tenant_archive.up.sql", 12, false},
		{"ledger_events.sql", 0, true},
		{"_no_prefix.sql", 0, true},
		{"abc_bad.sql", 0, true},
	}
	for _, tc := range cases {
		got, err := versionFromFile(tc.filename)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got version %d", tc.filename, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tc.filename, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: version = %d, want %d", tc.filename, got, tc.want)
		}
	}
}

func TestMigrationFilenames_sortInVersionOrder(t *testing.T) {
	// Zero-padded prefixes keep lexical order equal to version order, which
	// pendingFiles relies on.
	files := []string{"010_c.up.sql", "002_b.up.sql", "001_a.up.sql"}
	sort.Strings(files)

	var prev int64 = -1
	for _, f := range files {
		ver, err := versionFromFile(f)
		if err != nil {
			t.Fatal(err)
		}
		if ver <= prev {
			t.Fatalf("version %d out of order after %d", ver, prev)
		}
		prev = ver
	}
}
