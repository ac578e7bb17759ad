package repo

import (
	"testing"

	"entgo.io/ent/dialect/sql/schema"
)

func findIndex(t *testing.T, table *schema.Table, name string) *schema.Index {
	t.Helper()
	for _, idx := range table.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	t.Fatalf("table %s has no index %s", table.Name, name)
	return nil
}

func TestSettlementsTable_OpenPeriodIndex(t *testing.T) {
	idx := findIndex(t, SettlementsTable, "settlement_open_period")

	if !idx.Unique {
		t.Error("settlement_open_period must be unique")
	}
	var cols []string
	for _, c := range idx.Columns {
		cols = append(cols, c.Name)
	}
	want := []string{"user_id", "settlement_type", "period_start", "period_end"}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("columns = %v, want %v", cols, want)
		}
	}
	if idx.Annotation == nil {
		t.Fatal("open period index has no partial predicate")
	}
	if got := idx.Annotation.Where; got != "status IN ('pending', 'approved')" {
		t.Errorf("index predicate = %q", got)
	}
}

func TestTables_Registered(t *testing.T) {
	seen := map[string]bool{}
	for _, tbl := range Tables {
		if seen[tbl.Name] {
			t.Errorf("table %s registered twice", tbl.Name)
		}
		seen[tbl.Name] = true
	}
	for _, name := range []string{"commission_rules", "revenue_records", "settlements"} {
		if !seen[name] {
			t.Errorf("table %s missing from the migration set", name)
		}
	}
}
