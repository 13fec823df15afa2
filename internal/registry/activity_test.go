package registry

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestRegisterComponentUpsert(t *testing.T) {
	d := openTestDB(t)

	if err := d.RegisterComponent("comp-1", "OMX.test.source"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := d.RegisterComponent("comp-1", "OMX.test.source.renamed"); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	var name string
	if err := d.db.QueryRow(`SELECT name FROM components WHERE id = ?`, "comp-1").Scan(&name); err != nil {
		t.Fatalf("query: %v", err)
	}
	if name != "OMX.test.source.renamed" {
		t.Fatalf("expected upsert to replace the name, got %q", name)
	}
}

func TestPortRegistrationRoundTrip(t *testing.T) {
	d := openTestDB(t)
	d.RegisterComponent("comp-2", "OMX.test.filter")

	for _, r := range []PortRegistration{
		{ComponentID: "comp-2", PortIndex: 0, Direction: "input", Domain: "audio"},
		{ComponentID: "comp-2", PortIndex: 1, Direction: "output", Domain: "audio"},
	} {
		if err := d.RecordPortRegistration(r); err != nil {
			t.Fatalf("record port: %v", err)
		}
	}

	got, err := d.ListPortRegistrations("comp-2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ports, got %d", len(got))
	}
	if got[0].PortIndex != 0 || got[1].PortIndex != 1 {
		t.Fatalf("expected ports ordered by index, got %+v", got)
	}
}

func TestCommandLogOrderingAndLimit(t *testing.T) {
	d := openTestDB(t)
	d.RegisterComponent("comp-3", "OMX.test.sink")

	for i := 0; i < 5; i++ {
		if err := d.RecordCommandComplete(CommandRecord{ComponentID: "comp-3", Command: "StateSet", Port: -1}); err != nil {
			t.Fatalf("record command %d: %v", i, err)
		}
	}

	got, err := d.ListCommandLog("comp-3", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected limit to cap at 3 rows, got %d", len(got))
	}
}

func TestMarkConsumedRecord(t *testing.T) {
	d := openTestDB(t)
	d.RegisterComponent("comp-4", "OMX.test.mixer")

	if err := d.RecordMarkConsumed(MarkRecord{ComponentID: "comp-4", Port: 1, TargetComponent: "OMX.test.sink"}); err != nil {
		t.Fatalf("record mark: %v", err)
	}

	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM mark_log WHERE component_id = ?`, "comp-4").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 mark_log row, got %d", count)
	}
}
