package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRingBufferEvictionByCount(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0)
	cl := s.GetOrCreate("comp-1")

	for i := 0; i < maxEntries+100; i++ {
		cl.Append(Record{Kind: KindCommandComplete, Port: i})
	}

	entries := cl.Read(time.Time{}, 0)
	if len(entries) != maxEntries {
		t.Fatalf("expected %d entries, got %d", maxEntries, len(entries))
	}
}

func TestFilePersistenceAndSegmentRotation(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 2048)
	cl := s.GetOrCreate("comp-2")

	for i := 0; i < 200; i++ {
		cl.Append(Record{Kind: KindError, Detail: "padding to force a rotation"})
	}

	data, err := os.ReadFile(filepath.Join(dir, "comp-2.ndjson"))
	if err != nil {
		t.Fatalf("read active segment: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected active segment to have content")
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "comp-2.ndjson.gz.*"))
	if len(matches) == 0 {
		t.Fatalf("expected at least one rotated, gzip-compressed segment")
	}
}

func TestSubscribeReceivesLiveAppends(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0)
	cl := s.GetOrCreate("comp-3")

	cl.Append(Record{Kind: KindMark, Detail: "before subscribe"})

	ch, existing, unsub := cl.Subscribe()
	defer unsub()
	if len(existing) != 1 {
		t.Fatalf("expected one buffered entry in snapshot, got %d", len(existing))
	}

	cl.Append(Record{Kind: KindFillBufferDone, Port: 3})

	select {
	case r := <-ch:
		if r.Kind != KindFillBufferDone || r.Port != 3 {
			t.Fatalf("unexpected record delivered: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber did not receive the live append")
	}
}

func TestRemoveClosesLog(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0)
	cl := s.GetOrCreate("comp-4")
	ch, _, _ := cl.Subscribe()

	s.Remove("comp-4")

	if _, open := <-ch; open {
		t.Fatalf("expected subscriber channel to be closed on Remove")
	}
	if s.Get("comp-4") != nil {
		t.Fatalf("expected store to forget the component after Remove")
	}
}
