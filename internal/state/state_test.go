package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBalanceStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewBalanceStore(filepath.Join(dir, "nested", "hashes.json"))

	got, found, err := s.Load()
	if err != nil {
		t.Fatalf("Load on missing file returned error: %v", err)
	}
	if found || got != nil {
		t.Fatalf("expected first run, got found=%v %v", found, got)
	}

	want := Hashes{"key-a": "hash-a", "key-b": "hash-b"}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, found, err = s.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !found {
		t.Fatalf("expected stored hashes to be found")
	}
	if len(got) != 2 || got["key-a"] != "hash-a" || got["key-b"] != "hash-b" {
		t.Fatalf("hash mismatch: got %v want %v", got, want)
	}

	// Save replaces, it does not merge
	if err := s.Save(Hashes{"key-c": "hash-c"}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	got, _, _ = s.Load()
	if len(got) != 1 || got["key-c"] != "hash-c" {
		t.Fatalf("expected replaced hashes, got %v", got)
	}
	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}

func TestBalanceStoreEmptyFileIsFirstRun(t *testing.T) {
	p := filepath.Join(t.TempDir(), "hashes.json")
	if err := os.WriteFile(p, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, found, err := NewBalanceStore(p).Load()
	if err != nil || found {
		t.Fatalf("expected empty file to be a first run, got found=%v err=%v", found, err)
	}
}

func TestBalanceStoreCorruptFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "hashes.json")
	if err := os.WriteFile(p, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, found, err := NewBalanceStore(p).Load()
	if err == nil {
		t.Fatalf("expected error for corrupt file")
	}
	if found {
		t.Fatalf("corrupt file must not count as a previous run")
	}
}
