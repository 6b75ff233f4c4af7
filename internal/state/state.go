// Package state persists the per-account balance fingerprints used to detect
// balance changes between runs.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Hashes maps an account key to the fingerprint of its last seen balance.
type Hashes map[string]string

// BalanceStore is a JSON file holding the Hashes of the previous run.
type BalanceStore struct {
	mu   sync.Mutex
	path string
}

// NewBalanceStore returns a store backed by path. The file is created on the
// first Save.
func NewBalanceStore(path string) *BalanceStore {
	return &BalanceStore{path: path}
}

// Path returns the backing file.
func (s *BalanceStore) Path() string { return s.path }

// Load returns the stored hashes. found is false when there is no previous
// run: the file is missing or empty. A corrupt file is reported as an error
// together with found=false so callers can treat it as a first run.
func (s *BalanceStore) Load() (Hashes, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load balance hashes: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}
	out := make(Hashes)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("unmarshal balance hashes: %w", err)
	}
	return out, true, nil
}

// Save replaces the stored hashes with h.
func (s *BalanceStore) Save(h Hashes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal balance hashes: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir balance hash dir: %w", err)
		}
	}
	// written next to the target and renamed into place
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o640); err != nil {
		return fmt.Errorf("write balance hashes: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace balance hashes: %w", err)
	}
	return nil
}
