package core

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/live-labs/fastmem/internal/crypto"
	"github.com/live-labs/fastmem/internal/storage"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffResult describes how the live store differs from a snapshot
type DiffResult struct {
	Added   []string // Keys present in the live store only
	Removed []string // Keys present in the snapshot only
	Changed []string // Keys whose decrypted values differ
	Text    string   // Human-readable diff of the changed values
}

// HasChanges reports whether any difference was found
func (r *DiffResult) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Changed) > 0
}

// DiffSnapshot compares the live store against the named snapshot,
// decrypting both sides with the current key. Snapshots of one storage
// always share its salt, so the installed key opens both. Requires an
// unlocked store with a key installed.
func (s *Storage) DiffSnapshot(snapshot string) (*DiffResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return nil, ErrLocked
	}
	if s.key == nil {
		return nil, ErrNoPassword
	}

	path, err := s.snapshotPath(snapshot)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to access snapshot: %w", err)
	}

	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	state, err := db.ReadState()
	if err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	enc := crypto.NewEncryptor(s.key)
	if state.Canary != nil && !verifyCanary(enc, state.Canary) {
		// Snapshot was written under a different password
		return nil, ErrInvalidPassword
	}

	names := make(map[string]struct{}, len(s.entries)+len(state.Entries))
	for key := range s.entries {
		names[key] = struct{}{}
	}
	for key := range state.Entries {
		names[key] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for key := range names {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	result := &DiffResult{}
	dmp := diffmatchpatch.New()
	var text strings.Builder

	for _, key := range sorted {
		live, inLive := s.entries[key]
		old, inSnap := state.Entries[key]

		switch {
		case inLive && !inSnap:
			result.Added = append(result.Added, key)
			fmt.Fprintf(&text, "added: %s\n", key)
		case !inLive && inSnap:
			result.Removed = append(result.Removed, key)
			fmt.Fprintf(&text, "removed: %s\n", key)
		default:
			livePlain, err := enc.Decrypt(live.Nonce, live.Ciphertext)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %q", ErrCorruptData, key)
			}
			oldPlain, err := enc.Decrypt(old.Nonce, old.Ciphertext)
			if err != nil {
				crypto.ClearBytes(livePlain)
				return nil, fmt.Errorf("%w: snapshot entry %q", ErrCorruptData, key)
			}
			if Equal(livePlain, oldPlain) {
				crypto.ClearBytes(livePlain)
				crypto.ClearBytes(oldPlain)
				continue
			}
			result.Changed = append(result.Changed, key)
			diffs := dmp.DiffMain(string(oldPlain), string(livePlain), false)
			fmt.Fprintf(&text, "changed: %s\n%s\n", key, dmp.DiffPrettyText(diffs))
			crypto.ClearBytes(livePlain)
			crypto.ClearBytes(oldPlain)
		}
	}

	result.Text = text.String()
	return result, nil
}
