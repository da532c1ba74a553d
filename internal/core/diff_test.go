package core

import (
	"errors"
	"strings"
	"testing"
)

func TestDiffSnapshot(t *testing.T) {
	st := newTestStorage(t)

	if err := st.Set("unchanged", []byte("same")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Set("changed", []byte("old value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Set("removed", []byte("gone")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Save("before"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := st.Set("changed", []byte("new value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Delete("removed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := st.Set("added", []byte("fresh")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := st.DiffSnapshot("before")
	if err != nil {
		t.Fatalf("DiffSnapshot failed: %v", err)
	}
	if !result.HasChanges() {
		t.Fatal("Changes should be detected")
	}
	if len(result.Added) != 1 || result.Added[0] != "added" {
		t.Errorf("Unexpected added keys: %v", result.Added)
	}
	if len(result.Removed) != 1 || result.Removed[0] != "removed" {
		t.Errorf("Unexpected removed keys: %v", result.Removed)
	}
	if len(result.Changed) != 1 || result.Changed[0] != "changed" {
		t.Errorf("Unexpected changed keys: %v", result.Changed)
	}
	if !strings.Contains(result.Text, "changed") {
		t.Errorf("Diff text should mention the changed key: %q", result.Text)
	}
}

func TestDiffSnapshotNoChanges(t *testing.T) {
	st := newTestStorage(t)

	if err := st.Set("username", []byte("johndoe")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Save("same"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	result, err := st.DiffSnapshot("same")
	if err != nil {
		t.Fatalf("DiffSnapshot failed: %v", err)
	}
	if result.HasChanges() {
		t.Errorf("No changes expected, got %+v", result)
	}
}

func TestDiffSnapshotErrors(t *testing.T) {
	st := newTestStorage(t)

	if _, err := st.DiffSnapshot("missing"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}

	if err := st.Save("b1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	st.Lock()
	if _, err := st.DiffSnapshot("b1"); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}
}

func TestDiffSnapshotWithoutKey(t *testing.T) {
	dir := t.TempDir()
	st := New("test", dir)
	defer st.Close()

	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := st.DiffSnapshot(DefaultSnapshot); !errors.Is(err, ErrNoPassword) {
		t.Errorf("Expected ErrNoPassword, got %v", err)
	}
}
