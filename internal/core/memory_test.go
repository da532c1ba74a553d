package core

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/live-labs/fastmem/internal/storage"
)

// newTestStorage creates an initialized storage with the password
// "test123" set
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dir := t.TempDir()
	st := New("test", dir)
	t.Cleanup(st.Close)

	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := st.SetPassword([]byte("test123")); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	return st
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	st := New("test", dir)
	defer st.Close()

	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Init again should fail
	if err := st.Init(); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}

	// Default snapshot file should exist
	path := filepath.Join(dir, "test", DefaultSnapshot+SnapshotExt)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Default snapshot should exist: %v", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	st := newTestStorage(t)

	value := []byte("johndoe")
	if err := st.Set("username", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := st.Get("username")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Value mismatch: got %q, want %q", got, value)
	}

	// Overwrite
	if err := st.Set("username", []byte("janedoe")); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	got, err = st.Get("username")
	if err != nil {
		t.Fatalf("Get after overwrite failed: %v", err)
	}
	if string(got) != "janedoe" {
		t.Errorf("Value mismatch after overwrite: got %q", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	st := newTestStorage(t)

	if _, err := st.Get("absent"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithoutPassword(t *testing.T) {
	dir := t.TempDir()
	st := New("test", dir)
	defer st.Close()

	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := st.Set("username", []byte("johndoe")); !errors.Is(err, ErrNoPassword) {
		t.Errorf("Expected ErrNoPassword, got %v", err)
	}
	if _, err := st.Get("username"); !errors.Is(err, ErrNoPassword) {
		t.Errorf("Expected ErrNoPassword, got %v", err)
	}
}

func TestDeleteStrict(t *testing.T) {
	st := newTestStorage(t)

	if err := st.Set("username", []byte("johndoe")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Delete("username"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := st.Get("username"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}

	// Deleting an absent key fails
	if err := st.Delete("username"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestClear(t *testing.T) {
	st := newTestStorage(t)

	for _, key := range []string{"a", "b", "c"} {
		if err := st.Set(key, []byte("value")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := st.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("Expected 0 entries after clear, got %d", st.Len())
	}
}

func TestKeysSorted(t *testing.T) {
	st := newTestStorage(t)

	for _, key := range []string{"zebra", "apple", "mango"} {
		if err := st.Set(key, []byte("value")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := st.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"apple", "mango", "zebra"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Key %d mismatch: got %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestNonceUniquenessOnOverwrite(t *testing.T) {
	st := newTestStorage(t)

	value := []byte("identical plaintext")
	if err := st.Set("key", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	first := st.entries["key"]

	if err := st.Set("key", value); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	second := st.entries["key"]

	if bytes.Equal(first.Nonce, second.Nonce) {
		t.Error("Overwriting an entry must use a fresh nonce")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := New("test", dir)
	defer st.Close()

	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := st.SetPassword([]byte("test123")); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}

	values := map[string]string{
		"username": "johndoe",
		"token":    "abc123",
	}
	for key, value := range values {
		if err := st.Set(key, []byte(value)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := st.Save("b1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Fresh instance, as in a new process
	fresh := New("test", dir)
	defer fresh.Close()

	if err := fresh.Load("b1"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := fresh.Unlock([]byte("test123")); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	keys, err := fresh.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != len(values) {
		t.Fatalf("Expected %d keys, got %d", len(values), len(keys))
	}
	for key, want := range values {
		got, err := fresh.Get(key)
		if err != nil {
			t.Fatalf("Get %q failed: %v", key, err)
		}
		if string(got) != want {
			t.Errorf("Value mismatch for %q: got %q, want %q", key, got, want)
		}
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	st := newTestStorage(t)

	if err := st.Load("nope"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestLoadMissingDefault(t *testing.T) {
	st := New("test", t.TempDir())
	defer st.Close()

	if err := st.Load(""); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestInvalidSnapshotName(t *testing.T) {
	st := newTestStorage(t)

	for _, name := range []string{"../escape", "a/b", ".."} {
		if err := st.Save(name); err == nil {
			t.Errorf("Save(%q) should fail", name)
		}
	}
}

func TestPersistedBytesContainNoPlaintext(t *testing.T) {
	dir := t.TempDir()
	st := New("test", dir)
	defer st.Close()

	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := st.SetPassword([]byte("test123")); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}

	secret := []byte("extremely-secret-plaintext-value")
	if err := st.Set("username", secret); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Save(""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "test", DefaultSnapshot+SnapshotExt))
	if err != nil {
		t.Fatalf("Failed to read snapshot file: %v", err)
	}
	if bytes.Contains(raw, secret) {
		t.Error("Persisted bytes must not contain the plaintext value")
	}
	// Key names are stored in the clear by design
	if !bytes.Contains(raw, []byte("username")) {
		t.Error("Persisted bytes should contain the key name")
	}
}

func TestCorruptionDetection(t *testing.T) {
	dir := t.TempDir()
	st := New("test", dir)
	defer st.Close()

	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := st.SetPassword([]byte("test123")); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := st.Set("username", []byte("johndoe")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Save(""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Flip one bit in the persisted ciphertext
	path := filepath.Join(dir, "test", DefaultSnapshot+SnapshotExt)
	db, err := storage.Open(path)
	if err != nil {
		t.Fatalf("Failed to open snapshot: %v", err)
	}
	rec, err := db.GetEntry("username")
	if err != nil || rec == nil {
		t.Fatalf("Failed to get entry: %v", err)
	}
	rec.Ciphertext[0] ^= 0x01
	if err := db.PutEntry("username", *rec); err != nil {
		t.Fatalf("Failed to put tampered entry: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close snapshot: %v", err)
	}

	fresh := New("test", dir)
	defer fresh.Close()

	if err := fresh.Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// The canary still verifies, so unlock succeeds
	if err := fresh.Unlock([]byte("test123")); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	// The tampered entry must surface as corruption, never wrong plaintext
	if _, err := fresh.Get("username"); !errors.Is(err, ErrCorruptData) {
		t.Errorf("Expected ErrCorruptData, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	dir := t.TempDir()
	st := New("test", dir)
	defer st.Close()

	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := st.SetPassword([]byte("oldpass")); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := st.Set("username", []byte("johndoe")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := st.SetPassword([]byte("newpass")); err != nil {
		t.Fatalf("Password change failed: %v", err)
	}

	// Entries stay readable under the new key
	got, err := st.Get("username")
	if err != nil {
		t.Fatalf("Get after password change failed: %v", err)
	}
	if string(got) != "johndoe" {
		t.Errorf("Value mismatch: got %q", got)
	}

	// A fresh instance accepts only the new password; the password
	// change persisted the re-encrypted state
	fresh := New("test", dir)
	defer fresh.Close()

	if err := fresh.Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := fresh.Unlock([]byte("oldpass")); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Expected ErrInvalidPassword with old password, got %v", err)
	}
	if err := fresh.Unlock([]byte("newpass")); err != nil {
		t.Fatalf("Unlock with new password failed: %v", err)
	}
	got, err = fresh.Get("username")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "johndoe" {
		t.Errorf("Value mismatch after reload: got %q", got)
	}
}

func TestSaltImmutableAcrossPasswordChange(t *testing.T) {
	st := newTestStorage(t)

	before := append([]byte(nil), st.salt...)
	if err := st.SetPassword([]byte("another")); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if !bytes.Equal(before, st.salt) {
		t.Error("Salt must never change after Init")
	}
}

func TestScenario(t *testing.T) {
	dir := t.TempDir()

	// init, set_password, set, save
	st := New("s1", dir)
	if err := st.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := st.SetPassword([]byte("hunter2")); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := st.Set("username", []byte("johndoe")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Save("s1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	st.Close()

	// new process: load, unlock, get
	st2 := New("s1", dir)
	defer st2.Close()

	if err := st2.Load("s1"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := st2.Unlock([]byte("hunter2")); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	got, err := st2.Get("username")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "johndoe" {
		t.Errorf("Value mismatch: got %q, want %q", got, "johndoe")
	}
}

func TestStatus(t *testing.T) {
	st := newTestStorage(t)

	if err := st.Set("username", []byte("johndoe")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Save(""); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.Save("backup"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := st.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if info.EntryCount != 1 {
		t.Errorf("Expected 1 entry, got %d", info.EntryCount)
	}
	if info.KDFIterations == 0 {
		t.Error("KDF iterations should be reported")
	}
	if len(info.Snapshots) != 2 {
		t.Errorf("Expected 2 snapshots, got %v", info.Snapshots)
	}
}
