package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/live-labs/fastmem/internal/crypto"
	"github.com/live-labs/fastmem/internal/storage"
)

const (
	DefaultSnapshot     = "default"  // Snapshot used when no name is given
	SnapshotExt         = ".fastmem" // Snapshot file extension
	DirPermSecure       = 0700       // Directory: owner rwx only
	passwordCheckString = "fastmem-password-check"
)

var (
	ErrNotInitialized   = errors.New("storage not initialized")
	ErrAlreadyExists    = errors.New("storage already exists")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrCorruptData      = errors.New("corrupt data")
	ErrLocked           = errors.New("storage is locked")
	ErrKeyNotFound      = errors.New("key not found")
	ErrNoPassword       = errors.New("no password set")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Entry is a single stored value: a per-encryption nonce plus the
// ciphertext with its authentication tag. The plaintext value never
// lives in an Entry.
type Entry struct {
	Nonce      []byte
	Ciphertext []byte
}

// Storage is an encrypted, password-protected key-value memory store.
// One mutex guards the lock state, the derived key and the entry map;
// all operations hold it for their full duration.
type Storage struct {
	mu         sync.Mutex
	name       string
	dir        string
	salt       []byte
	iterations int
	canary     []byte // encrypted password canary, nil until a password is set
	key        []byte // derived key, nil while locked or before a password is set
	locked     bool
	entries    map[string]Entry
}

// New creates a Storage handle for the named store under path.
// It does not touch the filesystem; call Init for a new store or Load
// for an existing one.
func New(name, path string) *Storage {
	return &Storage{
		name:    name,
		dir:     filepath.Join(path, name),
		entries: make(map[string]Entry),
	}
}

// Name returns the storage name
func (s *Storage) Name() string {
	return s.name
}

// Dir returns the storage directory
func (s *Storage) Dir() string {
	return s.dir
}

// snapshotPath resolves a snapshot name to its file path. Empty means
// the default snapshot. Names must be bare file names.
func (s *Storage) snapshotPath(snapshot string) (string, error) {
	if snapshot == "" {
		snapshot = DefaultSnapshot
	}
	if snapshot != filepath.Base(snapshot) || snapshot == "." || snapshot == ".." {
		return "", fmt.Errorf("invalid snapshot name %q", snapshot)
	}
	return filepath.Join(s.dir, snapshot+SnapshotExt), nil
}

// Init creates the storage directory and the default snapshot with a
// freshly generated salt. The salt is generated exactly once here and
// never changes for the lifetime of the storage.
func (s *Storage) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.snapshotPath("")
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return ErrAlreadyExists
	}

	if err := os.MkdirAll(s.dir, DirPermSecure); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	kdf, err := crypto.NewKDF()
	if err != nil {
		return err
	}

	db, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.SetSalt(kdf.Salt); err != nil {
		return fmt.Errorf("failed to store salt: %w", err)
	}
	if err := db.SetIterations(uint32(kdf.Iterations)); err != nil {
		return fmt.Errorf("failed to store iterations: %w", err)
	}
	if _, err := db.GetOrCreateStorageID(); err != nil {
		return fmt.Errorf("failed to create storage ID: %w", err)
	}

	s.salt = kdf.Salt
	s.iterations = kdf.Iterations
	s.canary = nil
	s.entries = make(map[string]Entry)
	s.locked = false
	return nil
}

// makeCanary encrypts the password check string under the given key.
// The canary blob is nonce followed by ciphertext.
func makeCanary(enc *crypto.Encryptor) ([]byte, error) {
	checksum := sha256.Sum256([]byte(passwordCheckString))
	nonce, ciphertext, err := enc.Encrypt([]byte(hex.EncodeToString(checksum[:])))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt canary: %w", err)
	}
	return append(nonce, ciphertext...), nil
}

// verifyCanary checks the canary blob against the given key
func verifyCanary(enc *crypto.Encryptor, canary []byte) bool {
	if len(canary) <= crypto.NonceSize {
		return false
	}
	plaintext, err := enc.Decrypt(canary[:crypto.NonceSize], canary[crypto.NonceSize:])
	if err != nil {
		return false
	}
	checksum := sha256.Sum256([]byte(passwordCheckString))
	ok := crypto.ConstantTimeCompare(plaintext, []byte(hex.EncodeToString(checksum[:])))
	crypto.ClearBytes(plaintext)
	return ok
}

// SetPassword derives a key from the password and the storage's salt,
// installs it, and persists the password canary. When entries already
// exist under a previous password, every entry is re-encrypted with the
// new key and the re-encrypted state is written through to the default
// snapshot so it stays decryptable.
func (s *Storage) SetPassword(password []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	if s.salt == nil {
		return ErrNotInitialized
	}
	if len(s.entries) > 0 && s.key == nil {
		// Cannot re-encrypt entries without the previous key
		return ErrNoPassword
	}

	kdf := &crypto.KDF{Salt: s.salt, Iterations: s.iterations}
	newKey := kdf.DeriveKey(password)
	newEnc := crypto.NewEncryptor(newKey)

	changingPassword := s.key != nil && len(s.entries) > 0
	if changingPassword {
		oldEnc := crypto.NewEncryptor(s.key)
		reencrypted := make(map[string]Entry, len(s.entries))
		for key, entry := range s.entries {
			plaintext, err := oldEnc.Decrypt(entry.Nonce, entry.Ciphertext)
			if err != nil {
				crypto.ClearBytes(newKey)
				return fmt.Errorf("%w: entry %q", ErrCorruptData, key)
			}
			nonce, ciphertext, err := newEnc.Encrypt(plaintext)
			crypto.ClearBytes(plaintext)
			if err != nil {
				crypto.ClearBytes(newKey)
				return fmt.Errorf("failed to re-encrypt entry %q: %w", key, err)
			}
			reencrypted[key] = Entry{Nonce: nonce, Ciphertext: ciphertext}
		}
		s.entries = reencrypted
	}

	canary, err := makeCanary(newEnc)
	if err != nil {
		crypto.ClearBytes(newKey)
		return err
	}

	path, err := s.snapshotPath("")
	if err != nil {
		crypto.ClearBytes(newKey)
		return err
	}
	db, err := storage.Open(path)
	if err != nil {
		crypto.ClearBytes(newKey)
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if changingPassword {
		// A password change must rewrite the persisted entries, or the
		// default snapshot would hold ciphertext the new key cannot open.
		if err := db.WriteState(s.state(canary)); err != nil {
			crypto.ClearBytes(newKey)
			return fmt.Errorf("failed to persist re-encrypted state: %w", err)
		}
	} else if err := db.SetCanary(canary); err != nil {
		crypto.ClearBytes(newKey)
		return fmt.Errorf("failed to store canary: %w", err)
	}

	if s.key != nil {
		crypto.ClearBytes(s.key)
	}
	s.key = newKey
	s.canary = canary
	return nil
}

// HasPassword reports whether a password has been established
func (s *Storage) HasPassword() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canary != nil
}

// Set encrypts value under a fresh nonce and stores it, overwriting any
// existing entry with the same key.
func (s *Storage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	if s.key == nil {
		return ErrNoPassword
	}

	enc := crypto.NewEncryptor(s.key)
	nonce, ciphertext, err := enc.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt value: %w", err)
	}
	s.entries[key] = Entry{Nonce: nonce, Ciphertext: ciphertext}
	return nil
}

// Get decrypts and returns the value stored under key.
// Because the key was verified against the canary at unlock time, an
// authentication failure here means the ciphertext itself is bad and is
// reported as ErrCorruptData, not ErrInvalidPassword.
func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return nil, ErrLocked
	}
	if s.key == nil {
		return nil, ErrNoPassword
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	enc := crypto.NewEncryptor(s.key)
	plaintext, err := enc.Decrypt(entry.Nonce, entry.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %q", ErrCorruptData, key)
	}
	return plaintext, nil
}

// Delete removes the entry stored under key.
// Deleting an absent key fails with ErrKeyNotFound.
func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	if _, ok := s.entries[key]; !ok {
		return ErrKeyNotFound
	}
	delete(s.entries, key)
	return nil
}

// Clear removes all entries
func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	s.entries = make(map[string]Entry)
	return nil
}

// Keys returns the sorted entry names. Names are stored in the clear,
// so no key material is needed, but a locked store still refuses.
func (s *Storage) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return nil, ErrLocked
	}
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored entries
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Lock discards the derived key and moves the store to the locked
// state. The key bytes are overwritten, not just dereferenced. Lock
// always succeeds.
func (s *Storage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropKeyLocked()
	s.locked = true
}

// dropKeyLocked zeroes and forgets the derived key. Caller holds s.mu.
func (s *Storage) dropKeyLocked() {
	if s.key != nil {
		crypto.ClearBytes(s.key)
		s.key = nil
	}
}

// Unlock re-derives the key from the password and the stored salt,
// verifies it, and moves the store to the unlocked state. Verification
// uses the canary when one exists, falls back to decrypting an
// arbitrary entry, and accepts optimistically when the store is empty.
func (s *Storage) Unlock(password []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.salt == nil {
		return ErrNotInitialized
	}

	kdf := &crypto.KDF{Salt: s.salt, Iterations: s.iterations}
	key := kdf.DeriveKey(password)
	if err := s.verifyKeyLocked(key); err != nil {
		crypto.ClearBytes(key)
		return err
	}

	s.dropKeyLocked()
	s.key = key
	s.locked = false
	return nil
}

// verifyKeyLocked checks a candidate key against the canary or, absent
// one, against any existing entry. Caller holds s.mu.
func (s *Storage) verifyKeyLocked(key []byte) error {
	enc := crypto.NewEncryptor(key)
	if s.canary != nil {
		if !verifyCanary(enc, s.canary) {
			return ErrInvalidPassword
		}
		return nil
	}
	for _, entry := range s.entries {
		plaintext, err := enc.Decrypt(entry.Nonce, entry.Ciphertext)
		if err != nil {
			return ErrInvalidPassword
		}
		crypto.ClearBytes(plaintext)
		return nil
	}
	// Empty store without a canary: accept optimistically
	return nil
}

// VerifyPassword checks the password without installing the key
func (s *Storage) VerifyPassword(password []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.salt == nil {
		return ErrNotInitialized
	}
	kdf := &crypto.KDF{Salt: s.salt, Iterations: s.iterations}
	key := kdf.DeriveKey(password)
	defer crypto.ClearBytes(key)
	return s.verifyKeyLocked(key)
}

// state assembles the persisted form of the current entries.
// Caller holds s.mu.
func (s *Storage) state(canary []byte) *storage.State {
	state := &storage.State{
		Salt:       s.salt,
		Iterations: uint32(s.iterations),
		Canary:     canary,
		Entries:    make(map[string]storage.EntryRecord, len(s.entries)),
	}
	for key, entry := range s.entries {
		state.Entries[key] = storage.EntryRecord{
			Nonce:      entry.Nonce,
			Ciphertext: entry.Ciphertext,
		}
	}
	return state
}

// Save writes the current state to the named snapshot, or to the
// default snapshot when name is empty. Salt, iteration count, canary
// and all encrypted entries round-trip; plaintext is never written.
func (s *Storage) Save(snapshot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	if s.salt == nil {
		return ErrNotInitialized
	}

	path, err := s.snapshotPath(snapshot)
	if err != nil {
		return err
	}
	db, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	if err := db.WriteState(s.state(s.canary)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if _, err := db.GetOrCreateStorageID(); err != nil {
		return fmt.Errorf("failed to store storage ID: %w", err)
	}
	return nil
}

// Load replaces the in-memory state with the named snapshot, or with
// the default snapshot when name is empty. The derived key survives the
// load only if it still verifies against the loaded canary; otherwise
// it is zeroed and the caller must unlock again.
func (s *Storage) Load(snapshot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}

	path, err := s.snapshotPath(snapshot)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if snapshot == "" || snapshot == DefaultSnapshot {
				return ErrNotInitialized
			}
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}

	db, err := storage.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	state, err := db.ReadState()
	if err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			return fmt.Errorf("%w: %v", ErrCorruptData, err)
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	s.salt = state.Salt
	s.iterations = int(state.Iterations)
	s.canary = state.Canary
	s.entries = make(map[string]Entry, len(state.Entries))
	for key, rec := range state.Entries {
		s.entries[key] = Entry{Nonce: rec.Nonce, Ciphertext: rec.Ciphertext}
	}

	if s.key != nil {
		if err := s.verifyKeyLocked(s.key); err != nil {
			s.dropKeyLocked()
		}
	}
	return nil
}

// Snapshots lists the snapshot names present in the storage directory
func (s *Storage) Snapshots() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+SnapshotExt))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), SnapshotExt))
	}
	sort.Strings(names)
	return names, nil
}

// StorageID returns the persistent storage ID from the default snapshot
func (s *Storage) StorageID() (string, error) {
	path, err := s.snapshotPath("")
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotInitialized
	}
	db, err := storage.Open(path)
	if err != nil {
		return "", ErrNotInitialized
	}
	defer db.Close()
	return db.GetOrCreateStorageID()
}

// StatusInfo describes a storage without requiring a password
type StatusInfo struct {
	Name          string
	Dir           string
	Version       string
	Algorithm     string
	KDFIterations uint32
	EntryCount    int
	Created       time.Time
	Modified      time.Time
	Snapshots     []string
}

// Status reads status information from the default snapshot.
// No password is required; only public configuration is touched.
func (s *Storage) Status() (*StatusInfo, error) {
	path, err := s.snapshotPath("")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, ErrNotInitialized
	}

	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	info := &StatusInfo{
		Name:      s.name,
		Dir:       s.dir,
		Version:   storage.FormatVersion,
		Algorithm: "AES-256-GCM",
	}

	if iters, err := db.GetIterations(); err == nil {
		info.KDFIterations = iters
	}
	if count, err := db.CountEntries(); err == nil {
		info.EntryCount = count
	}
	if created, err := db.GetCreated(); err == nil {
		info.Created = created
	}
	if modified, err := db.GetModified(); err == nil {
		info.Modified = modified
	}
	if snapshots, err := s.Snapshots(); err == nil {
		info.Snapshots = snapshots
	}
	return info, nil
}

// Close zeroes key material held by the instance
func (s *Storage) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropKeyLocked()
}

// Equal reports whether two plaintext values are identical, compared in
// constant time via their digests.
func Equal(a, b []byte) bool {
	ah := sha256.Sum256(a)
	bh := sha256.Sum256(b)
	return bytes.Equal(ah[:], bh[:])
}
