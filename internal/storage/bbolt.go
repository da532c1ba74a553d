package storage

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket  = []byte("config")  // KDF params (salt, iterations), timestamps, canary
	EntriesBucket = []byte("entries") // Encrypted entry records keyed by entry name
)

// Config keys
var (
	ConfigVersion   = []byte("version")
	ConfigCreated   = []byte("created")
	ConfigModified  = []byte("modified")
	ConfigSalt      = []byte("salt")
	ConfigIters     = []byte("iterations")
	ConfigCanary    = []byte("canary")
	ConfigStorageID = []byte("storage_id")
)

// FormatVersion is the persisted format tag. Readers reject anything else.
const FormatVersion = "1"

// ErrCorrupt is returned when a file is structurally invalid or carries
// an unrecognized format version.
var ErrCorrupt = errors.New("corrupt storage file")

// EntryRecord is the persisted form of a single encrypted entry.
type EntryRecord struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"` // includes the GCM tag
}

// State is the complete persisted state of a memory store.
type State struct {
	Salt       []byte
	Iterations uint32
	Canary     []byte // encrypted password canary, nil if no password set
	Entries    map[string]EntryRecord
}

// Storage provides BBolt-based persistence for fastmem snapshots
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a snapshot database
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Initialize creates the bucket structure for a new snapshot
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, EntriesBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if err := config.Put(ConfigVersion, []byte(FormatVersion)); err != nil {
			return err
		}

		now := time.Now()
		created, _ := now.MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// checkVersion validates the format tag within a transaction
func checkVersion(tx *bolt.Tx) error {
	config := tx.Bucket(ConfigBucket)
	if config == nil {
		return fmt.Errorf("%w: config bucket not found", ErrCorrupt)
	}
	version := config.Get(ConfigVersion)
	if version == nil {
		return fmt.Errorf("%w: version not found", ErrCorrupt)
	}
	if string(version) != FormatVersion {
		return fmt.Errorf("%w: unsupported format version %q", ErrCorrupt, version)
	}
	return nil
}

// SetSalt stores the KDF salt
func (s *Storage) SetSalt(salt []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		return config.Put(ConfigSalt, salt)
	})
}

// GetSalt retrieves the KDF salt
func (s *Storage) GetSalt() ([]byte, error) {
	var salt []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := checkVersion(tx); err != nil {
			return err
		}
		config := tx.Bucket(ConfigBucket)
		salt = config.Get(ConfigSalt)
		if salt == nil {
			return fmt.Errorf("%w: salt not found", ErrCorrupt)
		}
		// Make a copy since the slice is only valid during the transaction
		salt = append([]byte(nil), salt...)
		return nil
	})
	return salt, err
}

// SetIterations stores the KDF iteration count
func (s *Storage) SetIterations(iterations uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		iters := make([]byte, 4)
		binary.BigEndian.PutUint32(iters, iterations)
		return config.Put(ConfigIters, iters)
	})
}

// GetIterations retrieves the KDF iteration count
func (s *Storage) GetIterations() (uint32, error) {
	var iterations uint32
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := checkVersion(tx); err != nil {
			return err
		}
		config := tx.Bucket(ConfigBucket)
		iters := config.Get(ConfigIters)
		if iters == nil || len(iters) != 4 {
			return fmt.Errorf("%w: iterations not found", ErrCorrupt)
		}
		iterations = binary.BigEndian.Uint32(iters)
		return nil
	})
	return iterations, err
}

// SetCanary stores the encrypted password canary
func (s *Storage) SetCanary(canary []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		return config.Put(ConfigCanary, canary)
	})
}

// GetCanary retrieves the encrypted password canary.
// Returns nil without error when no password has been set.
func (s *Storage) GetCanary() ([]byte, error) {
	var canary []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := checkVersion(tx); err != nil {
			return err
		}
		config := tx.Bucket(ConfigBucket)
		data := config.Get(ConfigCanary)
		if data == nil {
			return nil
		}
		canary = append([]byte(nil), data...)
		return nil
	})
	return canary, err
}

// UpdateModified updates the last modified timestamp
func (s *Storage) UpdateModified() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		now := time.Now()
		modified, _ := now.MarshalBinary()
		return config.Put(ConfigModified, modified)
	})
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("%w: config bucket not found", ErrCorrupt)
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// GetCreated retrieves the creation timestamp
func (s *Storage) GetCreated() (time.Time, error) {
	var created time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("%w: config bucket not found", ErrCorrupt)
		}
		data := config.Get(ConfigCreated)
		if data == nil {
			return fmt.Errorf("created time not found")
		}
		return created.UnmarshalBinary(data)
	})
	return created, err
}

// GetStorageID retrieves the storage ID from the config bucket
func (s *Storage) GetStorageID() (string, error) {
	var storageID string
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("%w: config bucket not found", ErrCorrupt)
		}
		data := config.Get(ConfigStorageID)
		if data == nil {
			return fmt.Errorf("storage_id not found")
		}
		storageID = string(data)
		return nil
	})
	return storageID, err
}

// GetOrCreateStorageID retrieves the existing storage ID or generates a new one
func (s *Storage) GetOrCreateStorageID() (string, error) {
	storageID, err := s.GetStorageID()
	if err == nil {
		return storageID, nil
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate storage ID: %w", err)
	}
	storageID = hex.EncodeToString(b)

	err = s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		return config.Put(ConfigStorageID, []byte(storageID))
	})
	if err != nil {
		return "", err
	}

	return storageID, nil
}

// PutEntry stores an encrypted entry record
func (s *Storage) PutEntry(key string, rec EntryRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(EntriesBucket)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return entries.Put([]byte(key), data)
	})
}

// GetEntry retrieves an encrypted entry record.
// Returns nil without error when the key is absent.
func (s *Storage) GetEntry(key string) (*EntryRecord, error) {
	var rec *EntryRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(EntriesBucket)
		if entries == nil {
			return fmt.Errorf("%w: entries bucket not found", ErrCorrupt)
		}
		data := entries.Get([]byte(key))
		if data == nil {
			return nil
		}
		rec = &EntryRecord{}
		if err := json.Unmarshal(data, rec); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return nil
	})
	return rec, err
}

// DeleteEntry removes an entry record
func (s *Storage) DeleteEntry(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(EntriesBucket)
		return entries.Delete([]byte(key))
	})
}

// CountEntries returns the number of stored entry records
func (s *Storage) CountEntries() (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(EntriesBucket)
		if entries == nil {
			return nil
		}
		count = entries.Stats().KeyN
		return nil
	})
	return count, err
}

// EntryKeys returns all stored entry names
func (s *Storage) EntryKeys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(EntriesBucket)
		if entries == nil {
			return nil
		}
		return entries.ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// WriteState replaces the entire persisted state in a single transaction
func (s *Storage) WriteState(state *State) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config, err := tx.CreateBucketIfNotExists(ConfigBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", ConfigBucket, err)
		}

		if err := config.Put(ConfigVersion, []byte(FormatVersion)); err != nil {
			return err
		}
		now := time.Now()
		stamp, _ := now.MarshalBinary()
		if config.Get(ConfigCreated) == nil {
			if err := config.Put(ConfigCreated, stamp); err != nil {
				return err
			}
		}
		if err := config.Put(ConfigModified, stamp); err != nil {
			return err
		}
		if err := config.Put(ConfigSalt, state.Salt); err != nil {
			return err
		}
		iters := make([]byte, 4)
		binary.BigEndian.PutUint32(iters, state.Iterations)
		if err := config.Put(ConfigIters, iters); err != nil {
			return err
		}
		if state.Canary != nil {
			if err := config.Put(ConfigCanary, state.Canary); err != nil {
				return err
			}
		} else if err := config.Delete(ConfigCanary); err != nil {
			return err
		}

		// Recreate the entries bucket so stale records never survive a save
		if tx.Bucket(EntriesBucket) != nil {
			if err := tx.DeleteBucket(EntriesBucket); err != nil {
				return err
			}
		}
		entries, err := tx.CreateBucket(EntriesBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", EntriesBucket, err)
		}
		for key, rec := range state.Entries {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := entries.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadState reads the entire persisted state in a single transaction.
// Returns ErrCorrupt when the format tag is unrecognized or the layout
// is structurally invalid.
func (s *Storage) ReadState() (*State, error) {
	state := &State{Entries: make(map[string]EntryRecord)}
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := checkVersion(tx); err != nil {
			return err
		}

		config := tx.Bucket(ConfigBucket)
		salt := config.Get(ConfigSalt)
		if salt == nil {
			return fmt.Errorf("%w: salt not found", ErrCorrupt)
		}
		state.Salt = append([]byte(nil), salt...)

		iters := config.Get(ConfigIters)
		if iters == nil || len(iters) != 4 {
			return fmt.Errorf("%w: iterations not found", ErrCorrupt)
		}
		state.Iterations = binary.BigEndian.Uint32(iters)

		if canary := config.Get(ConfigCanary); canary != nil {
			state.Canary = append([]byte(nil), canary...)
		}

		entries := tx.Bucket(EntriesBucket)
		if entries == nil {
			return fmt.Errorf("%w: entries bucket not found", ErrCorrupt)
		}
		return entries.ForEach(func(k, v []byte) error {
			var rec EntryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: entry %q: %v", ErrCorrupt, k, err)
			}
			state.Entries[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}
