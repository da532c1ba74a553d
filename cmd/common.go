package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/live-labs/fastmem/internal/core"
	"github.com/live-labs/fastmem/internal/crypto"
	"github.com/live-labs/fastmem/internal/keyring"
)

// Exit codes per error kind, so scripts can distinguish failures
const (
	exitGeneric         = 1
	exitInvalidPassword = 2
	exitLocked          = 3
	exitKeyNotFound     = 4
	exitCorruptData     = 5
	exitNoPassword      = 6
	exitNotInitialized  = 7
	exitAlreadyExists   = 8
)

// PasswordSource indicates where a password came from
type PasswordSource int

const (
	SourceEnv PasswordSource = iota
	SourceKeyring
	SourcePrompt
)

// OpenStore creates a handle for the named storage and loads its
// default snapshot, exiting with a diagnostic on failure
func OpenStore(name, path string) *core.Storage {
	st := core.New(name, path)
	if err := st.Load(""); err != nil {
		HandleError(err)
	}
	return st
}

// GetPassword retrieves a password from the environment, the OS keyring
// (when a storage ID is available), or an interactive prompt.
// The caller is responsible for calling crypto.ClearBytes on the result.
func GetPassword(prompt, storageID string) ([]byte, PasswordSource, error) {
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, SourceEnv, nil
	}

	if storageID != "" {
		if stored, err := keyring.GetPassword(storageID); err == nil {
			return []byte(stored), SourceKeyring, nil
		}
	}

	password, err := core.ReadPassword(prompt)
	if err != nil {
		return nil, SourcePrompt, fmt.Errorf("failed to read password: %w", err)
	}
	return password, SourcePrompt, nil
}

// UnlockStore unlocks the store when a password has been set, prompting
// once more if a cached keyring password turns out to be stale
func UnlockStore(st *core.Storage) {
	if !st.HasPassword() {
		return
	}

	storageID, _ := st.StorageID()
	password, source, err := GetPassword("Enter password: ", storageID)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	err = st.Unlock(password)
	if errors.Is(err, core.ErrInvalidPassword) && source == SourceKeyring {
		// Stale keyring entry; fall back to the prompt
		prompted, perr := core.ReadPassword("Enter password: ")
		if perr != nil {
			HandleError(perr)
		}
		defer crypto.ClearBytes(prompted)
		err = st.Unlock(prompted)
	}
	if err != nil {
		HandleError(err)
	}
}

// GetPasswordForInit retrieves a new password, checking the environment
// first, then prompting with confirmation
func GetPasswordForInit() ([]byte, error) {
	if password := core.GetPasswordFromEnv(); password != nil {
		return password, nil
	}
	return core.ReadPasswordConfirm()
}

// Confirm asks a yes/no question on the terminal
func Confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// HandleError prints a diagnostic and exits with a code specific to the
// error kind
func HandleError(err error) {
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: storage not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'fastmem init <name>' first\n")
		os.Exit(exitNotInitialized)
	case errors.Is(err, core.ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Error: storage already exists\n")
		fmt.Fprintf(os.Stderr, "Use 'fastmem status' to see its state\n")
		os.Exit(exitAlreadyExists)
	case errors.Is(err, core.ErrInvalidPassword):
		fmt.Fprintf(os.Stderr, "Error: invalid password\n")
		os.Exit(exitInvalidPassword)
	case errors.Is(err, core.ErrLocked):
		fmt.Fprintf(os.Stderr, "Error: storage is locked\n")
		os.Exit(exitLocked)
	case errors.Is(err, core.ErrKeyNotFound):
		fmt.Fprintf(os.Stderr, "Error: key not found\n")
		os.Exit(exitKeyNotFound)
	case errors.Is(err, core.ErrCorruptData):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCorruptData)
	case errors.Is(err, core.ErrNoPassword):
		fmt.Fprintf(os.Stderr, "Error: no password set\n")
		fmt.Fprintf(os.Stderr, "Run 'fastmem passwd <name>' to set one\n")
		os.Exit(exitNoPassword)
	case errors.Is(err, core.ErrSnapshotNotFound):
		fmt.Fprintf(os.Stderr, "Error: snapshot not found\n")
		os.Exit(exitKeyNotFound)
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitGeneric)
	}
}
