package cmd

import (
	"fmt"
	"os"

	"github.com/live-labs/fastmem/internal/core"
	"github.com/live-labs/fastmem/internal/crypto"
	"github.com/live-labs/fastmem/internal/keyring"
)

// KeyringSave saves the storage password to the OS keyring
func KeyringSave(name, path string) {
	st := OpenStore(name, path)
	defer st.Close()

	password, err := core.ReadPassword("Enter password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(password)

	if err := st.VerifyPassword(password); err != nil {
		HandleError(err)
	}

	storageID, err := st.StorageID()
	if err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassword(storageID, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the storage password from the OS keyring
func KeyringDelete(name, path string) {
	st := core.New(name, path)
	defer st.Close()

	storageID, err := st.StorageID()
	if err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.DeletePassword(storageID); err != nil {
		fmt.Println("No password stored in keyring")
		return
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus reports whether a password is stored in the OS keyring
func KeyringStatus(name, path string) {
	st := core.New(name, path)
	defer st.Close()

	storageID, err := st.StorageID()
	if err != nil {
		fmt.Println("Password: not stored")
		return
	}

	if keyring.HasPassword(storageID) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
