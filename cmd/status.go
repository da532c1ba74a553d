package cmd

import (
	"fmt"
	"strings"

	"github.com/live-labs/fastmem/internal/core"
	"github.com/live-labs/fastmem/internal/keyring"
)

// Status prints storage details. No password is required.
func Status(name, path string) {
	st := core.New(name, path)
	defer st.Close()

	info, err := st.Status()
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Storage:     %s\n", info.Name)
	fmt.Printf("Location:    %s\n", info.Dir)
	fmt.Printf("Format:      v%s\n", info.Version)
	fmt.Printf("Encryption:  %s\n", info.Algorithm)
	fmt.Printf("KDF:         PBKDF2-HMAC-SHA256, %d iterations\n", info.KDFIterations)
	fmt.Printf("Entries:     %d\n", info.EntryCount)
	if !info.Created.IsZero() {
		fmt.Printf("Created:     %s\n", info.Created.Format("2006-01-02 15:04:05"))
	}
	if !info.Modified.IsZero() {
		fmt.Printf("Modified:    %s\n", info.Modified.Format("2006-01-02 15:04:05"))
	}
	if len(info.Snapshots) > 0 {
		fmt.Printf("Snapshots:   %s\n", strings.Join(info.Snapshots, ", "))
	}

	if storageID, err := st.StorageID(); err == nil {
		if keyring.HasPassword(storageID) {
			fmt.Println("Keyring:     password stored")
		} else {
			fmt.Println("Keyring:     password not stored")
		}
	}
}
