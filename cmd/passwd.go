package cmd

import (
	"fmt"

	"github.com/live-labs/fastmem/internal/core"
	"github.com/live-labs/fastmem/internal/crypto"
)

// Passwd sets the storage password, or changes it when one exists.
// A password change re-encrypts every stored entry with the new key.
func Passwd(name, path string) {
	st := OpenStore(name, path)
	defer st.Close()

	if st.HasPassword() {
		current, err := core.ReadPassword("Enter current password: ")
		if err != nil {
			HandleError(err)
		}
		defer crypto.ClearBytes(current)

		if err := st.Unlock(current); err != nil {
			HandleError(err)
		}
	}

	password, err := GetPasswordForInit()
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	if err := st.SetPassword(password); err != nil {
		HandleError(err)
	}

	fmt.Println("Password set")
}
