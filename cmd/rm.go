package cmd

import (
	"fmt"

	"github.com/live-labs/fastmem/internal/core"
)

// Remove deletes a key and persists the default snapshot
func Remove(name, path, key string) {
	st := OpenStore(name, path)
	defer st.Close()

	UnlockStore(st)

	if err := st.Delete(key); err != nil {
		HandleError(err)
	}
	if err := st.Save(core.DefaultSnapshot); err != nil {
		HandleError(err)
	}

	fmt.Printf("removed: %s\n", key)
}
