package cmd

import (
	"fmt"

	"github.com/live-labs/fastmem/internal/core"
)

// Set encrypts and stores a value, then persists the default snapshot
func Set(name, path, key, value string) {
	st := OpenStore(name, path)
	defer st.Close()

	UnlockStore(st)

	if err := st.Set(key, []byte(value)); err != nil {
		HandleError(err)
	}
	if err := st.Save(core.DefaultSnapshot); err != nil {
		HandleError(err)
	}

	fmt.Printf("set: %s\n", key)
}
