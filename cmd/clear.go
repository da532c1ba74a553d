package cmd

import (
	"fmt"

	"github.com/live-labs/fastmem/internal/core"
)

// Clear removes all entries and persists the default snapshot
func Clear(name, path string, yes bool) {
	if !yes && !Confirm("Are you sure you want to clear all data?") {
		return
	}

	st := OpenStore(name, path)
	defer st.Close()

	UnlockStore(st)

	if err := st.Clear(); err != nil {
		HandleError(err)
	}
	if err := st.Save(core.DefaultSnapshot); err != nil {
		HandleError(err)
	}

	fmt.Println("Cleared all data")
}
