package cmd

import (
	"fmt"

	"github.com/live-labs/fastmem/internal/core"
)

// Load restores a named snapshot and makes it the current state by
// writing it back to the default snapshot
func Load(name, path, snapshot string) {
	st := core.New(name, path)
	defer st.Close()

	if err := st.Load(snapshot); err != nil {
		HandleError(err)
	}
	if err := st.Save(core.DefaultSnapshot); err != nil {
		HandleError(err)
	}

	fmt.Printf("loaded: %s\n", snapshot)
}
