package cmd

import (
	"fmt"

	"github.com/live-labs/fastmem/internal/core"
)

// Save writes the current state to a named snapshot
func Save(name, path, snapshot string) {
	if snapshot == "" {
		snapshot = core.DefaultSnapshot
	}

	st := OpenStore(name, path)
	defer st.Close()

	if err := st.Save(snapshot); err != nil {
		HandleError(err)
	}

	fmt.Printf("saved: %s\n", snapshot)
}
