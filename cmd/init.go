package cmd

import (
	"fmt"

	"github.com/live-labs/fastmem/internal/core"
)

// Init creates a new storage with a fresh salt. No password is set yet;
// use 'fastmem passwd' to establish one.
func Init(name, path string) {
	st := core.New(name, path)
	defer st.Close()

	if err := st.Init(); err != nil {
		HandleError(err)
	}

	fmt.Printf("Initialized storage at %s\n", st.Dir())
}
