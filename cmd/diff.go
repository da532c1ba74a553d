package cmd

import (
	"fmt"
)

// Diff compares the current state with a named snapshot, showing value
// level differences for changed keys
func Diff(name, path, snapshot string) {
	st := OpenStore(name, path)
	defer st.Close()

	UnlockStore(st)

	result, err := st.DiffSnapshot(snapshot)
	if err != nil {
		HandleError(err)
	}

	if !result.HasChanges() {
		fmt.Println("No changes detected")
		return
	}
	fmt.Print(result.Text)
}
