package cmd

import (
	"fmt"
)

// List prints the stored key names. Names are kept in the clear, so no
// password is required.
func List(name, path string) {
	st := OpenStore(name, path)
	defer st.Close()

	keys, err := st.Keys()
	if err != nil {
		HandleError(err)
	}

	if len(keys) == 0 {
		fmt.Println("No entries")
		return
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	fmt.Printf("\n%d entries\n", len(keys))
}
