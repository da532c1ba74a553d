package cmd

import (
	"fmt"
)

// Get decrypts and prints a stored value
func Get(name, path, key string) {
	st := OpenStore(name, path)
	defer st.Close()

	UnlockStore(st)

	value, err := st.Get(key)
	if err != nil {
		HandleError(err)
	}

	fmt.Println(string(value))
}
