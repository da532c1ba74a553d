// Package keyring wraps the OS keyring for optional password caching,
// keyed by the persistent storage ID.
package keyring

import (
	"github.com/zalando/go-keyring"
)

const serviceName = "fastmem"

// SavePassword stores a password in the OS keyring
func SavePassword(storageID string, password string) error {
	return keyring.Set(serviceName, storageID, password)
}

// GetPassword retrieves a password from the OS keyring
func GetPassword(storageID string) (string, error) {
	return keyring.Get(serviceName, storageID)
}

// DeletePassword removes a password from the OS keyring
func DeletePassword(storageID string) error {
	return keyring.Delete(serviceName, storageID)
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(storageID string) bool {
	_, err := keyring.Get(serviceName, storageID)
	return err == nil
}
