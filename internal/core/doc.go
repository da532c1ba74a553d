// Package core implements the encrypted memory store engine.
//
// A Storage instance holds an in-memory map of entry names to
// ciphertext, the per-storage KDF salt, and (while unlocked with a
// password) the derived encryption key. Plaintext exists only inside
// Set/Get calls; what the map and the persistence layer see is always
// nonce + ciphertext.
//
// Core operations:
//   - Init: create the storage directory and default snapshot with a
//     fresh salt
//   - SetPassword: derive and install the key, write the password
//     canary, re-encrypt existing entries on password change
//   - Set/Get/Delete/Clear/Keys: entry operations, rejected while locked
//   - Lock/Unlock: the lock state machine; Lock zeroes the derived key,
//     Unlock re-derives it and verifies it against the canary
//   - Save/Load: explicit snapshot persistence; nothing is autosaved
//
// Every operation takes the instance mutex for its full duration, so a
// concurrent Lock can never race an in-flight Get into decrypting with
// a half-discarded key.
package core
