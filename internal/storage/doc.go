// Package storage provides the BBolt database interface for fastmem.
//
// Each snapshot of a memory store is a standalone BBolt file with two
// buckets:
//   - config: format version, KDF parameters (salt, iterations),
//     timestamps, storage ID (unencrypted) and the encrypted password
//     canary
//   - entries: key name -> JSON record {nonce, ciphertext} where the
//     ciphertext carries the GCM authentication tag
//
// Entry values are always ciphertext; plaintext never reaches this
// package. Key names are stored in the clear so that listing works
// without a password.
//
// BBolt provides ACID transactions, file locking, and corruption
// detection.
package storage
