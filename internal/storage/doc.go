// Package storage provides the BBolt state file for pinlock.
//
// The state file uses three buckets:
//   - config: installation id, KDF parameters (salt, iterations), timestamps (unencrypted)
//   - secrets: values sealed with AES-256-GCM (the PIN credential)
//   - settings: plain JSON values (lock enabled flag and factor)
//
// PlainBucket and SecureBucket adapt the buckets to the key-value contracts
// the lock core consumes. BBolt provides ACID transactions, an exclusive
// file lock (one pinlock process at a time) and corruption detection.
package storage
