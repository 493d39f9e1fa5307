// Package crypto provides the at-rest encryption used by pinlock's vault backend.
//
// Sealing uses AES-256-GCM with:
//   - 32-byte key derived from the device secret via PBKDF2
//   - 12-byte random nonce per seal, prepended to the ciphertext
//   - the storage key as associated data, so a sealed value cannot be
//     moved to a different key without failing authentication
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 32-byte random salt (stored unencrypted in the state file)
//   - 210,000 iterations by default (OWASP minimum recommendation)
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy() when the encryptor is no longer needed
package crypto
