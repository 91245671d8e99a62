// Package adaptive provides adaptive encryption for Discovery.
//
// This package implements a cipher abstraction that selects an
// encryption algorithm by target architecture.
//
// Supported Algorithms:
//
//   - AES-GCM (16, 24 or 32 byte keys): chosen by New on amd64 and arm64
//   - ChaCha20-Poly1305 (32 byte keys): chosen by New on other architectures
//
// Features:
//
//   - Architecture-based selection: New checks runtime.GOARCH; CPU
//     features such as AES-NI are not probed
//   - AEAD: Authenticated encryption with associated data
//   - Keys are used as given; this package does no key derivation
//   - Thread Safety: All cipher operations are thread-safe
//
// Usage:
//
//	cipher, err := adaptive.New(key)
//	encrypted, err := cipher.Encrypt(plaintext, aad)
//	plaintext, err := cipher.Decrypt(encrypted, aad)
package adaptive
