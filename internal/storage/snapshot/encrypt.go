package snapshot

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/eadiscovery/discoveryd/pkg/crypto/adaptive"
)

// Encryption errors.
var (
	ErrKeyTooShort       = errors.New("snapshot: encryption key too short (minimum 16 bytes)")
	ErrPassphraseTooWeak = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
	ErrDecryptionFailed  = errors.New("snapshot: decryption failed - wrong key or corrupted data")
)

const (
	// MinKeyLength is the minimum key length for encryption.
	MinKeyLength = 16

	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the fixed salt length used in key derivation.
	SaltLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32

	// chunkSize bounds how much plaintext one AEAD seal covers, so
	// encrypting a group's snapshot stream never has to buffer the
	// whole thing (the plugin group's can run into gigabytes of blob
	// data) to encrypt or decrypt it.
	chunkSize = 64 * 1024
)

// EncryptionConfig configures snapshot encryption.
type EncryptionConfig struct {
	// Key is the raw encryption key (32 bytes for AES-256).
	// Either Key or Passphrase must be provided.
	Key []byte

	// Passphrase is used to derive the encryption key.
	// If provided, Key is ignored.
	Passphrase []byte

	// Salt is required to derive the same key for decryption.
	// If nil, a new random salt is generated (encryption path).
	Salt []byte

	// Algorithm specifies the encryption algorithm.
	// Supported: "aes-gcm" (default), "chacha20-poly1305".
	Algorithm string
}

// ValidateConfig validates the encryption configuration.
func ValidateConfig(cfg EncryptionConfig) error {
	if len(cfg.Passphrase) > 0 {
		if len(cfg.Passphrase) < MinPassphraseLength {
			return ErrPassphraseTooWeak
		}
		return nil
	}

	if len(cfg.Key) > 0 && len(cfg.Key) < MinKeyLength {
		return ErrKeyTooShort
	}

	return nil
}

// NewCipherFromConfig creates a cipher from the encryption configuration.
// Returns the salt used for passphrase-based derivation (caller should persist it).
func NewCipherFromConfig(cfg EncryptionConfig) (adaptive.Cipher, []byte, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}

	var key []byte
	var salt []byte
	if len(cfg.Passphrase) > 0 {
		derived, err := DeriveKeyFromPassphrase(cfg.Passphrase, cfg.Salt)
		if err != nil {
			return nil, nil, err
		}
		var derr error
		salt, key, derr = ExtractKeyFromDerived(derived)
		if derr != nil {
			return nil, nil, derr
		}
	} else if len(cfg.Key) > 0 {
		key = cfg.Key
	} else {
		// No encryption configured.
		return nil, nil, nil
	}

	algo := cfg.Algorithm
	if algo == "" {
		algo = "aes-gcm"
	}

	switch algo {
	case "aes-gcm":
		c, err := adaptive.NewAESGCM(key)
		return c, salt, err
	case "chacha20-poly1305":
		c, err := adaptive.NewChaCha20(key)
		return c, salt, err
	default:
		return nil, nil, fmt.Errorf("snapshot: unsupported algorithm: %s", algo)
	}
}

// DeriveKeyFromPassphrase derives a 32-byte key from a passphrase using Argon2id.
// If salt is nil, a new random salt is generated and prepended to the result.
func DeriveKeyFromPassphrase(passphrase []byte, salt []byte) ([]byte, error) {
	if salt == nil {
		salt = make([]byte, SaltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("snapshot: derive key: %w", err)
		}
	}

	key := argon2.IDKey(
		passphrase,
		salt,
		argon2Time,
		argon2Memory,
		argon2Threads,
		argon2KeyLen,
	)

	// Prepend salt to key for storage.
	result := make([]byte, len(salt)+len(key))
	copy(result, salt)
	copy(result[len(salt):], key)
	return result, nil
}

// ExtractKeyFromDerived extracts the key from a derived key (salt+key format).
func ExtractKeyFromDerived(derived []byte) (salt, key []byte, err error) {
	if len(derived) < SaltLength+argon2KeyLen {
		return nil, nil, fmt.Errorf("snapshot: invalid derived key length")
	}
	return derived[:SaltLength], derived[SaltLength:], nil
}

// DeriveSubkey derives a subkey from a master key using HKDF. Useful
// for deriving one key per Raft group from a single configured master
// key, so a leaked group snapshot doesn't expose the others.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	if len(masterKey) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("snapshot: derive subkey: %w", err)
	}
	return key, nil
}

// GenerateKey generates a random encryption key of the specified length.
func GenerateKey(length int) ([]byte, error) {
	if length < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("snapshot: generate key: %w", err)
	}
	return key, nil
}

// ZeroKey securely zeros a key in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

// encryptWriter seals a byte stream in chunkSize-bounded AEAD frames,
// each length-prefixed so decryptReader can pull one ciphertext frame
// at a time without buffering the whole stream.
type encryptWriter struct {
	w      io.Writer
	cipher adaptive.Cipher
	buf    []byte
	seq    uint64
}

// NewEncryptWriter wraps w so every Write call's bytes are buffered and
// sealed in fixed-size chunks. Callers must call Close to flush and
// authenticate the final partial chunk and write the end-of-stream marker.
func NewEncryptWriter(w io.Writer, cipher adaptive.Cipher) io.WriteCloser {
	return &encryptWriter{w: w, cipher: cipher, buf: make([]byte, 0, chunkSize)}
}

func (e *encryptWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		n := copy(e.buf[len(e.buf):cap(e.buf)], p)
		e.buf = e.buf[:len(e.buf)+n]
		p = p[n:]
		if len(e.buf) == cap(e.buf) {
			if err := e.flush(); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

func (e *encryptWriter) flush() error {
	if len(e.buf) == 0 {
		return nil
	}
	sealed, err := e.cipher.Encrypt(e.buf, chunkAAD(e.seq))
	if err != nil {
		return fmt.Errorf("snapshot: seal chunk %d: %w", e.seq, err)
	}
	e.seq++
	e.buf = e.buf[:0]
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(sealed)))
	if _, err := e.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = e.w.Write(sealed)
	return err
}

// Close flushes any buffered plaintext as a final (possibly short)
// chunk, then writes a zero-length frame marking end-of-stream.
func (e *encryptWriter) Close() error {
	if err := e.flush(); err != nil {
		return err
	}
	var lenBuf [4]byte
	_, err := e.w.Write(lenBuf[:])
	return err
}

type decryptReader struct {
	r      io.Reader
	cipher adaptive.Cipher
	buf    []byte
	seq    uint64
	done   bool
}

// NewDecryptReader reverses NewEncryptWriter: it reads length-prefixed
// sealed chunks from r and yields the authenticated plaintext.
func NewDecryptReader(r io.Reader, cipher adaptive.Cipher) io.Reader {
	return &decryptReader{r: r, cipher: cipher}
}

func (d *decryptReader) Read(p []byte) (int, error) {
	for len(d.buf) == 0 {
		if d.done {
			return 0, io.EOF
		}
		var lenBuf [4]byte
		if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
			return 0, fmt.Errorf("snapshot: read chunk length: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n == 0 {
			d.done = true
			return 0, io.EOF
		}
		sealed := make([]byte, n)
		if _, err := io.ReadFull(d.r, sealed); err != nil {
			return 0, fmt.Errorf("snapshot: read chunk %d: %w", d.seq, err)
		}
		plain, err := d.cipher.Decrypt(sealed, chunkAAD(d.seq))
		if err != nil {
			return 0, fmt.Errorf("%w: chunk %d: %v", ErrDecryptionFailed, d.seq, err)
		}
		d.seq++
		d.buf = plain
	}
	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	return n, nil
}

// chunkAAD binds each frame to its position in the stream, so the
// ciphertext frames of one snapshot can't be reordered or spliced into
// another without failing authentication.
func chunkAAD(seq uint64) []byte {
	var aad [8]byte
	binary.BigEndian.PutUint64(aad[:], seq)
	return aad[:]
}
