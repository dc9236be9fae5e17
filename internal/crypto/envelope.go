package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

func newSHA256() hash.Hash { return sha256.New() }

// ErrDecrypt is returned when an AES-GCM open fails (wrong key, tampered
// ciphertext, or mismatched tag).
var ErrDecrypt = errors.New("crypto: decryption failed")

// DEKSize is the size in bytes of a per-secret data-encryption key (spec
// §4.7: "Generate a fresh 32-byte DEK").
const DEKSize = 32

// GenerateDEK returns a fresh random 32-byte data-encryption key.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, DEKSize)
	if _, err := rand.Read(dek); err != nil {
		return nil, err
	}
	return dek, nil
}

// Sealed is the output of an AES-GCM seal: ciphertext, IV (nonce), and
// authentication tag kept separate to match the ConnectorSecret column
// layout in spec §3 (secretCiphertext/secretIv/secretTag, and the DEK's own
// dekCiphertext/dekIv/dekTag once wrapped under the KEK).
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// Seal encrypts plaintext with AES-256-GCM under key, returning ciphertext,
// nonce, and tag as separate fields the way the vault's storage columns
// expect them.
func Seal(key, plaintext, aad []byte) (Sealed, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return Sealed{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Sealed{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, err
	}
	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	// crypto/cipher appends the tag to the ciphertext; split it back out so
	// callers can persist it in its own column, per the data model.
	tagSize := gcm.Overhead()
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]
	return Sealed{Ciphertext: ct, IV: nonce, Tag: tag}, nil
}

// Open decrypts a Sealed value with key, verifying aad and the tag.
func Open(key []byte, s Sealed, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	combined := append(append([]byte{}, s.Ciphertext...), s.Tag...)
	plaintext, err := gcm.Open(nil, s.IV, combined, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// DeriveKey stretches raw KEK material (as pulled from the object store)
// into a fixed-size AES key using HKDF-SHA256, scoped by info so different
// purposes (DEK wrapping, OAuth cookie signing, etc.) never share a derived
// key even if they share the same root secret.
func DeriveKey(rootMaterial []byte, salt, info []byte, size int) ([]byte, error) {
	r := hkdf.New(newSHA256, rootMaterial, salt, info)
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
