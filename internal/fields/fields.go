// Package fields encrypts and decrypts single attributes of a file
// (payload, hash, mime type, name) with a per-file key pair.
package fields

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"errors"
	"fmt"

	"github.com/pavel-fokin/files-vault/internal/keys"
)

var (
	// ErrPlaintextTooLarge is returned when the plaintext does not fit into
	// one asymmetric encryption with the given key.
	ErrPlaintextTooLarge = errors.New("plaintext too large for key")
	ErrDecryption        = errors.New("decryption failed")
)

// Encryptor is stateless; the zero value is ready to use.
// Large inputs are never chunked.
type Encryptor struct{}

// Encrypt encrypts plaintext with the public half of kp using RSA-OAEP (SHA-1).
func (Encryptor) Encrypt(kp *keys.KeyPair, plaintext []byte) ([]byte, error) {
	if limit := kp.MaxPlaintext(); len(plaintext) > limit {
		return nil, fmt.Errorf("%w: %d bytes > %d bytes for a %d-bit key", ErrPlaintextTooLarge, len(plaintext), limit, kp.Bits())
	}

	ciphertext, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, kp.Public(), plaintext, nil)
	if err != nil {
		if errors.Is(err, rsa.ErrMessageTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrPlaintextTooLarge, err)
		}
		return nil, fmt.Errorf("failed to encrypt field: %w", err)
	}

	return ciphertext, nil
}

// Decrypt decrypts ciphertext with the private half of kp and returns raw bytes.
func (Encryptor) Decrypt(kp *keys.KeyPair, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != kp.Size() {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes, key expects %d", ErrDecryption, len(ciphertext), kp.Size())
	}

	plaintext, err := rsa.DecryptOAEP(sha1.New(), nil, kp.Private(), ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	return plaintext, nil
}

// DecryptString decrypts ciphertext and returns it as UTF-8 text.
func (e Encryptor) DecryptString(kp *keys.KeyPair, ciphertext []byte) (string, error) {
	plaintext, err := e.Decrypt(kp, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
