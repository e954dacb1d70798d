// Package keys generates, exports and loads the per-file RSA key pairs.
//
// A KeyPair lives only for the duration of a single request: it is created
// for one file, its private half is handed back to the caller, and it is
// never cached or written anywhere.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultBits is the modulus size used when deployment config sets none.
	DefaultBits = 512
	// MinBits and MaxBits bound the modulus sizes Generate accepts.
	MinBits = 512
	MaxBits = 16384

	pemBlockPKCS1 = "RSA PRIVATE KEY"
	pemBlockPKCS8 = "PRIVATE KEY"
)

var (
	ErrInvalidModulus = errors.New("invalid modulus size")
	ErrMalformedKey   = errors.New("malformed key")
)

// KeyPair is an RSA key pair. The public half encrypts, the private half decrypts.
type KeyPair struct {
	private *rsa.PrivateKey
}

// ValidateBits reports whether bits is a modulus size Generate accepts.
func ValidateBits(bits int) error {
	if bits < MinBits || bits > MaxBits || bits%8 != 0 {
		return fmt.Errorf("%w: %d bits (want a multiple of 8 in [%d, %d])", ErrInvalidModulus, bits, MinBits, MaxBits)
	}
	return nil
}

// Generate creates a fresh key pair with a modulus of the given size.
func Generate(bits int) (*KeyPair, error) {
	if err := ValidateBits(bits); err != nil {
		return nil, err
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %d-bit key: %w", bits, err)
	}

	return &KeyPair{private: key}, nil
}

// Load reconstructs a key pair from exported private key text.
// Both PKCS#1 and PKCS#8 PEM encodings are accepted.
func Load(material string) (*KeyPair, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(material)))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrMalformedKey)
	}

	switch block.Type {
	case pemBlockPKCS1:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		return &KeyPair{private: key}, nil
	case pemBlockPKCS8:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA private key", ErrMalformedKey)
		}
		return &KeyPair{private: key}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrMalformedKey, block.Type)
	}
}

// Export renders the private key as PKCS#1 PEM text.
func (k *KeyPair) Export() string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  pemBlockPKCS1,
		Bytes: x509.MarshalPKCS1PrivateKey(k.private),
	}))
}

// Public returns the encrypting half.
func (k *KeyPair) Public() *rsa.PublicKey {
	return &k.private.PublicKey
}

// Private returns the decrypting half.
func (k *KeyPair) Private() *rsa.PrivateKey {
	return k.private
}

// Bits returns the modulus size.
func (k *KeyPair) Bits() int {
	return k.private.N.BitLen()
}

// Size returns the modulus size in bytes, which is also the ciphertext size.
func (k *KeyPair) Size() int {
	return k.private.Size()
}

// MaxPlaintext is the largest plaintext a single OAEP (SHA-1) encryption
// with this key can carry.
func (k *KeyPair) MaxPlaintext() int {
	n := k.Size() - 2*sha1.Size - 2
	if n < 0 {
		return 0
	}
	return n
}

// Factory exposes Generate and Load as methods so callers can depend on an interface.
type Factory struct{}

// Generate calls the package-level Generate.
func (Factory) Generate(bits int) (*KeyPair, error) {
	return Generate(bits)
}

// Load calls the package-level Load.
func (Factory) Load(material string) (*KeyPair, error) {
	return Load(material)
}
