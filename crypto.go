package mailcapture

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/infodancer/mailcapture/errors"
)

const (
	// SealAlgorithm identifies the sealing scheme for sealed records.
	SealAlgorithm = "x25519-xsalsa20-poly1305"

	// KeySize is the size of an X25519 public or private key.
	KeySize = 32

	// NonceSize is the size of the NaCl box nonce.
	NonceSize = 24
)

// GenerateSealKeys returns a new X25519 key pair, hex encoded.
func GenerateSealKeys() (publicKey, privateKey string, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(pub[:]), hex.EncodeToString(priv[:]), nil
}

// ParseSealKey decodes a hex encoded X25519 key.
func ParseSealKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidKeyFormat, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", errors.ErrInvalidKeyFormat, len(key), KeySize)
	}
	return key, nil
}

// PublicKeyFor derives the X25519 public key matching privateKey.
func PublicKeyFor(privateKey []byte) ([]byte, error) {
	if len(privateKey) != KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", errors.ErrInvalidKeyFormat, len(privateKey), KeySize)
	}
	return curve25519.X25519(privateKey, curve25519.Basepoint)
}
