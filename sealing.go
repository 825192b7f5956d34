package mailcapture

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/infodancer/mailcapture/errors"
)

// sealMagic prefixes every sealed record.
var sealMagic = []byte("MCS1")

// SealedCodec wraps another codec and seals its output with NaCl box
// (X25519 + XSalsa20-Poly1305) for a single recipient key pair.
// Writers only need the public key; readers need the private key.
type SealedCodec struct {
	// inner encodes records before sealing.
	inner Codec

	publicKey  []byte
	privateKey []byte
}

// NewSealedCodec creates a sealing codec around inner.
// publicKey may be nil when privateKey is set; it is derived.
// privateKey may be nil for write-only use.
func NewSealedCodec(inner Codec, publicKey, privateKey []byte) (*SealedCodec, error) {
	if inner == nil {
		inner = CBORCodec{}
	}
	if publicKey == nil && privateKey != nil {
		derived, err := PublicKeyFor(privateKey)
		if err != nil {
			return nil, err
		}
		publicKey = derived
	}
	if publicKey == nil {
		return nil, errors.ErrSealKeyMissing
	}
	if len(publicKey) != KeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes", errors.ErrInvalidKeyFormat, len(publicKey))
	}
	if privateKey != nil && len(privateKey) != KeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", errors.ErrInvalidKeyFormat, len(privateKey))
	}
	return &SealedCodec{
		inner:      inner,
		publicKey:  publicKey,
		privateKey: privateKey,
	}, nil
}

// Marshal implements Codec.
func (c *SealedCodec) Marshal(rec *Record) ([]byte, error) {
	plain, err := c.inner.Marshal(rec)
	if err != nil {
		return nil, err
	}
	sealed, err := seal(plain, c.publicKey)
	if err != nil {
		return nil, fmt.Errorf("seal record: %w", err)
	}
	return append(append([]byte(nil), sealMagic...), sealed...), nil
}

// Unmarshal implements Codec. Records written before sealing was enabled
// are passed to the inner codec unchanged.
func (c *SealedCodec) Unmarshal(data []byte) (*Record, error) {
	if !bytes.HasPrefix(data, sealMagic) {
		return c.inner.Unmarshal(data)
	}
	if c.privateKey == nil {
		return nil, errors.ErrSealKeyMissing
	}
	plain, err := unseal(data[len(sealMagic):], c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("unseal record: %w", err)
	}
	return c.inner.Unmarshal(plain)
}

// seal encrypts data using NaCl box with an ephemeral key pair.
// Returns: ephemeral_public_key (32B) || nonce (24B) || ciphertext
func seal(data []byte, recipientPubKey []byte) ([]byte, error) {
	ephemeralPub, ephemeralPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}

	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	var recipientKey [KeySize]byte
	copy(recipientKey[:], recipientPubKey)

	ciphertext := box.Seal(nil, data, &nonce, &recipientKey, ephemeralPriv)

	result := make([]byte, KeySize+NonceSize+len(ciphertext))
	copy(result[:KeySize], ephemeralPub[:])
	copy(result[KeySize:KeySize+NonceSize], nonce[:])
	copy(result[KeySize+NonceSize:], ciphertext)
	return result, nil
}

// unseal reverses seal using the recipient's private key.
func unseal(sealed []byte, privateKey []byte) ([]byte, error) {
	minSize := KeySize + NonceSize + box.Overhead
	if len(sealed) < minSize {
		return nil, fmt.Errorf("sealed data too short: %d < %d", len(sealed), minSize)
	}

	var ephemeralPub [KeySize]byte
	copy(ephemeralPub[:], sealed[:KeySize])

	var nonce [NonceSize]byte
	copy(nonce[:], sealed[KeySize:KeySize+NonceSize])

	var privKey [KeySize]byte
	copy(privKey[:], privateKey)

	plain, ok := box.Open(nil, sealed[KeySize+NonceSize:], &nonce, &ephemeralPub, &privKey)
	if !ok {
		return nil, fmt.Errorf("decryption failed")
	}
	return plain, nil
}

// Compile-time interface verification.
var _ Codec = (*SealedCodec)(nil)
