package filestore

import (
	"fmt"
	"os"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/errors"
)

// Option keys understood by the "file" store type.
const (
	OptionSealPublicKey  = "seal_public_key"
	OptionSealPrivateKey = "seal_private_key"
)

func init() {
	mailcapture.Register("file", func(config mailcapture.StoreConfig) (mailcapture.CaptureStore, error) {
		return Open(config)
	})
}

// Open creates the capture directory if needed and returns a Catalog over it.
func Open(config mailcapture.StoreConfig) (*mailcapture.Catalog, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("%w: base path is required", errors.ErrStoreConfigInvalid)
	}

	codec, err := codecFromOptions(config.Options)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}

	store := NewStore(config.BasePath, codec, config.Logger)
	return mailcapture.NewCatalog(store, config.CatalogOptions()...), nil
}

// codecFromOptions returns a sealing codec when a seal key is configured
// and the plain CBOR codec otherwise.
func codecFromOptions(options map[string]string) (mailcapture.Codec, error) {
	pubHex := options[OptionSealPublicKey]
	privHex := options[OptionSealPrivateKey]
	if pubHex == "" && privHex == "" {
		return mailcapture.CBORCodec{}, nil
	}

	var pub, priv []byte
	var err error
	if pubHex != "" {
		if pub, err = mailcapture.ParseSealKey(pubHex); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errors.ErrStoreConfigInvalid, OptionSealPublicKey, err)
		}
	}
	if privHex != "" {
		if priv, err = mailcapture.ParseSealKey(privHex); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errors.ErrStoreConfigInvalid, OptionSealPrivateKey, err)
		}
	}
	return mailcapture.NewSealedCodec(mailcapture.CBORCodec{}, pub, priv)
}
