package maildir

import (
	"fmt"
	"strings"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/errors"
)

func init() {
	mailcapture.Register("maildir", func(config mailcapture.StoreConfig) (mailcapture.CaptureStore, error) {
		return Open(config)
	})
}

// Open initializes the Maildir at config.BasePath if needed and returns a
// Catalog over it. Mail clients read the files directly, so sealing options
// are rejected.
func Open(config mailcapture.StoreConfig) (*mailcapture.Catalog, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("%w: base path is required", errors.ErrStoreConfigInvalid)
	}
	for key := range config.Options {
		if strings.HasPrefix(key, "seal_") {
			return nil, fmt.Errorf("%w: %s is not supported by maildir stores", errors.ErrStoreConfigInvalid, key)
		}
	}

	store := NewStore(config.BasePath, config.Logger)
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("create maildir: %w", err)
	}
	return mailcapture.NewCatalog(store, config.CatalogOptions()...), nil
}
