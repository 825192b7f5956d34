// Package maildir provides a capture backend that writes into a Maildir.
//
// Captures land in a single Maildir so any mail client that reads Maildir
// can browse them:
//
//	basePath/
//	├── new/     # captures not yet scanned
//	├── cur/     # captures seen by a scan or a mail client
//	└── tmp/     # in-flight deliveries
//
// Each file is the captured RFC 5322 message preceded by X-Mailcapture-*
// trace fields carrying the capture id, time and envelope. Messages without
// those fields are ignored, so the directory may be shared with other tools.
//
// The package registers itself with the mailcapture registry under the name
// "maildir". Import it with a blank identifier to enable it:
//
//	import _ "github.com/infodancer/mailcapture/maildir"
//
// Then open a store:
//
//	store, err := mailcapture.Open(mailcapture.StoreConfig{
//	    Type:     "maildir",
//	    BasePath: "/tmp/Maildir",
//	})
package maildir
