// Package filestore provides the flat-directory capture backend.
//
// Every capture is a single file in one directory, named after its capture
// time and id so that ordering and lookup need no file contents:
//
//	basePath/
//	├── 20240101120000-a1b2c3.mail
//	├── 20240101120005-9f00d1.mail
//	└── ...
//
// There is no manifest; the directory listing is the catalog. Files hold a
// CBOR record, optionally sealed to an X25519 key.
//
// The package registers itself with the mailcapture registry under the name
// "file". Import it with a blank identifier to enable it:
//
//	import _ "github.com/infodancer/mailcapture/filestore"
//
// Then open a store:
//
//	store, err := mailcapture.Open(mailcapture.StoreConfig{
//	    Type:     "file",
//	    BasePath: "/tmp/mails",
//	})
package filestore
