// Package mailcapture persists outgoing messages as individually addressable
// records instead of transmitting them, and exposes a small catalog API for
// browsing the captured traffic during development.
package mailcapture

// CaptureStore combines capture and catalog operations.
// It embeds Mailer (for application code), DeliveryAgent (for the SMTP sink)
// and MessageCatalog (for inspection tools).
type CaptureStore interface {
	Mailer
	DeliveryAgent
	MessageCatalog
}
