// Package smtpsink accepts mail over SMTP and captures it instead of
// relaying it.
//
// Every MAIL FROM and RCPT TO is accepted. The message data is handed to a
// mailcapture.DeliveryAgent together with the envelope, so Bcc recipients
// are kept.
package smtpsink

import (
	"context"
	"log/slog"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/infodancer/mailcapture"
)

// Defaults applied by NewServer to zero Config fields.
const (
	DefaultAddr            = "127.0.0.1:2525"
	DefaultDomain          = "localhost"
	DefaultTimeout         = 30 * time.Second
	DefaultMaxMessageBytes = 25 << 20
	DefaultMaxRecipients   = 100
)

// Config controls the SMTP listener.
type Config struct {
	Addr            string
	Domain          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	MaxRecipients   int
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultTimeout
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.MaxRecipients == 0 {
		c.MaxRecipients = DefaultMaxRecipients
	}
	return c
}

// NewServer returns an SMTP server that captures every message into agent.
// The caller starts it with ListenAndServe or Serve and stops it with Close.
// Captures run under ctx, so canceling it stops deliveries still in flight.
func NewServer(ctx context.Context, cfg Config, agent mailcapture.DeliveryAgent, logger *slog.Logger) *smtp.Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	srv := smtp.NewServer(NewBackend(ctx, agent, logger))
	srv.Addr = cfg.Addr
	srv.Domain = cfg.Domain
	srv.ReadTimeout = cfg.ReadTimeout
	srv.WriteTimeout = cfg.WriteTimeout
	srv.MaxMessageBytes = cfg.MaxMessageBytes
	srv.MaxRecipients = cfg.MaxRecipients
	srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	return srv
}
