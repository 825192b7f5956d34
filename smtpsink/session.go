package smtpsink

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-smtp"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/errors"
)

// Backend implements smtp.Backend on top of a DeliveryAgent.
type Backend struct {
	ctx    context.Context
	agent  mailcapture.DeliveryAgent
	logger *slog.Logger
}

// NewBackend creates a Backend delivering into agent. Deliveries run under
// ctx; canceling it aborts captures still in flight.
func NewBackend(ctx context.Context, agent mailcapture.DeliveryAgent, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{ctx: ctx, agent: agent, logger: logger}
}

// NewSession implements smtp.Backend.
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	logger := b.logger
	if c != nil && c.Conn() != nil {
		logger = logger.With(slog.String("remote", c.Conn().RemoteAddr().String()))
	}
	return &session{backend: b, logger: logger}, nil
}

type session struct {
	backend    *Backend
	logger     *slog.Logger
	from       string
	recipients []string
}

// Mail implements smtp.Session. Any sender is accepted, including the
// null reverse-path.
func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = normalizeAddress(from)
	return nil
}

// Rcpt implements smtp.Session. Any recipient is accepted; nothing leaves
// the machine.
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	addr := normalizeAddress(to)
	if addr == "" {
		return &smtp.SMTPError{
			Code:         501,
			EnhancedCode: smtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}
	s.recipients = append(s.recipients, addr)
	return nil
}

// Data implements smtp.Session.
func (s *session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "no valid recipients",
		}
	}

	envelope := mailcapture.Envelope{
		From:       s.from,
		Recipients: append([]string(nil), s.recipients...),
	}
	if err := s.backend.agent.Deliver(s.backend.ctx, envelope, r); err != nil {
		if stderrors.Is(err, errors.ErrInvalidMessage) {
			return &smtp.SMTPError{
				Code:         554,
				EnhancedCode: smtp.EnhancedCode{5, 6, 0},
				Message:      "malformed message",
			}
		}
		if stderrors.Is(err, smtp.ErrDataTooLarge) {
			return smtp.ErrDataTooLarge
		}
		s.logger.Error("capture failed",
			slog.String("from", envelope.From),
			slog.Any("error", err))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "capture failed, try again later",
		}
	}

	s.logger.Info("captured message",
		slog.String("from", envelope.From),
		slog.Int("recipients", len(envelope.Recipients)))
	return nil
}

// Reset implements smtp.Session.
func (s *session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout implements smtp.Session.
func (s *session) Logout() error {
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	return strings.Trim(addr, "<>")
}

// Compile-time interface verification.
var (
	_ smtp.Backend = (*Backend)(nil)
	_ smtp.Session = (*session)(nil)
)
