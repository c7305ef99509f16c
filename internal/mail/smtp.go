package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	dialer dialer
	from   string
	domain string
	log    *zap.Logger
}

// NewSMTPSender returns a sender for cfg. A connection is opened per message.
func NewSMTPSender(cfg SMTPConfig, log *zap.Logger) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
		domain: messageDomain(from, cfg.Host),
		log:    log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) Result {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	if len(msg.To) == 0 {
		return failed(errors.New("no recipients"))
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.domain)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.log.Error("email send failed", zap.Strings("to", msg.To), zap.Error(err))
		return failed(err)
	}

	s.log.Info("email sent", zap.String("message_id", id), zap.Strings("to", msg.To))
	return Result{Success: true, MessageID: id}
}

func messageDomain(from, host string) string {
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	if host != "" {
		return host
	}
	return "localhost"
}
