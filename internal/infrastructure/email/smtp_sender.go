package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
)

var (
	// ErrPermanent marks failures a retry cannot fix (bad address, rejected credentials).
	ErrPermanent = errors.New("smtp: permanent failure")
	ErrTemporary = errors.New("smtp: temporary failure")
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
	Insecure bool
}

// SMTPSender delivers account emails directly over SMTP.
type SMTPSender struct {
	lg  zerolog.Logger
	cfg SMTPConfig

	// deliver is replaced in tests.
	deliver func(ctx context.Context, m *mail.Msg) error
}

func NewSMTPSender(cfg SMTPConfig, lg zerolog.Logger) *SMTPSender {
	if cfg.FromName == "" {
		cfg.FromName = "Notes App"
	}
	s := &SMTPSender{
		lg:  lg.With().Str("component", "smtp_sender").Logger(),
		cfg: cfg,
	}
	s.deliver = s.dialAndSend
	return s
}

func (s *SMTPSender) NotifyWelcome(ctx context.Context, evt auth.WelcomeEvent) error {
	r, err := renderWelcome(evt.Name, evt.URL)
	if err != nil {
		return err
	}
	return s.send(ctx, evt.Email, r)
}

func (s *SMTPSender) NotifyPasswordReset(ctx context.Context, evt auth.PasswordResetEvent) error {
	r, err := renderPasswordReset(evt.Name, evt.URL, time.Duration(evt.ExpiresInSec)*time.Second)
	if err != nil {
		return err
	}
	return s.send(ctx, evt.Email, r)
}

func (s *SMTPSender) send(ctx context.Context, to string, r rendered) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	m, err := s.buildMsg(to, r)
	if err != nil {
		return err
	}

	s.lg.Info().Str("to", to).Str("subject", r.Subject).Msg("attempting smtp send")
	if err := s.deliver(ctx, m); err != nil {
		s.lg.Error().Err(err).Str("to", to).Msg("smtp send failed")
		return err
	}
	s.lg.Info().Str("to", to).Msg("smtp send ok")
	return nil
}

func (s *SMTPSender) buildMsg(to string, r rendered) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return nil, fmt.Errorf("%w: invalid from address: %v", ErrPermanent, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("%w: invalid to address: %v", ErrPermanent, err)
	}
	m.Subject(r.Subject)
	m.SetDate()
	m.SetMessageID()

	// Text fallback + HTML alternative
	m.SetBodyString(mail.TypeTextPlain, r.Text)
	m.AddAlternativeString(mail.TypeTextHTML, r.HTML)
	return m, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, m *mail.Msg) error {
	tlsPolicy := mail.TLSMandatory
	if s.cfg.Insecure {
		tlsPolicy = mail.TLSOpportunistic
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("%w: smtp client init: %v", ErrPermanent, err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	msg := err.Error()
	if containsAny(msg, "535", "5.7.8", "authentication", "Username and Password not accepted") {
		return fmt.Errorf("%w: smtp auth: %v", ErrPermanent, err)
	}
	return fmt.Errorf("%w: %v", ErrTemporary, err)
}

func containsAny(s string, subs ...string) bool {
	for _, x := range subs {
		if x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}
