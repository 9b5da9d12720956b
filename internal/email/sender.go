package email

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"
)

// Dialer is the part of *gomail.Dialer the sender uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	From    string
	Retries int

	dialer Dialer
}

func NewSender(host string, port int, user, password, from string, retries int) *Sender {
	return &Sender{
		From:    from,
		Retries: retries,
		dialer:  gomail.NewDialer(host, port, user, password),
	}
}

// NewSenderWithDialer is used when the SMTP connection is provided elsewhere.
func NewSenderWithDialer(d Dialer, from string, retries int) *Sender {
	return &Sender{From: from, Retries: retries, dialer: d}
}

func (s *Sender) message(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

// Send delivers one pre-rendered email, retrying with exponential backoff
// until ctx expires. gomail has no context support, so a hung dial is
// abandoned when ctx is done and reported as a failure.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	m := s.message(to, subject, body)

	operation := func() error {
		return s.dialAndSend(ctx, m)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if s.Retries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(s.Retries))
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}
	return nil
}

func (s *Sender) dialAndSend(ctx context.Context, m *gomail.Message) error {
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return backoff.Permanent(ctx.Err())
	}
}
