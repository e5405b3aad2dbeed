package services

import (
	"fmt"
	"time"

	"guardian-api/internal/config"

	"gopkg.in/gomail.v2"
)

// Mailer is the boundary contract with the mail transport.
type Mailer interface {
	Send(to, subject, body string, isHTML bool) error
}

// SMTPMailer delivers mail over SMTP. Sends are bounded by the configured
// mail timeout so a slow SMTP server cannot hang a request handler.
type SMTPMailer struct {
	host     string
	port     int
	user     string
	password string
	from     string
	timeout  time.Duration
}

// NewSMTPMailer creates an SMTP mailer from configuration.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.FromEmail,
		timeout:  cfg.MailTimeout,
	}
}

// Send dials the SMTP server and delivers one message.
func (m *SMTPMailer) Send(to, subject, body string, isHTML bool) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	if isHTML {
		msg.SetBody("text/html", body)
	} else {
		msg.SetBody("text/plain", body)
	}

	d := gomail.NewDialer(m.host, m.port, m.user, m.password)

	// gomail does not take a context; bound the send ourselves.
	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(msg)
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(m.timeout):
		return fmt.Errorf("smtp send to %s timed out after %s", to, m.timeout)
	}
}
