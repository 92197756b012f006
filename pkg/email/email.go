package email

import (
	"fmt"
	"net/smtp"
)

// Sender sends plain text email over SMTP with PLAIN auth.
type Sender struct {
	host     string
	port     string
	sender   string
	password string
}

// NewSender creates a new Sender from explicit SMTP settings.
func NewSender(host, port, sender, password string) *Sender {
	return &Sender{
		host:     host,
		port:     port,
		sender:   sender,
		password: password,
	}
}

// SendEmail sends a plain text email using SMTP.
func (s *Sender) SendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.sender, s.password, s.host)

	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")

	address := s.host + ":" + s.port

	err := smtp.SendMail(address, auth, s.sender, []string{to}, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
