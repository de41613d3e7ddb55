package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contactly/core/internal/config"
)

const resendEndpoint = "https://api.resend.com/emails"

// Message is a single outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers messages over SMTP or the Resend API, depending on config.
// With mail disabled every message is dropped and logged, so dev environments
// never need a mail server.
type Sender struct {
	cfg    config.MailConfig
	http   *http.Client
	logger *zap.Logger
}

func New(cfg config.MailConfig, logger *zap.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func (s *Sender) Send(msg Message) error {
	if !s.cfg.Enable {
		s.logger.Info("mail disabled, dropping message",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
		)
		return nil
	}
	if s.cfg.UseResend && s.cfg.ResendKey != "" {
		return s.sendResend(msg)
	}
	return s.sendSMTP(msg)
}

func (s *Sender) from() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return s.cfg.User
}

func (s *Sender) sendSMTP(msg Message) error {
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	from := s.from()

	headers := []string{
		"MIME-Version: 1.0",
		"From: " + from,
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + msg.Subject,
		"Content-Type: text/html; charset=UTF-8",
	}
	if s.cfg.ReplyTo != "" {
		headers = append(headers, "Reply-To: "+s.cfg.ReplyTo)
	}

	var body bytes.Buffer
	body.WriteString(strings.Join(headers, "\r\n"))
	body.WriteString("\r\n\r\n")
	body.WriteString(msg.HTML)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, port)
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	return smtp.SendMail(addr, auth, from, msg.To, body.Bytes())
}

func (s *Sender) sendResend(msg Message) error {
	payload, err := json.Marshal(map[string]interface{}{
		"from":    s.from(),
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", resendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("resend status %d: %s", resp.StatusCode, apiErr.Message)
	}
	return nil
}
