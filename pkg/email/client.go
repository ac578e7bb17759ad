package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/Alijeyrad/franchise_backend/config"
	"gopkg.in/gomail.v2"
)

// Message is one outgoing email. At least one of TextBody and HTMLBody must
// be set.
type Message struct {
	To       []string
	CC       []string
	BCC      []string
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
}

// Client sends mail over SMTP. A disabled client fails every Send with
// ErrDisabled.
type Client struct {
	cfg Config
}

// NewFromCentral creates a new email client from central config
func NewFromCentral(cfg config.EmailConfig) (*Client, error) {
	return New(FromCentralConfig(cfg))
}

func New(cfg Config) (*Client, error) {
	if cfg.Enabled && (cfg.SMTPHost == "" || strings.TrimSpace(cfg.From) == "") {
		return nil, fmt.Errorf("email: smtp host and from address are required when enabled")
	}
	return &Client{cfg: cfg}, nil
}

// Send delivers m, giving up at the earlier of ctx's deadline and the
// configured SMTP timeout.
func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.cfg.Enabled {
		return ErrDisabled{}
	}

	msg, err := buildMessage(c.cfg.From, m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SMTPTimeout())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.dialer().DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return ErrSend{Provider: "smtp", Err: err}
		}
		return nil
	case <-ctx.Done():
		return ErrSend{Provider: "smtp", Err: ctx.Err()}
	}
}

func (c *Client) dialer() *gomail.Dialer {
	d := gomail.NewDialer(c.cfg.SMTPHost, c.cfg.SMTPPort, c.cfg.SMTPUsername, c.cfg.SMTPPassword)
	d.SSL = c.cfg.SMTPUseTLS
	d.TLSConfig = &tls.Config{ServerName: c.cfg.SMTPHost, InsecureSkipVerify: c.cfg.SMTPSkipVerify}
	return d
}

func buildMessage(from string, m Message) (*gomail.Message, error) {
	msg := gomail.NewMessage()

	from = strings.TrimSpace(from)
	if from == "" {
		return nil, ErrInvalidMessage{Reason: "from is required"}
	}
	msg.SetHeader("From", from)

	to := cleanAddrs(m.To)
	if len(to) == 0 {
		return nil, ErrInvalidMessage{Reason: "at least one recipient is required"}
	}
	msg.SetHeader("To", to...)
	if len(m.CC) > 0 {
		msg.SetHeader("Cc", cleanAddrs(m.CC)...)
	}
	if len(m.BCC) > 0 {
		msg.SetHeader("Bcc", cleanAddrs(m.BCC)...)
	}

	subj := strings.TrimSpace(m.Subject)
	if subj == "" {
		return nil, ErrInvalidMessage{Reason: "subject is required"}
	}
	msg.SetHeader("Subject", subj)

	for k, v := range m.Headers {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		msg.SetHeader(k, v)
	}

	hasText := strings.TrimSpace(m.TextBody) != ""
	hasHTML := strings.TrimSpace(m.HTMLBody) != ""

	switch {
	case hasText && hasHTML:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case hasHTML:
		msg.SetBody("text/html", m.HTMLBody)
	case hasText:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, ErrInvalidMessage{Reason: "either TextBody or HTMLBody is required"}
	}

	return msg, nil
}

func cleanAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
