package email

import (
	"time"

	"github.com/Alijeyrad/franchise_backend/config"
)

// Config holds email service configuration
type Config struct {
	Enabled bool
	From    string

	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	SMTPUseTLS         bool
	SMTPTimeoutSeconds int
	// SMTPSkipVerify disables certificate checks; only for local relays.
	SMTPSkipVerify bool
}

// SMTPTimeout returns the SMTP timeout as a duration
func (c Config) SMTPTimeout() time.Duration {
	if c.SMTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SMTPTimeoutSeconds) * time.Second
}

// FromCentralConfig converts central config.EmailConfig to package Config.
// The port defaults to 465 with implicit TLS and 587 otherwise.
func FromCentralConfig(c config.EmailConfig) Config {
	port := c.SMTP.Port
	if port == 0 {
		port = 587
		if c.SMTP.UseTLS {
			port = 465
		}
	}
	return Config{
		Enabled:            c.Enabled,
		From:               c.From,
		SMTPHost:           c.SMTP.Host,
		SMTPPort:           port,
		SMTPUsername:       c.SMTP.Username,
		SMTPPassword:       c.SMTP.Password,
		SMTPUseTLS:         c.SMTP.UseTLS,
		SMTPTimeoutSeconds: c.SMTP.TimeoutSeconds,
		SMTPSkipVerify:     c.SMTP.SkipVerify,
	}
}
