package sms

import (
	"context"
	"fmt"
	"sort"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/arsmn/go-smsir/smsir"
)

// Client provides SMS sending functionality via sms.ir.
type Client struct {
	client     *smsir.Client
	enabled    bool
	templateID string
}

// NewFromConfig creates a new SMS client from the application configuration.
// If SMS is disabled, returns a client that no-ops on all operations.
func NewFromConfig(cfg config.SMSConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{enabled: false}, nil
	}

	if cfg.SMSIR.APIKey == "" {
		return nil, fmt.Errorf("sms.ir API key required when SMS enabled")
	}

	client := smsir.NewClient().WithAuthentication(cfg.SMSIR.APIKey, cfg.SMSIR.SecretKey)

	return &Client{
		client:     client,
		enabled:    true,
		templateID: cfg.SMSIR.TemplateID,
	}, nil
}

// SendTemplate sends an sms.ir ultra-fast template message. params fill the
// template's named parameters. If SMS is disabled, this is a no-op.
func (c *Client) SendTemplate(ctx context.Context, phoneNumber, templateID string, params map[string]string) error {
	if !c.enabled {
		return nil
	}

	if phoneNumber == "" {
		return fmt.Errorf("phone number is required")
	}
	if templateID == "" {
		return fmt.Errorf("template ID is required")
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parameters := make([]smsir.UltraFastParameter, 0, len(keys))
	for _, k := range keys {
		parameters = append(parameters, smsir.UltraFastParameter{Key: k, Value: params[k]})
	}

	req := &smsir.UltraFastSendRequest{
		Mobile:     phoneNumber,
		TemplateID: templateID,
		Parameters: parameters,
	}

	_, err := c.client.Verification.UltraFastSend(ctx, req)
	if err != nil {
		return fmt.Errorf("sms.ir send failed: %w", err)
	}

	return nil
}

// TemplateID is the configured settlement notice template.
func (c *Client) TemplateID() string {
	return c.templateID
}

// IsEnabled returns whether SMS sending is enabled.
func (c *Client) IsEnabled() bool {
	return c.enabled
}
