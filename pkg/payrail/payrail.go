// Package payrail is the HTTP client for the bank transfer rail that pays
// out approved settlements.
package payrail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/config"
)

var (
	// ErrRejected means the rail refused the transfer; resending the same
	// request will not help.
	ErrRejected = errors.New("payrail: transfer rejected")
	// ErrUnavailable covers network failures and 5xx answers.
	ErrUnavailable        = errors.New("payrail: rail unavailable")
	ErrUnexpectedResponse = errors.New("payrail: unexpected response")
)

const (
	productionURL = "https://api.payrail.io/v1"
	sandboxURL    = "https://sandbox.payrail.io/v1"
)

type TransferRequest struct {
	// IdempotencyKey makes repeated calls for the same payout safe. The
	// settlement id is used.
	IdempotencyKey string          `json:"-"`
	BeneficiaryID  string          `json:"beneficiary_id"`
	Account        string          `json:"account,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Memo           string          `json:"memo,omitempty"`
}

type TransferResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is a small resty-backed rail client.
type Client struct {
	http *resty.Client
}

func New(cfg config.PayRailConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = productionURL
		if cfg.Sandbox {
			base = sandboxURL
		}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		})
	if cfg.APIKey != "" {
		hc.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: hc}
}

// Transfer sends amount to the beneficiary. A repeated call with the same
// idempotency key returns the original transfer.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", ErrRejected)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}

	var (
		result TransferResult
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.IdempotencyKey).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/transfers")
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, netErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code := resp.StatusCode(); {
	case code >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, code)
	case code >= 400:
		return nil, fmt.Errorf("%w: %s %s (status %d)", ErrRejected, apiErr.Code, apiErr.Message, code)
	}
	if result.Reference == "" {
		return nil, fmt.Errorf("%w: missing reference", ErrUnexpectedResponse)
	}
	return &result, nil
}
