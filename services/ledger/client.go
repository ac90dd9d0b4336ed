package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openclaims/coverd/config"
	"github.com/openclaims/coverd/models"
	"go.uber.org/zap"
)

// Client talks to a remote token ledger over HTTP. The remote service
// authenticates the caller as the custody account, so transfer requests
// carry only destination and amount.
type Client struct {
	baseURL    string
	maxRetries int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a ledger client from configuration
func NewClient(cfg config.LedgerConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type balanceResponse struct {
	Amount int64 `json:"amount"`
}

type transferRequest struct {
	Owner  string `json:"owner,omitempty"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Allowance returns how much the spender may pull from the owner's account
func (c *Client) Allowance(ctx context.Context, owner, spender models.Address) (int64, error) {
	path := fmt.Sprintf("/accounts/%s/allowances/%s", owner, spender)
	var resp balanceResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

// BalanceOf returns the account's current balance
func (c *Client) BalanceOf(ctx context.Context, account models.Address) (int64, error) {
	path := fmt.Sprintf("/accounts/%s/balance", account)
	var resp balanceResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

// TransferFrom moves amount from owner to the destination account
func (c *Client) TransferFrom(ctx context.Context, owner, to models.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return c.post(ctx, "/transfers/from", transferRequest{
		Owner:  owner.String(),
		To:     to.String(),
		Amount: amount,
	})
}

// Transfer moves amount from the custody account to the destination
func (c *Client) Transfer(ctx context.Context, to models.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return c.post(ctx, "/transfers", transferRequest{
		To:     to.String(),
		Amount: amount,
	})
}

// get performs a GET with retries on 5xx and transport errors
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}

		req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("%w: failed to create request: %v", ErrUnavailable, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("ledger returned status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return c.mapErrorResponse(resp.StatusCode, body)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
		}
		return nil
	}

	c.logger.Warn("ledger request failed after retries",
		zap.String("path", path),
		zap.Error(lastErr))
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// post performs a POST with retries on 5xx and transport errors.
// The request body is rebuilt per attempt.
func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal request: %v", ErrUnavailable, err)
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("%w: failed to create request: %v", ErrUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("ledger returned status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return c.mapErrorResponse(resp.StatusCode, body)
		}
		return nil
	}

	c.logger.Warn("ledger request failed after retries",
		zap.String("path", path),
		zap.Error(lastErr))
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// mapErrorResponse converts a non-200 ledger response into a sentinel error
func (c *Client) mapErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	_ = json.Unmarshal(body, &errResp)

	switch errResp.Error {
	case "insufficient_balance":
		return ErrInsufficientBalance
	case "insufficient_allowance":
		return ErrInsufficientAllowance
	case "invalid_amount":
		return ErrInvalidAmount
	}

	return fmt.Errorf("%w: status %d: %s", ErrUnavailable, statusCode, string(body))
}
