package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quizhub-subscription-svc/src/internal/config"
)

// PayDunyaClient talks to the PayDunya checkout-invoice API.
type PayDunyaClient struct {
	baseURL    string
	masterKey  string
	privateKey string
	httpClient *http.Client
}

// Invoice is the normalized result of creating a checkout invoice.
type Invoice struct {
	GatewayRef  string
	RedirectURL string
}

func NewPayDunyaClient(cfg *config.GatewayConfig) *PayDunyaClient {
	return &PayDunyaClient{
		baseURL:    cfg.BaseURL,
		masterKey:  cfg.APIKey,
		privateKey: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// CreateInvoice creates a checkout invoice and returns the gateway token
// plus the URL the user must be redirected to.
func (c *PayDunyaClient) CreateInvoice(ctx context.Context, transactionID string, amount int64, description string) (*Invoice, error) {
	payload := map[string]interface{}{
		"invoice": map[string]interface{}{
			"total_amount": amount,
			"description":  description,
		},
		"custom_data": map[string]string{
			"transaction_id": transactionID,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice payload: %w", err)
	}

	url := fmt.Sprintf("%s/checkout-invoice/create", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call paydunya: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paydunya returned status: %d", resp.StatusCode)
	}

	var response struct {
		ResponseCode string `json:"response_code"`
		ResponseText string `json:"response_text"`
		Token        string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.ResponseCode != "00" {
		return nil, fmt.Errorf("paydunya rejected invoice: %s", response.ResponseText)
	}

	return &Invoice{
		GatewayRef:  response.Token,
		RedirectURL: response.ResponseText,
	}, nil
}

// CheckStatus confirms an invoice and returns its normalized status:
// completed, pending, failed or cancelled.
func (c *PayDunyaClient) CheckStatus(ctx context.Context, gatewayRef string) (string, error) {
	url := fmt.Sprintf("%s/checkout-invoice/confirm/%s", c.baseURL, gatewayRef)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call paydunya: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paydunya returned status: %d", resp.StatusCode)
	}

	var response struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	switch response.Status {
	case "completed":
		return "completed", nil
	case "cancelled":
		return "cancelled", nil
	case "pending":
		return "pending", nil
	default:
		return "failed", nil
	}
}

func (c *PayDunyaClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PAYDUNYA-MASTER-KEY", c.masterKey)
	req.Header.Set("PAYDUNYA-PRIVATE-KEY", c.privateKey)
}
