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

// KkiaPayClient talks to the KkiaPay transactions API. KkiaPay payments are
// opened client-side with a widget, so CreateInvoice only registers the
// transaction reference and returns the hosted payment page.
type KkiaPayClient struct {
	baseURL    string
	publicKey  string
	secretKey  string
	httpClient *http.Client
}

func NewKkiaPayClient(cfg *config.GatewayConfig) *KkiaPayClient {
	return &KkiaPayClient{
		baseURL:   cfg.BaseURL,
		publicKey: cfg.APIKey,
		secretKey: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

func (c *KkiaPayClient) CreateInvoice(ctx context.Context, transactionID string, amount int64, description string) (*Invoice, error) {
	payload := map[string]interface{}{
		"amount": amount,
		"reason": description,
		"data":   map[string]string{"transaction_id": transactionID},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment payload: %w", err)
	}

	url := fmt.Sprintf("%s/payments", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call kkiapay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("kkiapay returned status: %d", resp.StatusCode)
	}

	var response struct {
		TransactionID string `json:"transactionId"`
		PaymentURL    string `json:"paymentUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &Invoice{
		GatewayRef:  response.TransactionID,
		RedirectURL: response.PaymentURL,
	}, nil
}

func (c *KkiaPayClient) CheckStatus(ctx context.Context, gatewayRef string) (string, error) {
	payload := map[string]string{"transactionId": gatewayRef}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal status payload: %w", err)
	}

	url := fmt.Sprintf("%s/transactions/status", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call kkiapay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("kkiapay returned status: %d", resp.StatusCode)
	}

	var response struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	switch response.Status {
	case "SUCCESS":
		return "completed", nil
	case "PENDING":
		return "pending", nil
	case "DECLINED":
		return "cancelled", nil
	default:
		return "failed", nil
	}
}

func (c *KkiaPayClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.publicKey)
	req.Header.Set("x-private-key", c.secretKey)
}
