package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPaymentFailed marks any failure to initiate a payment: a gateway
// rejection, a transport error, or a timeout. The order-placement
// transaction treats all of them identically and rolls back.
var ErrPaymentFailed = errors.New("payment initiation failed")

// Payload is the gateway's initiation response. It is handed back to the
// client so payment can be completed out-of-band; it is not persisted as
// part of the placement transaction.
type Payload struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url,omitempty"`
	SignedPayload string `json:"signed_payload,omitempty"`
}

// Gateway is the one contract the core consumes from the payment provider.
// Protocol details (signing, callback verification) stay behind it.
type Gateway interface {
	CreatePayment(ctx context.Context, orderID int64, amount decimal.Decimal) (*Payload, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds an HTTP gateway client. The timeout bounds the whole
// initiation call; an expired timeout surfaces as ErrPaymentFailed so the
// caller rolls back instead of leaving stock reserved against a payment
// that may never complete.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ Gateway = (*Client)(nil)

type createPaymentRequest struct {
	OrderID int64  `json:"order_id"`
	Amount  string `json:"amount"`
}

type createPaymentError struct {
	Error string `json:"error"`
}

func (c *Client) CreatePayment(ctx context.Context, orderID int64, amount decimal.Decimal) (*Payload, error) {
	body, err := json.Marshal(createPaymentRequest{
		OrderID: orderID,
		Amount:  amount.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrPaymentFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var gwErr createPaymentError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&gwErr); decodeErr == nil && gwErr.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, gwErr.Error)
		}
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrPaymentFailed, resp.StatusCode)
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPaymentFailed, err)
	}

	return &payload, nil
}
