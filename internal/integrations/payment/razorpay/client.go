package razorpay

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/pkg/errors"
	rzp "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL  = "https://api.razorpay.com"
	DefaultCurrency = "INR"
	DefaultTimeout  = 30 * time.Second
)

// APIError is a non-2xx answer from the payment API. It unwraps to an UpstreamError.
type APIError struct {
	BadRequest bool
	Upstream   *apperrors.UpstreamError
}

func (e *APIError) Error() string { return e.Upstream.Error() }
func (e *APIError) Unwrap() error { return e.Upstream }

func isBadRequest(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.BadRequest
}

type Order struct {
	ID         string          `json:"id"`
	Entity     string          `json:"entity"`
	Amount     int64           `json:"amount"`
	AmountPaid int64           `json:"amount_paid"`
	AmountDue  int64           `json:"amount_due"`
	Currency   string          `json:"currency"`
	Receipt    string          `json:"receipt"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	Notes      json.RawMessage `json:"notes,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

type Payment struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Signature string `json:"signature,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

// Client wraps the Razorpay SDK and maps its answers onto the app's types and errors.
type Client struct {
	sdk *rzp.Client
	log *zap.Logger
}

func New(baseURL, keyID, keySecret string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	sdk := rzp.NewClient(keyID, keySecret)
	// the SDK appends the API version to every path itself; all resources share this Request
	sdk.Order.Request.BaseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")
	sdk.SetTimeout(timeoutSeconds(timeout))

	return &Client{
		sdk: sdk,
		log: logging.OrNop(logger).Named("razorpay"),
	}
}

func timeoutSeconds(d time.Duration) int16 {
	s := math.Ceil(d.Seconds())
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(s)
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	var out Order
	err := c.call(ctx, "create payment order", &out, func() (map[string]interface{}, error) {
		return c.sdk.Order.Create(data, nil)
	})
	if err != nil {
		return Order{}, err
	}
	c.log.Info("payment order created", zap.String("id", out.ID), zap.Int64("amount", out.Amount))
	return out, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	var out Payment
	err := c.call(ctx, "fetch payment", &out, func() (map[string]interface{}, error) {
		return c.sdk.Payment.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return Payment{}, err
	}
	return out, nil
}

func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]Payment, error) {
	var out struct {
		Items []Payment `json:"items"`
	}
	err := c.call(ctx, "fetch order payments", &out, func() (map[string]interface{}, error) {
		return c.sdk.Order.Payments(orderID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

type sdkResult struct {
	body map[string]interface{}
	err  error
}

// call runs one SDK request and decodes its map answer into out. The SDK takes no context,
// so a cancelled ctx abandons the request and reports a timeout.
func (c *Client) call(ctx context.Context, op string, out any, fn func() (map[string]interface{}, error)) error {
	if err := ctx.Err(); err != nil {
		return &apperrors.UpstreamError{Op: op, Message: "request timed out", Timeout: true}
	}

	done := make(chan sdkResult, 1)
	go func() {
		body, err := fn()
		done <- sdkResult{body: body, err: err}
	}()

	var res sdkResult
	select {
	case <-ctx.Done():
		ue := &apperrors.UpstreamError{Op: op, Message: "request timed out", Timeout: true}
		c.log.Error("request failed", zap.String("op", op), zap.Error(ue))
		return ue
	case res = <-done:
	}

	if res.err != nil {
		apiErr := mapSDKError(op, res.err)
		c.log.Error("request rejected", zap.String("op", op), zap.Bool("bad_request", apiErr.BadRequest), zap.Error(apiErr))
		return apiErr
	}
	if len(res.body) == 0 {
		return &apperrors.UpstreamError{Op: op, Message: "empty response"}
	}

	raw, err := json.Marshal(res.body)
	if err != nil {
		return errors.Wrap(err, "marshal response")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperrors.UpstreamError{Op: op, Message: "invalid response: " + err.Error()}
	}
	return nil
}

func mapSDKError(op string, err error) *APIError {
	ue := &apperrors.UpstreamError{Op: op, Message: err.Error()}
	if strings.Contains(strings.ToLower(ue.Message), "timeout") {
		ue.Message, ue.Timeout = "request timed out", true
	}

	var badReq *rzperrors.BadRequestError
	if errors.As(err, &badReq) {
		return &APIError{BadRequest: true, Upstream: ue}
	}
	return &APIError{Upstream: ue}
}
