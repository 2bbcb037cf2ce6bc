package razorpay

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/ShopShip/internal/apperrors"
)

const (
	StatusNoPayments    = "no_payments"
	StatusOrderNotFound = "order_not_found"
	StatusError         = "error"

	orderIDPrefix = "order_"
)

// PaymentStatus is the answer of the payment status lookup.
type PaymentStatus struct {
	PaymentID *string `json:"payment_id"`
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	Amount    int64   `json:"amount"`
	Currency  string  `json:"currency"`
	Signature *string `json:"signature"`
	CreatedAt *string `json:"createdAt"`
	Message   string  `json:"message,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Status looks up a payment by id. Ids with the order_ prefix resolve to the first payment
// of that order; lookup problems on that path are reported in the status, not as errors.
// A plain payment id that the provider rejects as a bad request yields a NotFoundError.
func (c *Client) Status(ctx context.Context, id string) (PaymentStatus, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PaymentStatus{}, apperrors.NewValidation("payment id cannot be empty", "paymentId")
	}

	if strings.HasPrefix(id, orderIDPrefix) {
		return c.orderStatus(ctx, id), nil
	}

	p, err := c.FetchPayment(ctx, id)
	if err != nil {
		if isBadRequest(err) {
			return PaymentStatus{}, &apperrors.NotFoundError{Resource: "payment", ID: id}
		}
		return PaymentStatus{}, err
	}
	return fromPayment(p, p.OrderID), nil
}

func (c *Client) orderStatus(ctx context.Context, orderID string) PaymentStatus {
	empty := PaymentStatus{OrderID: orderID, Currency: DefaultCurrency}

	payments, err := c.FetchOrderPayments(ctx, orderID)
	if err != nil {
		if isBadRequest(err) {
			empty.Status = StatusOrderNotFound
			empty.Error = "order does not exist at the payment provider"
			return empty
		}
		empty.Status = StatusError
		empty.Error = err.Error()
		return empty
	}
	if len(payments) == 0 {
		empty.Status = StatusNoPayments
		empty.Message = "order exists but no payments found"
		return empty
	}
	return fromPayment(payments[0], orderID)
}

func fromPayment(p Payment, orderID string) PaymentStatus {
	st := PaymentStatus{
		PaymentID: strPtr(p.ID),
		OrderID:   orderID,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Signature: strPtr(p.Signature),
	}
	if p.CreatedAt > 0 {
		ts := time.Unix(p.CreatedAt, 0).UTC().Format(time.RFC3339)
		st.CreatedAt = &ts
	}
	return st
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
