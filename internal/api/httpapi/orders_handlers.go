package httpapi

import (
	"net/http"
	"strconv"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/integrations/payment/razorpay"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type createPaymentOrderRequest struct {
	Amount   int64             `json:"amount" validate:"gt=0"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt" validate:"required"`
	Notes    map[string]string `json:"notes"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

type verifyPaymentResponse struct {
	Verified  bool   `json:"verified"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (a *API) createPaymentOrder(w http.ResponseWriter, r *http.Request) {
	var req createPaymentOrderRequest
	if err := a.bind(r, &req, "amount must be greater than 0 and receipt is required"); err != nil {
		fail(w, http.StatusBadRequest, "Invalid payment order request", err)
		return
	}
	if req.Currency == "" {
		req.Currency = razorpay.DefaultCurrency
	}
	if req.Notes == nil {
		req.Notes = map[string]string{}
	}

	order, err := a.payments.CreateOrder(r.Context(), razorpay.CreateOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		a.log.Error("create payment order", zap.String("receipt", req.Receipt), zap.Error(err))
		fail(w, http.StatusInternalServerError, "Failed to create order", err)
		return
	}
	ok(w, "Payment order created", order)
}

func (a *API) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := a.bind(r, &req, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required"); err != nil {
		fail(w, http.StatusBadRequest, "Invalid verification request", err)
		return
	}
	if a.verifier == nil || !a.verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		a.log.Warn("payment signature rejected", zap.String("payment_id", req.PaymentID))
		fail(w, http.StatusBadRequest, "Payment verification failed",
			apperrors.NewValidation("invalid signature", "razorpay_signature"))
		return
	}
	ok(w, "Payment verified", verifyPaymentResponse{
		Verified:  true,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
}

func (a *API) paymentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentId")
	st, err := a.payments.Status(r.Context(), id)
	if err != nil {
		a.log.Error("payment status", zap.String("id", id), zap.Error(err))
		fail(w, statusFor(err), "Failed to get payment status", err)
		return
	}
	ok(w, "Payment status", st)
}

func (a *API) saveOrder(w http.ResponseWriter, r *http.Request) {
	var in models.OrderInput
	if err := a.bind(r, &in, "invalid order"); err != nil {
		fail(w, http.StatusBadRequest, "Invalid order", err)
		return
	}
	res, err := a.orders.SaveOrder(r.Context(), in)
	if err != nil {
		code := statusFor(err)
		msg := "Failed to save order"
		if code == http.StatusBadRequest {
			msg = "Order could not be saved"
		}
		fail(w, code, msg, err)
		return
	}
	if res.Warning != "" {
		ok(w, "Order saved successfully to database", res)
		return
	}
	ok(w, "Order saved successfully and created in Shiprocket", res)
}

func (a *API) listUserOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	list, err := a.orders.ListUserOrders(r.Context(), chi.URLParam(r, "userId"), limit, offset)
	if err != nil {
		fail(w, statusFor(err), "Failed to list orders", err)
		return
	}
	ok(w, "Orders fetched", list)
}

func (a *API) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := a.bind(r, &req, "status is required"); err != nil {
		fail(w, http.StatusBadRequest, "Invalid status update", err)
		return
	}
	o, err := a.orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		fail(w, statusFor(err), "Failed to update order status", err)
		return
	}
	ok(w, "Order status updated successfully", o)
}
