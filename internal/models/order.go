package models

import (
	"strings"
	"time"
)

// Order statuses stored on the local record.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
)

// Shipping statuses as reported by the provider. The provider may send others; they are kept verbatim.
const (
	ShippingStatusNew       = "NEW"
	ShippingStatusInTransit = "IN TRANSIT"
	ShippingStatusDelivered = "DELIVERED"
	ShippingStatusCanceled  = "CANCELED"
)

type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "cod"
	PaymentMethodPrepaid PaymentMethod = "prepaid"
)

// NormalizePaymentMethod maps a free-form method name to COD or prepaid.
// An empty input stays empty so callers can reject it.
func NormalizePaymentMethod(raw string) PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ""
	case "cod", "cash-on-delivery", "cash_on_delivery":
		return PaymentMethodCOD
	default:
		return PaymentMethodPrepaid
	}
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}

type Customer struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
}

type LineItem struct {
	ID       string   `json:"id,omitempty"`
	SKU      string   `json:"sku,omitempty"`
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
	Price    float64  `json:"price"`
	Weight   *float64 `json:"weight,omitempty"`
}

type PaymentInfo struct {
	Method    string  `json:"method"`
	OrderID   string  `json:"orderId,omitempty"`
	PaymentID string  `json:"paymentId,omitempty"`
	Signature string  `json:"signature,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

func (p PaymentInfo) NormalizedMethod() PaymentMethod {
	return NormalizePaymentMethod(p.Method)
}

// ShippingInfo is populated after the order is linked to the shipping provider.
type ShippingInfo struct {
	ProviderOrderID string     `json:"providerOrderId,omitempty"`
	AWBCode         string     `json:"awbCode,omitempty"`
	Status          string     `json:"status,omitempty"`
	CourierName     string     `json:"courierName,omitempty"`
	TrackingURL     string     `json:"trackingUrl,omitempty"`
	Created         bool       `json:"created"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
}

// Linked reports whether the order already has a confirmed provider order.
func (s ShippingInfo) Linked() bool {
	return s.Created && s.ProviderOrderID != ""
}

// Order is the persisted order document.
type Order struct {
	ID        string       `json:"id"`
	OrderID   string       `json:"orderId"`
	UserID    string       `json:"userId,omitempty"`
	Customer  Customer     `json:"customerInfo"`
	Items     []LineItem   `json:"cartItems"`
	Payment   PaymentInfo  `json:"paymentInfo"`
	SubTotal  float64      `json:"subTotal,omitempty"`
	Weight    float64      `json:"weight,omitempty"`
	Notes     string       `json:"orderNotes,omitempty"`
	Status    string       `json:"status"`
	Shipping  ShippingInfo `json:"shipping"`
	Warning   string       `json:"warning,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
