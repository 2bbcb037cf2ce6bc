package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/pkg/errors"
)

// FlexString decodes a JSON string or number into a string. Pincodes, phones and
// provider ids show up as either.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "flex string")
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexFloat decodes a JSON number or numeric string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		v = strings.TrimSpace(v)
		if v == "" {
			*f = 0
			return nil
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "flex float")
		}
		*f = FlexFloat(x)
		return nil
	}
	var x float64
	if err := json.Unmarshal(b, &x); err != nil {
		return errors.Wrap(err, "flex float")
	}
	*f = FlexFloat(x)
	return nil
}

type AddressInput struct {
	Street  string     `json:"street"`
	City    string     `json:"city"`
	State   string     `json:"state"`
	Pincode FlexString `json:"pincode"`
	Country string     `json:"country"`
}

type CustomerInfoInput struct {
	Name    string        `json:"name"`
	Email   string        `json:"email"`
	Phone   FlexString    `json:"phone"`
	Address *AddressInput `json:"address"`
}

type ItemInput struct {
	ID           FlexString `json:"id"`
	SKU          FlexString `json:"sku"`
	Name         string     `json:"name"`
	Quantity     FlexFloat  `json:"quantity"`
	Units        FlexFloat  `json:"units"`
	Price        FlexFloat  `json:"price"`
	SellingPrice FlexFloat  `json:"sellingPrice"`
	Weight       *FlexFloat `json:"weight"`
}

// OrderInput is the inbound order payload. Customer data arrives either nested under
// customerInfo or as flat billing/customer fields; Source picks one shape once.
type OrderInput struct {
	ID      string     `json:"id"`
	OrderID FlexString `json:"orderId"`
	UserID  string     `json:"userId"`

	CustomerInfo *CustomerInfoInput `json:"customerInfo"`

	BillingCustomerName string     `json:"billingCustomerName"`
	CustomerName        string     `json:"customerName"`
	BillingEmail        string     `json:"billingEmail"`
	CustomerEmail       string     `json:"customerEmail"`
	BillingPhone        FlexString `json:"billingPhone"`
	CustomerPhone       FlexString `json:"customerPhone"`
	BillingAddress      string     `json:"billingAddress"`
	BillingCity         string     `json:"billingCity"`
	BillingPincode      FlexString `json:"billingPincode"`
	BillingState        string     `json:"billingState"`
	BillingCountry      string     `json:"billingCountry"`

	CartItems  []ItemInput `json:"cartItems"`
	OrderItems []ItemInput `json:"orderItems"`

	PaymentInfo   *PaymentInfo `json:"paymentInfo"`
	PaymentMethod string       `json:"paymentMethod"`

	SubTotal   FlexFloat `json:"subTotal"`
	Weight     FlexFloat `json:"weight"`
	OrderNotes string    `json:"orderNotes"`
	Status     string    `json:"status"`
}

// CustomerSource is the resolved shape of the customer block.
type CustomerSource interface {
	Customer() Customer
}

type NestedCustomer struct {
	Info CustomerInfoInput
}

func (n NestedCustomer) Customer() Customer {
	c := Customer{
		Name:  n.Info.Name,
		Email: n.Info.Email,
		Phone: n.Info.Phone.String(),
	}
	if a := n.Info.Address; a != nil {
		c.Address = Address{
			Street:  a.Street,
			City:    a.City,
			State:   a.State,
			Pincode: a.Pincode.String(),
			Country: a.Country,
		}
	}
	return c
}

type FlatCustomer struct {
	Name    string
	Email   string
	Phone   string
	Address Address
}

func (f FlatCustomer) Customer() Customer {
	return Customer{Name: f.Name, Email: f.Email, Phone: f.Phone, Address: f.Address}
}

// Source returns the nested shape when customerInfo carries an address, the flat shape otherwise.
func (in OrderInput) Source() CustomerSource {
	if in.CustomerInfo != nil && in.CustomerInfo.Address != nil {
		return NestedCustomer{Info: *in.CustomerInfo}
	}
	return FlatCustomer{
		Name:  firstNonEmpty(in.BillingCustomerName, in.CustomerName),
		Email: firstNonEmpty(in.BillingEmail, in.CustomerEmail),
		Phone: firstNonEmpty(in.BillingPhone.String(), in.CustomerPhone.String()),
		Address: Address{
			Street:  in.BillingAddress,
			City:    in.BillingCity,
			State:   in.BillingState,
			Pincode: in.BillingPincode.String(),
			Country: in.BillingCountry,
		},
	}
}

func (in OrderInput) items() []ItemInput {
	if len(in.CartItems) == 0 {
		return in.OrderItems
	}
	return in.CartItems
}

func (it ItemInput) quantity() float64 {
	if it.Quantity == 0 {
		return float64(it.Units)
	}
	return float64(it.Quantity)
}

// CheckQuantities rejects item quantities that are negative or not whole numbers.
func (in OrderInput) CheckQuantities() error {
	var bad []string
	for i, it := range in.items() {
		q := it.quantity()
		if q < 0 || q != math.Trunc(q) || math.IsInf(q, 0) {
			bad = append(bad, fmt.Sprintf("items[%d].quantity", i))
		}
	}
	if len(bad) > 0 {
		return apperrors.NewValidation("item quantity must be a whole number", bad...)
	}
	return nil
}

// Normalize resolves the input into the persisted order shape.
// Quantities are expected to have passed CheckQuantities.
func (in OrderInput) Normalize() Order {
	items := in.items()
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		qty := it.quantity()
		price := float64(it.Price)
		if price == 0 {
			price = float64(it.SellingPrice)
		}
		li := LineItem{
			ID:       it.ID.String(),
			SKU:      it.SKU.String(),
			Name:     it.Name,
			Quantity: int(qty),
			Price:    price,
		}
		if it.Weight != nil && *it.Weight > 0 {
			w := float64(*it.Weight)
			li.Weight = &w
		}
		out = append(out, li)
	}

	var payment PaymentInfo
	if in.PaymentInfo != nil {
		payment = *in.PaymentInfo
	}
	if payment.Method == "" {
		payment.Method = in.PaymentMethod
	}

	return Order{
		ID:       in.ID,
		OrderID:  in.OrderID.String(),
		UserID:   in.UserID,
		Customer: in.Source().Customer(),
		Items:    out,
		Payment:  payment,
		SubTotal: float64(in.SubTotal),
		Weight:   float64(in.Weight),
		Notes:    in.OrderNotes,
		Status:   in.Status,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
