package models

import (
	"encoding/json"
	"testing"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/stretchr/testify/require"
)

const nestedOrderJSON = `{
  "orderId": "VS-1001",
  "customerInfo": {
    "name": "Asha Rao",
    "email": "asha@example.com",
    "phone": 9876543210,
    "address": {"street": "12 MG Road", "city": "Bengaluru", "state": "KA", "pincode": 560001}
  },
  "cartItems": [{"id": "SAREE-1", "name": "Kanjivaram", "quantity": 2, "price": 100}],
  "paymentInfo": {"method": "razorpay", "orderId": "order_1", "paymentId": "pay_1", "signature": "sig"}
}`

const flatOrderJSON = `{
  "orderId": "VS-1001",
  "billingCustomerName": "Asha Rao",
  "billingEmail": "asha@example.com",
  "billingPhone": "9876543210",
  "billingAddress": "12 MG Road",
  "billingCity": "Bengaluru",
  "billingState": "KA",
  "billingPincode": "560001",
  "orderItems": [{"sku": "SAREE-1", "name": "Kanjivaram", "units": "2", "sellingPrice": "100"}],
  "paymentMethod": "razorpay"
}`

func decodeInput(t *testing.T, raw string) OrderInput {
	t.Helper()
	var in OrderInput
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	return in
}

func TestOrderInput_SourcePicksShape(t *testing.T) {
	nested := decodeInput(t, nestedOrderJSON)
	_, ok := nested.Source().(NestedCustomer)
	require.True(t, ok)

	flat := decodeInput(t, flatOrderJSON)
	_, ok = flat.Source().(FlatCustomer)
	require.True(t, ok)

	// customerInfo without an address is not the nested shape
	partial := decodeInput(t, `{"customerInfo": {"name": "X"}, "customerName": "Y"}`)
	src, ok := partial.Source().(FlatCustomer)
	require.True(t, ok)
	require.Equal(t, "Y", src.Name)
}

func TestOrderInput_NormalizeBothShapesAgree(t *testing.T) {
	a := decodeInput(t, nestedOrderJSON).Normalize()
	b := decodeInput(t, flatOrderJSON).Normalize()

	require.Equal(t, a.Customer, b.Customer)
	require.Equal(t, "560001", a.Customer.Address.Pincode)
	require.Equal(t, "9876543210", a.Customer.Phone)
	require.Len(t, b.Items, 1)
	require.Equal(t, 2, b.Items[0].Quantity)
	require.Equal(t, 100.0, b.Items[0].Price)
	require.Equal(t, "razorpay", b.Payment.Method)
	require.Equal(t, "pay_1", a.Payment.PaymentID)
}

func TestOrderInput_NestedWinsOverFlat(t *testing.T) {
	in := decodeInput(t, `{
  "customerInfo": {"name": "Nested", "address": {"city": "Mysuru"}},
  "billingCustomerName": "Flat",
  "billingCity": "Chennai"
}`)
	c := in.Normalize().Customer
	require.Equal(t, "Nested", c.Name)
	require.Equal(t, "Mysuru", c.Address.City)
}

func TestNormalizePaymentMethod(t *testing.T) {
	require.Equal(t, PaymentMethodCOD, NormalizePaymentMethod("COD"))
	require.Equal(t, PaymentMethodCOD, NormalizePaymentMethod("cod"))
	require.Equal(t, PaymentMethodPrepaid, NormalizePaymentMethod("razorpay"))
	require.Equal(t, PaymentMethod(""), NormalizePaymentMethod(" "))
}

func TestFlexFloat_BadString(t *testing.T) {
	var f FlexFloat
	require.Error(t, json.Unmarshal([]byte(`"abc"`), &f))
}

func TestOrderInput_CheckQuantities(t *testing.T) {
	tests := []struct {
		name   string
		items  string
		fields []string
	}{
		{"whole numbers", `"cartItems":[{"quantity":2},{"quantity":"3"}]`, nil},
		{"units fallback", `"orderItems":[{"units":"4"}]`, nil},
		{"fractional quantity", `"cartItems":[{"quantity":1},{"quantity":1.5}]`, []string{"items[1].quantity"}},
		{"fractional units", `"orderItems":[{"units":"2.25"}]`, []string{"items[0].quantity"}},
		{"negative", `"cartItems":[{"quantity":-1}]`, []string{"items[0].quantity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := decodeInput(t, `{`+tt.items+`}`)
			err := in.CheckQuantities()
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, apperrors.IsValidation(err))
			require.Equal(t, tt.fields, apperrors.ValidationFields(err))
		})
	}
}
