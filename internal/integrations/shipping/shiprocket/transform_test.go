package shiprocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/stretchr/testify/require"
)

var orderDate = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func sampleOrder() models.Order {
	return models.Order{
		OrderID: "VS-1001",
		Customer: models.Customer{
			Name:  "Asha Devi Rao",
			Email: "asha@example.com",
			Phone: "9876543210",
			Address: models.Address{
				Street:  "12 MG Road",
				City:    "Bengaluru",
				State:   "Karnataka",
				Pincode: "560001",
			},
		},
		Items: []models.LineItem{
			{ID: "SAREE-1", Name: "Kanjivaram", Quantity: 2, Price: 100},
			{SKU: "STOLE-7", Name: "Stole", Quantity: 1, Price: 50},
		},
		Payment: models.PaymentInfo{Method: "razorpay"},
	}
}

func TestTotals(t *testing.T) {
	value, weight := Totals(sampleOrder().Items)
	require.Equal(t, "250", value.String())
	require.Equal(t, "1", weight.String())
}

func TestTransform_Fields(t *testing.T) {
	req, err := Transform(sampleOrder(), TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)

	require.Equal(t, "VS-1001", req.OrderID)
	require.Equal(t, "2025-03-14", req.OrderDate)
	require.Equal(t, DefaultPickupLocation, req.PickupLocation)
	require.Equal(t, "Asha Devi Rao", req.BillingCustomerName)
	require.Equal(t, "Devi Rao", req.BillingLastName)
	require.Equal(t, "India", req.BillingCountry)
	require.True(t, req.ShippingIsBilling)
	require.Equal(t, req.BillingAddress, req.ShippingAddress)
	require.Equal(t, req.BillingPhone, req.ShippingPhone)
	require.Equal(t, req.BillingLastName, req.ShippingLastName)
	require.Equal(t, "Prepaid", req.PaymentMethod)
	require.Equal(t, 250.0, req.SubTotal)
	require.Equal(t, 1.0, req.Weight)
	require.Equal(t, 30.0, req.Length)
	require.Equal(t, 20.0, req.Breadth)
	require.Equal(t, 5.0, req.Height)

	require.Len(t, req.OrderItems, 2)
	require.Equal(t, "SAREE-1", req.OrderItems[0].SKU)
	require.Equal(t, "STOLE-7", req.OrderItems[1].SKU)
	require.Equal(t, 2, req.OrderItems[0].Units)
	require.Equal(t, DefaultHSN, req.OrderItems[0].HSN)
	require.Equal(t, DefaultProductCategory, req.OrderItems[0].ProductCategory)
}

func TestTransform_WireNames(t *testing.T) {
	req, err := Transform(sampleOrder(), TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{
		"order_id", "order_date", "pickup_location", "billing_customer_name", "billing_last_name",
		"billing_address", "billing_address_2", "billing_city", "billing_pincode", "billing_state",
		"billing_country", "billing_email", "billing_phone", "shipping_is_billing", "order_items",
		"payment_method", "sub_total", "length", "breadth", "height", "weight",
	} {
		require.Contains(t, m, k)
	}
}

func TestTransform_ItemSKUPrefersID(t *testing.T) {
	o := sampleOrder()
	o.Items = []models.LineItem{
		{ID: "P-1", SKU: "SKU-1", Name: "Both", Quantity: 1, Price: 10},
		{SKU: "SKU-2", Name: "Only SKU", Quantity: 1, Price: 10},
		{Name: "Nameless code", Quantity: 1, Price: 10},
	}

	req, err := Transform(o, TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)
	require.Equal(t, "P-1", req.OrderItems[0].SKU)
	require.Equal(t, "SKU-2", req.OrderItems[1].SKU)
	require.Equal(t, "Nameless code", req.OrderItems[2].SKU)
}

func TestTransform_SingleWordNameHasEmptyLastName(t *testing.T) {
	o := sampleOrder()
	o.Customer.Name = "Asha"
	req, err := Transform(o, TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)
	require.Equal(t, "", req.BillingLastName)
}

func TestTransform_COD(t *testing.T) {
	o := sampleOrder()
	o.Payment.Method = "COD"
	req, err := Transform(o, TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)
	require.Equal(t, "COD", req.PaymentMethod)
}

func TestTransform_WeightFloor(t *testing.T) {
	o := sampleOrder()
	o.Weight = 0.01
	req, err := Transform(o, TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)
	require.Equal(t, 0.1, req.Weight)

	w := 0.02
	o = sampleOrder()
	o.Items = []models.LineItem{{Name: "Pin", Quantity: 1, Price: 5, Weight: &w}}
	req, err = Transform(o, TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)
	require.Equal(t, 0.1, req.Weight)
}

func TestTransform_ExplicitSubTotalWins(t *testing.T) {
	o := sampleOrder()
	o.SubTotal = 199.5
	req, err := Transform(o, TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)
	require.Equal(t, 199.5, req.SubTotal)
}

func TestTransform_ListsEveryMissingField(t *testing.T) {
	o := sampleOrder()
	o.Customer.Email = ""
	o.Customer.Phone = "  "

	_, err := Transform(o, TransformOptions{OrderDate: orderDate})
	require.Error(t, err)
	require.True(t, apperrors.IsValidation(err))
	require.Equal(t, []string{"billing_email", "billing_phone"}, apperrors.ValidationFields(err))
}

func TestTransform_NoItems(t *testing.T) {
	o := sampleOrder()
	o.Items = nil
	_, err := Transform(o, TransformOptions{OrderDate: orderDate})
	require.Equal(t, []string{"order_items"}, apperrors.ValidationFields(err))
}

func TestTransform_NestedAndFlatShapesProduceSameRequest(t *testing.T) {
	var nested, flat models.OrderInput
	require.NoError(t, json.Unmarshal([]byte(`{
  "orderId": "VS-9",
  "customerInfo": {"name": "Meera K", "email": "m@example.com", "phone": "99",
    "address": {"street": "1 Temple St", "city": "Madurai", "state": "TN", "pincode": "625001"}},
  "cartItems": [{"id": "S1", "name": "Silk", "quantity": 1, "price": 1200}],
  "paymentMethod": "cod"
}`), &nested))
	require.NoError(t, json.Unmarshal([]byte(`{
  "orderId": "VS-9",
  "customerName": "Meera K", "customerEmail": "m@example.com", "customerPhone": 99,
  "billingAddress": "1 Temple St", "billingCity": "Madurai", "billingState": "TN", "billingPincode": 625001,
  "orderItems": [{"id": "S1", "name": "Silk", "units": 1, "sellingPrice": "1200"}],
  "paymentMethod": "cod"
}`), &flat))

	a, err := Transform(nested.Normalize(), TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)
	b, err := Transform(flat.Normalize(), TransformOptions{OrderDate: orderDate})
	require.NoError(t, err)
	require.Equal(t, a, b)
}
