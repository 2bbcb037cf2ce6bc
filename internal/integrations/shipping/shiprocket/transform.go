package shiprocket

import (
	"strings"
	"time"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultPickupLocation  = "warehouse-1"
	DefaultProductCategory = "Silk Sarees"
	DefaultHSN             = 6204
	DefaultOrderNotes      = "Silk saree order"
	DefaultCountry         = "India"

	defaultLength  = 30
	defaultBreadth = 20
	defaultHeight  = 5
)

var (
	defaultItemWeight = decimal.RequireFromString("0.5")
	minWeight         = decimal.RequireFromString("0.1")
)

// TransformOptions carries the store-wide values that end up in every provider request.
// OrderDate is supplied by the caller; a zero value falls back to the order's creation time.
type TransformOptions struct {
	PickupLocation  string
	ProductCategory string
	HSN             int
	OrderNotes      string
	DefaultCountry  string
	Length          float64
	Breadth         float64
	Height          float64
	OrderDate       time.Time
}

func (o TransformOptions) withDefaults() TransformOptions {
	if o.PickupLocation == "" {
		o.PickupLocation = DefaultPickupLocation
	}
	if o.ProductCategory == "" {
		o.ProductCategory = DefaultProductCategory
	}
	if o.HSN == 0 {
		o.HSN = DefaultHSN
	}
	if o.OrderNotes == "" {
		o.OrderNotes = DefaultOrderNotes
	}
	if o.DefaultCountry == "" {
		o.DefaultCountry = DefaultCountry
	}
	if o.Length <= 0 {
		o.Length = defaultLength
	}
	if o.Breadth <= 0 {
		o.Breadth = defaultBreadth
	}
	if o.Height <= 0 {
		o.Height = defaultHeight
	}
	return o
}

type OrderItem struct {
	Name            string  `json:"name"`
	SKU             string  `json:"sku"`
	Units           int     `json:"units"`
	SellingPrice    float64 `json:"selling_price"`
	Discount        float64 `json:"discount"`
	Tax             float64 `json:"tax"`
	HSN             int     `json:"hsn"`
	ProductCategory string  `json:"product_category"`
}

// OrderRequest is the body of POST /orders/create/adhoc.
type OrderRequest struct {
	OrderID        string `json:"order_id"`
	OrderDate      string `json:"order_date"`
	PickupLocation string `json:"pickup_location"`

	BillingCustomerName   string `json:"billing_customer_name"`
	BillingLastName       string `json:"billing_last_name"`
	BillingAddress        string `json:"billing_address"`
	BillingAddress2       string `json:"billing_address_2"`
	BillingCity           string `json:"billing_city"`
	BillingPincode        string `json:"billing_pincode"`
	BillingState          string `json:"billing_state"`
	BillingCountry        string `json:"billing_country"`
	BillingEmail          string `json:"billing_email"`
	BillingPhone          string `json:"billing_phone"`
	BillingAlternatePhone string `json:"billing_alternate_phone"`

	ShippingIsBilling    bool   `json:"shipping_is_billing"`
	ShippingCustomerName string `json:"shipping_customer_name"`
	ShippingLastName     string `json:"shipping_last_name"`
	ShippingAddress      string `json:"shipping_address"`
	ShippingAddress2     string `json:"shipping_address_2"`
	ShippingCity         string `json:"shipping_city"`
	ShippingPincode      string `json:"shipping_pincode"`
	ShippingState        string `json:"shipping_state"`
	ShippingCountry      string `json:"shipping_country"`
	ShippingEmail        string `json:"shipping_email"`
	ShippingPhone        string `json:"shipping_phone"`

	OrderItems    []OrderItem `json:"order_items"`
	PaymentMethod string      `json:"payment_method"`
	SubTotal      float64     `json:"sub_total"`
	Length        float64     `json:"length"`
	Breadth       float64     `json:"breadth"`
	Height        float64     `json:"height"`
	Weight        float64     `json:"weight"`
	OrderNotes    string      `json:"order_notes"`
}

// Totals returns the order value (sum of price times quantity) and the package weight
// (sum of item weights, 0.5 per item when unknown).
func Totals(items []models.LineItem) (value, weight decimal.Decimal) {
	value, weight = decimal.Zero, decimal.Zero
	for _, it := range items {
		value = value.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(units(it)))))
		if it.Weight != nil && *it.Weight > 0 {
			weight = weight.Add(decimal.NewFromFloat(*it.Weight))
		} else {
			weight = weight.Add(defaultItemWeight)
		}
	}
	return value, weight
}

// Transform maps a normalized order to the provider's create-order request.
// All missing required fields are reported at once.
func Transform(o models.Order, opts TransformOptions) (OrderRequest, error) {
	opts = opts.withDefaults()
	c := o.Customer

	name := strings.TrimSpace(c.Name)
	_, lastName, _ := strings.Cut(name, " ")
	country := strings.TrimSpace(c.Address.Country)
	if country == "" {
		country = opts.DefaultCountry
	}

	value, weight := Totals(o.Items)
	if o.Weight > 0 {
		weight = decimal.NewFromFloat(o.Weight)
	}
	weight = decimal.Max(weight, minWeight)

	subTotal := value.Round(2).InexactFloat64()
	if o.SubTotal > 0 {
		subTotal = o.SubTotal
	}

	paymentMethod := "Prepaid"
	if o.Payment.NormalizedMethod() == models.PaymentMethodCOD {
		paymentMethod = "COD"
	}

	date := opts.OrderDate
	if date.IsZero() {
		date = o.CreatedAt
	}

	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItem{
			Name:            it.Name,
			SKU:             firstNonEmpty(it.ID, it.SKU, it.Name),
			Units:           units(it),
			SellingPrice:    it.Price,
			HSN:             opts.HSN,
			ProductCategory: opts.ProductCategory,
		})
	}

	notes := o.Notes
	if notes == "" {
		notes = opts.OrderNotes
	}

	req := OrderRequest{
		OrderID:        o.OrderID,
		OrderDate:      date.Format("2006-01-02"),
		PickupLocation: opts.PickupLocation,

		BillingCustomerName: name,
		BillingLastName:     lastName,
		BillingAddress:      strings.TrimSpace(c.Address.Street),
		BillingCity:         strings.TrimSpace(c.Address.City),
		BillingPincode:      strings.TrimSpace(c.Address.Pincode),
		BillingState:        strings.TrimSpace(c.Address.State),
		BillingCountry:      country,
		BillingEmail:        strings.TrimSpace(c.Email),
		BillingPhone:        strings.TrimSpace(c.Phone),

		ShippingIsBilling: true,

		OrderItems:    items,
		PaymentMethod: paymentMethod,
		SubTotal:      subTotal,
		Length:        opts.Length,
		Breadth:       opts.Breadth,
		Height:        opts.Height,
		Weight:        weight.InexactFloat64(),
		OrderNotes:    notes,
	}
	req.ShippingCustomerName = req.BillingCustomerName
	req.ShippingLastName = req.BillingLastName
	req.ShippingAddress = req.BillingAddress
	req.ShippingAddress2 = req.BillingAddress2
	req.ShippingCity = req.BillingCity
	req.ShippingPincode = req.BillingPincode
	req.ShippingState = req.BillingState
	req.ShippingCountry = req.BillingCountry
	req.ShippingEmail = req.BillingEmail
	req.ShippingPhone = req.BillingPhone

	if missing := req.missingFields(); len(missing) > 0 {
		return OrderRequest{}, apperrors.NewValidation("missing required fields", missing...)
	}
	return req, nil
}

func (r OrderRequest) missingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"billing_customer_name", r.BillingCustomerName},
		{"billing_address", r.BillingAddress},
		{"billing_city", r.BillingCity},
		{"billing_pincode", r.BillingPincode},
		{"billing_state", r.BillingState},
		{"billing_email", r.BillingEmail},
		{"billing_phone", r.BillingPhone},
	}
	var missing []string
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(r.OrderItems) == 0 {
		missing = append(missing, "order_items")
	}
	return missing
}

// units treats a missing quantity as a single unit.
func units(it models.LineItem) int {
	if it.Quantity <= 0 {
		return 1
	}
	return it.Quantity
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
