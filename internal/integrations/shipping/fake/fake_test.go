package fake

import (
	"context"
	"testing"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/integrations/shipping"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/stretchr/testify/require"
)

func order() models.Order {
	return models.Order{
		OrderID: "VS-1",
		Customer: models.Customer{
			Name: "A B", Email: "a@b.c", Phone: "1",
			Address: models.Address{Street: "s", City: "c", State: "st", Pincode: "1"},
		},
		Items: []models.LineItem{{Name: "x", Quantity: 1, Price: 10}},
	}
}

func TestClient_CreateThenList(t *testing.T) {
	c := New()
	res, err := c.CreateOrder(context.Background(), order())
	require.NoError(t, err)
	require.NotEmpty(t, res.ProviderOrderID)
	require.Equal(t, 1, c.Creates())

	awb, err := c.AssignAWB(context.Background(), res.ShipmentID, "7")
	require.NoError(t, err)
	require.NotEmpty(t, awb.AWBCode)

	orders, err := c.GetAllOrders(context.Background())
	require.NoError(t, err)
	o, ok := shipping.Find(orders, "VS-1")
	require.True(t, ok)
	require.Equal(t, awb.AWBCode, o.AWBCode.String())
	require.Contains(t, []string{models.ShippingStatusDelivered, models.ShippingStatusInTransit}, o.Status)
}

func TestClient_CreateValidates(t *testing.T) {
	o := order()
	o.Customer.Email = ""
	_, err := New().CreateOrder(context.Background(), o)
	require.True(t, apperrors.IsValidation(err))
}

func TestClient_Err(t *testing.T) {
	c := New()
	c.Err = &apperrors.UpstreamError{Op: "create order", Message: "down"}
	_, err := c.CreateOrder(context.Background(), order())
	require.True(t, apperrors.IsUpstream(err))
	require.Equal(t, 0, c.Creates())
}
