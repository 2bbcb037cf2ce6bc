package shipping

import (
	"context"
	"encoding/json"

	"github.com/BearBump/ShopShip/internal/models"
)

// CreateResult is the provider's answer to an order creation.
type CreateResult struct {
	ProviderOrderID string
	ShipmentID      string
	Status          string
	Raw             json.RawMessage
}

type AWBResult struct {
	AWBCode string
	Raw     json.RawMessage
}

type LabelResult struct {
	LabelURL string
	Raw      json.RawMessage
}

// ProviderOrder is one entry of the provider's order list.
type ProviderOrder struct {
	ID             models.FlexString `json:"id"`
	OrderID        models.FlexString `json:"order_id"`
	ChannelOrderID models.FlexString `json:"channel_order_id"`
	AWBCode        models.FlexString `json:"awb_code"`
	Status         string            `json:"status"`
	CourierName    string            `json:"courier_name"`
	TrackingURL    string            `json:"tracking_url"`
}

// Matches reports whether the provider order belongs to the local public order id.
func (p ProviderOrder) Matches(orderID string) bool {
	if orderID == "" {
		return false
	}
	return p.OrderID.String() == orderID || p.ChannelOrderID.String() == orderID
}

// ProviderID is the provider's own id, falling back to order_id.
func (p ProviderOrder) ProviderID() string {
	if p.ID != "" {
		return p.ID.String()
	}
	return p.OrderID.String()
}

// Find returns the first order matching orderID.
func Find(orders []ProviderOrder, orderID string) (ProviderOrder, bool) {
	for _, o := range orders {
		if o.Matches(orderID) {
			return o, true
		}
	}
	return ProviderOrder{}, false
}

type Client interface {
	CreateOrder(ctx context.Context, order models.Order) (CreateResult, error)
	AssignAWB(ctx context.Context, shipmentID, courierID string) (AWBResult, error)
	GenerateLabel(ctx context.Context, shipmentID string) (LabelResult, error)
	TrackShipment(ctx context.Context, awbCode string) (json.RawMessage, error)
	GetCouriers(ctx context.Context, deliveryPincode string, weight float64) (json.RawMessage, error)
	GetAllOrders(ctx context.Context) ([]ProviderOrder, error)
	GetShipmentDetails(ctx context.Context, providerOrderID string) (json.RawMessage, error)
}
