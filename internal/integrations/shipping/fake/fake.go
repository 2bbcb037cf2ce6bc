package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"

	"github.com/BearBump/ShopShip/internal/integrations/shipping"
	"github.com/BearBump/ShopShip/internal/integrations/shipping/shiprocket"
	"github.com/BearBump/ShopShip/internal/models"
)

// Client is an in-memory shipping provider. It is used when no provider credentials are
// configured and in tests. Status is deterministic per order id: roughly one in five
// orders reports DELIVERED, the rest IN TRANSIT.
type Client struct {
	mu      sync.Mutex
	nextID  int
	orders  map[string]*shipping.ProviderOrder // by provider id
	creates int

	// Err, when set, is returned by every call.
	Err error
}

var _ shipping.Client = (*Client)(nil)

func New() *Client {
	return &Client{nextID: 1000, orders: make(map[string]*shipping.ProviderOrder)}
}

// Creates returns how many orders were submitted.
func (c *Client) Creates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

// Put seeds a provider-side order, as if it were created elsewhere.
func (c *Client) Put(o shipping.ProviderOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[o.ProviderID()] = &o
}

func (c *Client) CreateOrder(ctx context.Context, order models.Order) (shipping.CreateResult, error) {
	if c.Err != nil {
		return shipping.CreateResult{}, c.Err
	}
	if _, err := shiprocket.Transform(order, shiprocket.TransformOptions{}); err != nil {
		return shipping.CreateResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.creates++
	id := strconv.Itoa(c.nextID)
	c.orders[id] = &shipping.ProviderOrder{
		ID:             models.FlexString(id),
		ChannelOrderID: models.FlexString(order.OrderID),
		Status:         models.ShippingStatusNew,
	}
	raw, _ := json.Marshal(map[string]any{"order_id": id, "shipment_id": id, "status": models.ShippingStatusNew})
	return shipping.CreateResult{ProviderOrderID: id, ShipmentID: id, Status: models.ShippingStatusNew, Raw: raw}, nil
}

func (c *Client) AssignAWB(ctx context.Context, shipmentID, courierID string) (shipping.AWBResult, error) {
	if c.Err != nil {
		return shipping.AWBResult{}, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[shipmentID]
	if !ok {
		return shipping.AWBResult{}, fmt.Errorf("fake shipping: unknown shipment %s", shipmentID)
	}
	awb := fmt.Sprintf("FAKE%08d", hash(shipmentID+"|"+courierID)%100000000)
	o.AWBCode = models.FlexString(awb)
	o.CourierName = "Fake Courier " + courierID
	o.TrackingURL = "https://track.example/" + awb
	o.Status = statusFor(o.ChannelOrderID.String())
	raw, _ := json.Marshal(map[string]string{"awb_code": awb})
	return shipping.AWBResult{AWBCode: awb, Raw: raw}, nil
}

func (c *Client) GenerateLabel(ctx context.Context, shipmentID string) (shipping.LabelResult, error) {
	if c.Err != nil {
		return shipping.LabelResult{}, c.Err
	}
	u := "https://labels.example/" + shipmentID + ".pdf"
	raw, _ := json.Marshal(map[string]string{"label_url": u})
	return shipping.LabelResult{LabelURL: u, Raw: raw}, nil
}

func (c *Client) TrackShipment(ctx context.Context, awbCode string) (json.RawMessage, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return json.Marshal(map[string]any{
		"tracking_data": map[string]any{
			"awb_code":        awbCode,
			"shipment_status": statusFor(awbCode),
			"track_url":       "https://track.example/" + awbCode,
		},
	})
}

func (c *Client) GetCouriers(ctx context.Context, deliveryPincode string, weight float64) (json.RawMessage, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return json.Marshal(map[string]any{
		"available_courier_companies": []map[string]any{
			{"courier_company_id": 1, "courier_name": "Fake Surface", "rate": 60 + weight*20, "etd": "5 days"},
			{"courier_company_id": 2, "courier_name": "Fake Air", "rate": 110 + weight*40, "etd": "2 days"},
		},
		"delivery_pincode": deliveryPincode,
	})
}

func (c *Client) GetAllOrders(ctx context.Context) ([]shipping.ProviderOrder, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]shipping.ProviderOrder, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID() < out[j].ProviderID() })
	return out, nil
}

func (c *Client) GetShipmentDetails(ctx context.Context, providerOrderID string) (json.RawMessage, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	o, ok := c.orders[providerOrderID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fake shipping: unknown order %s", providerOrderID)
	}
	return json.Marshal(o)
}

func statusFor(key string) string {
	if hash(key)%5 == 0 {
		return models.ShippingStatusDelivered
	}
	return models.ShippingStatusInTransit
}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
