package messages

import "time"

const (
	SourceLink      = "link"
	SourceReconcile = "reconcile"
	SourceWorker    = "worker"
)

// ShippingUpdated is published after an order's shipping fields change.
type ShippingUpdated struct {
	OrderID         string    `json:"order_id"`
	ProviderOrderID string    `json:"provider_order_id,omitempty"`
	AWBCode         string    `json:"awb_code,omitempty"`
	Status          string    `json:"status,omitempty"`
	CourierName     string    `json:"courier_name,omitempty"`
	TrackingURL     string    `json:"tracking_url,omitempty"`
	Source          string    `json:"source"`
	SyncedAt        time.Time `json:"synced_at"`
}

// Key partitions events by order so they stay ordered per order.
func (m ShippingUpdated) Key() []byte { return []byte(m.OrderID) }
