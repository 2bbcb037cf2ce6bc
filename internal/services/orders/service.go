package orders

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/broker"
	"github.com/BearBump/ShopShip/internal/broker/messages"
	"github.com/BearBump/ShopShip/internal/integrations/shipping"
	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/BearBump/ShopShip/internal/storage/pgorders"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ShippingWarning is attached to an order whose payment went through but whose shipment
// could not be created.
const ShippingWarning = "Order saved but shipping integration failed"

const firstSyncDelay = 30 * time.Minute

type Repository interface {
	SaveOrder(ctx context.Context, o *models.Order) (string, error)
	LoadOrder(ctx context.Context, orderID string) (*models.Order, error)
	UpdateOrder(ctx context.Context, id string, fields pgorders.Fields) error
	ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	ScheduleSync(ctx context.Context, id string, at time.Time) error
}

type PaymentVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

type Service struct {
	repo     Repository
	ship     shipping.Client
	verifier PaymentVerifier
	pub      broker.Publisher
	topic    string
	log      *zap.Logger
	now      func() time.Time
}

func New(repo Repository, ship shipping.Client, verifier PaymentVerifier, pub broker.Publisher, topic string, logger *zap.Logger) *Service {
	if pub == nil {
		pub = broker.Noop{}
	}
	return &Service{
		repo:     repo,
		ship:     ship,
		verifier: verifier,
		pub:      pub,
		topic:    topic,
		log:      logging.OrNop(logger).Named("orders"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SaveResult struct {
	ID              string `json:"id"`
	OrderID         string `json:"orderId"`
	ProviderOrderID string `json:"providerOrderId,omitempty"`
	Warning         string `json:"warning,omitempty"`
	ShippingError   string `json:"shippingError,omitempty"`
}

type LinkResult struct {
	AlreadyLinked   bool   `json:"alreadyLinked"`
	ProviderOrderID string `json:"providerOrderId"`
}

type ReconcileResult struct {
	Found           bool     `json:"found"`
	ProviderOrderID string   `json:"providerOrderId,omitempty"`
	AWBCode         string   `json:"awbCode,omitempty"`
	Status          string   `json:"status,omitempty"`
	Updated         []string `json:"updated,omitempty"`
}

// BatchItem is the outcome of reconciling one order of a batch.
type BatchItem struct {
	Order  *models.Order
	Result ReconcileResult
	Err    error
}

// SaveOrder stores a paid order and then tries to create its shipment.
// Prepaid orders need a valid payment signature before anything is stored.
// A failed shipment never undoes the save: the order keeps a warning instead.
func (s *Service) SaveOrder(ctx context.Context, in models.OrderInput) (SaveResult, error) {
	if err := in.CheckQuantities(); err != nil {
		return SaveResult{}, err
	}
	o := in.Normalize()
	if err := s.checkPayment(o.Payment); err != nil {
		s.log.Warn("order rejected", zap.String("order_id", o.OrderID), zap.Error(err))
		return SaveResult{}, err
	}

	o.Status = models.OrderStatusPending
	o.Shipping = models.ShippingInfo{}
	o.Warning = ""
	id, err := s.repo.SaveOrder(ctx, &o)
	if err != nil {
		return SaveResult{}, err
	}
	s.log.Info("order saved", zap.String("order_id", o.OrderID), zap.String("id", id))

	res := SaveResult{ID: id, OrderID: o.OrderID}
	link, err := s.link(ctx, &o, pgorders.Fields{"status": models.OrderStatusConfirmed})
	if err != nil {
		s.log.Warn("shipping creation failed after payment", zap.String("order_id", o.OrderID), zap.Error(err))
		res.Warning = ShippingWarning
		res.ShippingError = err.Error()
		if uerr := s.repo.UpdateOrder(ctx, id, pgorders.Fields{
			"warning":   ShippingWarning + ": " + err.Error(),
			"updatedAt": s.now(),
		}); uerr != nil {
			s.log.Error("store shipping warning", zap.String("order_id", o.OrderID), zap.Error(uerr))
		}
		return res, nil
	}
	res.ProviderOrderID = link.ProviderOrderID
	return res, nil
}

func (s *Service) checkPayment(p models.PaymentInfo) error {
	switch p.NormalizedMethod() {
	case "":
		return apperrors.NewValidation("payment method is required", "paymentInfo.method")
	case models.PaymentMethodCOD:
		return nil
	}

	var missing []string
	if strings.TrimSpace(p.OrderID) == "" {
		missing = append(missing, "paymentInfo.orderId")
	}
	if strings.TrimSpace(p.PaymentID) == "" {
		missing = append(missing, "paymentInfo.paymentId")
	}
	if strings.TrimSpace(p.Signature) == "" {
		missing = append(missing, "paymentInfo.signature")
	}
	if len(missing) > 0 {
		return apperrors.NewValidation("payment verification required", missing...)
	}
	if s.verifier == nil || !s.verifier.Verify(p.OrderID, p.PaymentID, p.Signature) {
		return apperrors.NewValidation("invalid payment signature", "paymentInfo.signature")
	}
	return nil
}

// CreateAndLink submits a stored order to the shipping provider and records the provider id.
// Orders that are already linked are left alone.
func (s *Service) CreateAndLink(ctx context.Context, orderID string) (LinkResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return LinkResult{}, apperrors.NewValidation("order id is required", "orderId")
	}
	o, err := s.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return LinkResult{}, err
	}
	if o.Shipping.Linked() {
		s.log.Info("order already linked", zap.String("order_id", orderID), zap.String("provider_order_id", o.Shipping.ProviderOrderID))
		return LinkResult{AlreadyLinked: true, ProviderOrderID: o.Shipping.ProviderOrderID}, nil
	}
	return s.link(ctx, o, nil)
}

func (s *Service) link(ctx context.Context, o *models.Order, extra pgorders.Fields) (LinkResult, error) {
	res, err := s.ship.CreateOrder(ctx, *o)
	if err != nil {
		s.log.Error("create shipment", zap.String("order_id", o.OrderID), zap.Error(err))
		return LinkResult{}, err
	}

	now := s.now()
	fields := pgorders.Fields{
		"shipping.providerOrderId": res.ProviderOrderID,
		"shipping.status":          models.ShippingStatusNew,
		"shipping.created":         true,
		"shipping.lastSyncedAt":    now,
		"updatedAt":                now,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if err := s.repo.UpdateOrder(ctx, o.ID, fields); err != nil {
		s.log.Error("store provider order id", zap.String("order_id", o.OrderID), zap.String("provider_order_id", res.ProviderOrderID), zap.Error(err))
		return LinkResult{}, errors.Wrap(err, "store provider order id")
	}
	if err := s.repo.ScheduleSync(ctx, o.ID, now.Add(firstSyncDelay)); err != nil {
		s.log.Warn("schedule first sync", zap.String("order_id", o.OrderID), zap.Error(err))
	}

	s.log.Info("order linked", zap.String("order_id", o.OrderID), zap.String("provider_order_id", res.ProviderOrderID))
	s.publish(ctx, messages.ShippingUpdated{
		OrderID:         o.OrderID,
		ProviderOrderID: res.ProviderOrderID,
		Status:          models.ShippingStatusNew,
		Source:          messages.SourceLink,
		SyncedAt:        now,
	})
	return LinkResult{ProviderOrderID: res.ProviderOrderID}, nil
}

// Reconcile copies the provider's view of one order onto the stored record.
// No matching provider entry is reported as Found=false, not as an error.
func (s *Service) Reconcile(ctx context.Context, orderID string) (ReconcileResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return ReconcileResult{}, apperrors.NewValidation("order id is required", "orderId")
	}
	o, err := s.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return ReconcileResult{}, err
	}
	list, err := s.ship.GetAllOrders(ctx)
	if err != nil {
		s.log.Error("fetch provider orders", zap.Error(err))
		return ReconcileResult{}, err
	}
	return s.reconcileWith(ctx, o, list, messages.SourceReconcile)
}

// ReconcileOrders reconciles a batch against a single fetch of the provider's order list.
func (s *Service) ReconcileOrders(ctx context.Context, batch []*models.Order) ([]BatchItem, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	list, err := s.ship.GetAllOrders(ctx)
	if err != nil {
		s.log.Error("fetch provider orders", zap.Error(err))
		return nil, err
	}
	out := make([]BatchItem, 0, len(batch))
	for _, o := range batch {
		res, err := s.reconcileWith(ctx, o, list, messages.SourceWorker)
		out = append(out, BatchItem{Order: o, Result: res, Err: err})
	}
	return out, nil
}

func (s *Service) reconcileWith(ctx context.Context, o *models.Order, list []shipping.ProviderOrder, source string) (ReconcileResult, error) {
	po, ok := shipping.Find(list, o.OrderID)
	if !ok {
		s.log.Info("order not found at provider", zap.String("order_id", o.OrderID))
		return ReconcileResult{Found: false, Status: o.Shipping.Status}, nil
	}

	merged := o.Shipping
	fields := pgorders.Fields{}
	set := func(path, val string, dst *string) {
		if val == "" {
			return
		}
		fields[path] = val
		*dst = val
	}
	set("shipping.providerOrderId", po.ProviderID(), &merged.ProviderOrderID)
	set("shipping.awbCode", po.AWBCode.String(), &merged.AWBCode)
	set("shipping.status", po.Status, &merged.Status)
	set("shipping.courierName", po.CourierName, &merged.CourierName)
	set("shipping.trackingUrl", po.TrackingURL, &merged.TrackingURL)

	updated := make([]string, 0, len(fields))
	for k := range fields {
		updated = append(updated, strings.TrimPrefix(k, "shipping."))
	}
	sort.Strings(updated)

	now := s.now()
	fields["shipping.lastSyncedAt"] = now
	fields["updatedAt"] = now
	if err := s.repo.UpdateOrder(ctx, o.ID, fields); err != nil {
		s.log.Error("store reconciled fields", zap.String("order_id", o.OrderID), zap.Error(err))
		return ReconcileResult{}, errors.Wrap(err, "store reconciled fields")
	}

	s.publish(ctx, messages.ShippingUpdated{
		OrderID:         o.OrderID,
		ProviderOrderID: merged.ProviderOrderID,
		AWBCode:         merged.AWBCode,
		Status:          merged.Status,
		CourierName:     merged.CourierName,
		TrackingURL:     merged.TrackingURL,
		Source:          source,
		SyncedAt:        now,
	})
	return ReconcileResult{
		Found:           true,
		ProviderOrderID: merged.ProviderOrderID,
		AWBCode:         merged.AWBCode,
		Status:          merged.Status,
		Updated:         updated,
	}, nil
}

func (s *Service) ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewValidation("user id is required", "userId")
	}
	return s.repo.ListUserOrders(ctx, userID, limit, offset)
}

// UpdateOrderStatus sets the local order status. Shipping fields are not touched.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, status string) (*models.Order, error) {
	status = strings.TrimSpace(status)
	var missing []string
	if strings.TrimSpace(orderID) == "" {
		missing = append(missing, "orderId")
	}
	if status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidation("missing required fields", missing...)
	}

	o, err := s.repo.LoadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.repo.UpdateOrder(ctx, o.ID, pgorders.Fields{"status": status, "updatedAt": now}); err != nil {
		return nil, err
	}
	o.Status = status
	o.UpdatedAt = now
	return o, nil
}

// publish is best-effort: a broker outage never fails the workflow.
func (s *Service) publish(ctx context.Context, ev messages.ShippingUpdated) {
	b, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("marshal shipping event", zap.Error(err))
		return
	}
	if err := s.pub.Publish(ctx, s.topic, ev.Key(), b); err != nil {
		s.log.Warn("publish shipping event", zap.String("order_id", ev.OrderID), zap.Error(err))
	}
}
