package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/BearBump/ShopShip/internal/cache"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultParcelWeight = 0.5

type assignAWBRequest struct {
	ShipmentID models.FlexString `json:"shiprocketOrderId" validate:"required"`
	CourierID  models.FlexString `json:"courierId" validate:"required"`
}

type generateLabelRequest struct {
	ShipmentID models.FlexString `json:"shipmentId" validate:"required"`
}

type orderIDRequest struct {
	OrderID models.FlexString `json:"orderId" validate:"required"`
}

type createShipmentResponse struct {
	ProviderOrderID string          `json:"providerOrderId"`
	ShipmentID      string          `json:"shipmentId,omitempty"`
	Status          string          `json:"status,omitempty"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}

type awbResponse struct {
	AWBCode string          `json:"awbCode"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

type labelResponse struct {
	LabelURL string          `json:"labelUrl"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

func (a *API) createShipment(w http.ResponseWriter, r *http.Request) {
	var in models.OrderInput
	if err := a.bind(r, &in, "invalid order"); err != nil {
		fail(w, http.StatusBadRequest, "Invalid order", err)
		return
	}
	if err := in.CheckQuantities(); err != nil {
		fail(w, http.StatusBadRequest, "Invalid order", err)
		return
	}
	o := in.Normalize()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = a.now()
	}
	res, err := a.ship.CreateOrder(r.Context(), o)
	if err != nil {
		a.log.Error("create shipment", zap.String("order_id", o.OrderID), zap.Error(err))
		fail(w, shippingStatusFor(err), "Failed to create order in Shiprocket", err)
		return
	}
	ok(w, "Order created successfully in Shiprocket", createShipmentResponse{
		ProviderOrderID: res.ProviderOrderID,
		ShipmentID:      res.ShipmentID,
		Status:          res.Status,
		Raw:             res.Raw,
	})
}

func (a *API) shipmentDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "providerOrderId")
	raw, err := a.ship.GetShipmentDetails(r.Context(), id)
	if err != nil {
		a.log.Error("shipment details", zap.String("provider_order_id", id), zap.Error(err))
		fail(w, shippingStatusFor(err), "Failed to get shipment details", err)
		return
	}
	ok(w, "Shipment details fetched successfully", raw)
}

func (a *API) assignAWB(w http.ResponseWriter, r *http.Request) {
	var req assignAWBRequest
	if err := a.bind(r, &req, "shiprocketOrderId and courierId are required"); err != nil {
		fail(w, http.StatusBadRequest, "shiprocketOrderId and courierId are required", err)
		return
	}
	res, err := a.ship.AssignAWB(r.Context(), req.ShipmentID.String(), req.CourierID.String())
	if err != nil {
		a.log.Error("assign awb", zap.String("shipment_id", req.ShipmentID.String()), zap.Error(err))
		fail(w, shippingStatusFor(err), "Failed to assign AWB", err)
		return
	}
	ok(w, "AWB assigned successfully", awbResponse{AWBCode: res.AWBCode, Raw: res.Raw})
}

func (a *API) generateLabel(w http.ResponseWriter, r *http.Request) {
	var req generateLabelRequest
	if err := a.bind(r, &req, "shipmentId is required"); err != nil {
		fail(w, http.StatusBadRequest, "shipmentId is required", err)
		return
	}
	res, err := a.ship.GenerateLabel(r.Context(), req.ShipmentID.String())
	if err != nil {
		a.log.Error("generate label", zap.String("shipment_id", req.ShipmentID.String()), zap.Error(err))
		fail(w, shippingStatusFor(err), "Failed to generate shipping label", err)
		return
	}
	ok(w, "Shipping label generated successfully", labelResponse{LabelURL: res.LabelURL, Raw: res.Raw})
}

func (a *API) trackShipment(w http.ResponseWriter, r *http.Request) {
	awb := strings.TrimSpace(chi.URLParam(r, "awbCode"))
	if awb == "" {
		fail(w, http.StatusBadRequest, "AWB code is required", nil)
		return
	}
	raw, err := a.cached(r.Context(), cache.TrackingKey(awb), func(ctx context.Context) (json.RawMessage, error) {
		return a.ship.TrackShipment(ctx, awb)
	})
	if err != nil {
		a.log.Error("track shipment", zap.String("awb", awb), zap.Error(err))
		fail(w, shippingStatusFor(err), "Failed to track shipment", err)
		return
	}
	ok(w, "Shipment tracking successful", raw)
}

func (a *API) couriers(w http.ResponseWriter, r *http.Request) {
	pincode := strings.TrimSpace(r.URL.Query().Get("pincode"))
	if pincode == "" {
		fail(w, http.StatusBadRequest, "Pincode is required", nil)
		return
	}
	weight := defaultParcelWeight
	if ws := strings.TrimSpace(r.URL.Query().Get("weight")); ws != "" {
		wv, err := strconv.ParseFloat(ws, 64)
		if err != nil || wv <= 0 {
			fail(w, http.StatusBadRequest, "Weight must be a positive number", nil)
			return
		}
		weight = wv
	}

	key := cache.CouriersKey(pincode, strconv.FormatFloat(weight, 'f', -1, 64))
	raw, err := a.cached(r.Context(), key, func(ctx context.Context) (json.RawMessage, error) {
		return a.ship.GetCouriers(ctx, pincode, weight)
	})
	if err != nil {
		a.log.Error("get couriers", zap.String("pincode", pincode), zap.Error(err))
		fail(w, shippingStatusFor(err), "Failed to get available couriers", err)
		return
	}
	ok(w, "Available couriers fetched successfully", raw)
}

func (a *API) syncOrder(w http.ResponseWriter, r *http.Request) {
	var req orderIDRequest
	if err := a.bind(r, &req, "Order ID is required"); err != nil {
		fail(w, http.StatusBadRequest, "Order ID is required", err)
		return
	}
	orderID := req.OrderID.String()
	res, err := a.orders.Reconcile(r.Context(), orderID)
	if err != nil {
		fail(w, shippingStatusFor(err), "Failed to sync order with Shiprocket", err)
		return
	}
	if !res.Found {
		writeJSON(w, http.StatusOK, envelope{
			Success: false,
			Message: fmt.Sprintf("Order %s not found in Shiprocket", orderID),
		})
		return
	}
	if a.cache != nil && res.AWBCode != "" {
		if err := a.cache.Delete(r.Context(), cache.TrackingKey(res.AWBCode)); err != nil {
			a.log.Warn("drop cached tracking", zap.String("awb", res.AWBCode), zap.Error(err))
		}
	}
	ok(w, fmt.Sprintf("Order %s synced successfully with Shiprocket", orderID), res)
}

func (a *API) createRealOrder(w http.ResponseWriter, r *http.Request) {
	var req orderIDRequest
	if err := a.bind(r, &req, "Order ID is required"); err != nil {
		fail(w, http.StatusBadRequest, "Order ID is required", err)
		return
	}
	res, err := a.orders.CreateAndLink(r.Context(), req.OrderID.String())
	if err != nil {
		fail(w, shippingStatusFor(err), "Failed to create order in Shiprocket", err)
		return
	}
	if res.AlreadyLinked {
		writeJSON(w, http.StatusOK, envelope{
			Success: false,
			Message: "Order already exists in Shiprocket",
			Data:    res,
		})
		return
	}
	ok(w, "Order successfully created in Shiprocket", res)
}

// cached serves key from the response cache, filling it from fetch on a miss.
// Cache failures only cost a provider call.
func (a *API) cached(ctx context.Context, key string, fetch func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if a.cache != nil {
		b, hit, err := a.cache.Get(ctx, key)
		if err != nil {
			a.log.Warn("cache get", zap.String("key", key), zap.Error(err))
		} else if hit {
			return json.RawMessage(b), nil
		}
	}

	raw, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, key, raw, a.opts.CacheTTL); err != nil {
			a.log.Warn("cache set", zap.String("key", key), zap.Error(err))
		}
	}
	return raw, nil
}
