package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/integrations/shipping"
	"github.com/BearBump/ShopShip/internal/logging"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL       = "https://apiv2.shiprocket.in/v1/external"
	DefaultPickupPincode = "110001"
	DefaultTimeout       = 10 * time.Second

	defaultCourierWeight = 0.5
	maxBodyBytes         = 4 << 20
)

type Options struct {
	BaseURL       string
	Email         string
	Password      string
	PickupPincode string
	Timeout       time.Duration
	Transform     TransformOptions
	Logger        *zap.Logger
	Now           func() time.Time
}

type Client struct {
	baseURL       string
	email         string
	password      string
	pickupPincode string
	transform     TransformOptions
	httpc         *http.Client
	session       *Session
	log           *zap.Logger
	now           func() time.Time
}

var _ shipping.Client = (*Client)(nil)

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PickupPincode == "" {
		opts.PickupPincode = DefaultPickupPincode
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		email:         opts.Email,
		password:      opts.Password,
		pickupPincode: opts.PickupPincode,
		transform:     opts.Transform,
		httpc: &http.Client{
			Timeout: opts.Timeout,
		},
		session: NewSession(opts.Now),
		log:     logging.OrNop(opts.Logger).Named("shiprocket"),
		now:     opts.Now,
	}
}

// Session exposes the client's token holder.
func (c *Client) Session() *Session { return c.session }

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Authenticate returns a valid bearer token, logging in when the cached one is absent or expired.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if token, ok := c.session.Token(); ok {
		return token, nil
	}
	if c.email == "" || c.password == "" {
		return "", &apperrors.AuthError{Message: "credentials are not configured"}
	}

	var resp loginResponse
	err := c.send(ctx, "authenticate", http.MethodPost, "/auth/login", nil, "", loginRequest{
		Email:    c.email,
		Password: c.password,
	}, &resp)
	if err != nil {
		var ue *apperrors.UpstreamError
		if errors.As(err, &ue) && !ue.Timeout {
			err = &apperrors.AuthError{Message: ue.Message}
		}
		c.log.Error("authentication failed", zap.Error(err))
		return "", err
	}
	if resp.Token == "" {
		c.log.Error("authentication returned no token")
		return "", &apperrors.AuthError{Message: "invalid response: no token"}
	}

	c.session.Store(resp.Token, TokenTTL)
	c.log.Info("authenticated", zap.Time("expires_at", c.session.ExpiresAt()))
	return resp.Token, nil
}

type createResponse struct {
	OrderID        models.FlexString `json:"order_id"`
	ChannelOrderID models.FlexString `json:"channel_order_id"`
	ShipmentID     models.FlexString `json:"shipment_id"`
	Status         string            `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, order models.Order) (shipping.CreateResult, error) {
	opts := c.transform
	if opts.OrderDate.IsZero() {
		opts.OrderDate = c.now()
	}
	req, err := Transform(order, opts)
	if err != nil {
		c.log.Error("order transform failed", zap.String("order_id", order.OrderID), zap.Error(err))
		return shipping.CreateResult{}, err
	}

	var raw json.RawMessage
	if err := c.do(ctx, "create order", http.MethodPost, "/orders/create/adhoc", nil, req, &raw); err != nil {
		return shipping.CreateResult{}, err
	}
	var resp createResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return shipping.CreateResult{}, invalidResponse("create order", err)
	}

	// order_id and channel_order_id are used inconsistently; take the first present.
	id := resp.OrderID.String()
	if id == "" {
		id = resp.ChannelOrderID.String()
	}
	if id == "" {
		return shipping.CreateResult{}, &apperrors.UpstreamError{Op: "create order", Message: "invalid response: no order id"}
	}

	c.log.Info("order created", zap.String("order_id", order.OrderID), zap.String("provider_order_id", id))
	return shipping.CreateResult{
		ProviderOrderID: id,
		ShipmentID:      resp.ShipmentID.String(),
		Status:          resp.Status,
		Raw:             raw,
	}, nil
}

func (c *Client) AssignAWB(ctx context.Context, shipmentID, courierID string) (shipping.AWBResult, error) {
	body := map[string]string{
		"shipment_id": shipmentID,
		"courier_id":  courierID,
	}
	var raw json.RawMessage
	if err := c.do(ctx, "assign awb", http.MethodPost, "/courier/assign/awb", nil, body, &raw); err != nil {
		return shipping.AWBResult{}, err
	}
	var resp struct {
		AWBCode models.FlexString `json:"awb_code"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return shipping.AWBResult{}, invalidResponse("assign awb", err)
	}
	if resp.AWBCode == "" {
		return shipping.AWBResult{}, &apperrors.UpstreamError{Op: "assign awb", Message: "invalid response: no awb_code"}
	}
	return shipping.AWBResult{AWBCode: resp.AWBCode.String(), Raw: raw}, nil
}

func (c *Client) GenerateLabel(ctx context.Context, shipmentID string) (shipping.LabelResult, error) {
	body := map[string]string{"shipment_id": shipmentID}
	var raw json.RawMessage
	if err := c.do(ctx, "generate label", http.MethodPost, "/courier/generate/label", nil, body, &raw); err != nil {
		return shipping.LabelResult{}, err
	}
	var resp struct {
		LabelURL string `json:"label_url"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return shipping.LabelResult{}, invalidResponse("generate label", err)
	}
	if resp.LabelURL == "" {
		return shipping.LabelResult{}, &apperrors.UpstreamError{Op: "generate label", Message: "invalid response: no label_url"}
	}
	return shipping.LabelResult{LabelURL: resp.LabelURL, Raw: raw}, nil
}

func (c *Client) TrackShipment(ctx context.Context, awbCode string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "track shipment", http.MethodGet, "/courier/track/awb/"+url.PathEscape(awbCode), nil, nil, &raw); err != nil {
		return nil, err
	}
	if isEmptyJSON(raw) {
		return nil, &apperrors.UpstreamError{Op: "track shipment", Message: "invalid response: no data"}
	}
	return raw, nil
}

func (c *Client) GetCouriers(ctx context.Context, deliveryPincode string, weight float64) (json.RawMessage, error) {
	if weight <= 0 {
		weight = defaultCourierWeight
	}
	q := url.Values{}
	q.Set("pickup_pincode", c.pickupPincode)
	q.Set("delivery_pincode", deliveryPincode)
	q.Set("weight", strconv.FormatFloat(weight, 'f', -1, 64))
	q.Set("cod", "0")

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, "get couriers", http.MethodGet, "/courier/serviceability/", q, nil, &resp); err != nil {
		return nil, err
	}
	if isEmptyJSON(resp.Data) {
		return nil, &apperrors.UpstreamError{Op: "get couriers", Message: "invalid response: no data"}
	}
	return resp.Data, nil
}

func (c *Client) GetAllOrders(ctx context.Context) ([]shipping.ProviderOrder, error) {
	var resp struct {
		Data []shipping.ProviderOrder `json:"data"`
	}
	if err := c.do(ctx, "get orders", http.MethodGet, "/orders", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, &apperrors.UpstreamError{Op: "get orders", Message: "invalid response: no data"}
	}
	return resp.Data, nil
}

func (c *Client) GetShipmentDetails(ctx context.Context, providerOrderID string) (json.RawMessage, error) {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, "get shipment details", http.MethodGet, "/orders/show/"+url.PathEscape(providerOrderID), nil, nil, &resp); err != nil {
		return nil, err
	}
	if isEmptyJSON(resp.Data) {
		return nil, &apperrors.UpstreamError{Op: "get shipment details", Message: "invalid response: no data"}
	}
	return resp.Data, nil
}

// do authenticates and then performs one request. There are no retries.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}
	err = c.send(ctx, op, method, path, query, token, body, out)
	if err != nil {
		var ue *apperrors.UpstreamError
		if errors.As(err, &ue) && ue.Status == http.StatusUnauthorized {
			c.session.Reset()
		}
		c.log.Error("request failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, token string, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &apperrors.UpstreamError{Op: op, Message: "request timed out", Timeout: true}
		}
		return &apperrors.UpstreamError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return &apperrors.UpstreamError{Op: op, Message: "request timed out", Timeout: true, Status: resp.StatusCode}
		}
		return &apperrors.UpstreamError{Op: op, Message: "read body: " + err.Error(), Status: resp.StatusCode}
	}

	if resp.StatusCode/100 != 2 {
		return &apperrors.UpstreamError{Op: op, Message: providerMessage(data, resp.StatusCode), Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return invalidResponse(op, err)
	}
	return nil
}

// providerMessage extracts the provider's "message" field, falling back to the HTTP status.
func providerMessage(body []byte, status int) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return "http " + strconv.Itoa(status)
}

func invalidResponse(op string, err error) error {
	return &apperrors.UpstreamError{Op: op, Message: "invalid response: " + err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
