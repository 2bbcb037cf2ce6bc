package providers

import (
	"strings"
	"time"

	"github.com/BearBump/ShopShip/config"
	"github.com/BearBump/ShopShip/internal/integrations/shipping"
	"github.com/BearBump/ShopShip/internal/integrations/shipping/fake"
	"github.com/BearBump/ShopShip/internal/integrations/shipping/shiprocket"
	"github.com/BearBump/ShopShip/internal/logging"
	"go.uber.org/zap"
)

const (
	ModeShiprocket = "shiprocket"
	ModeFake       = "fake"
)

// New picks the shipping provider. An empty mode means shiprocket when credentials are set,
// the in-memory fake otherwise.
func New(cfg config.ShippingConfig, logger *zap.Logger) shipping.Client {
	log := logging.OrNop(logger)
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = ModeFake
		if cfg.Email != "" && cfg.Password != "" {
			mode = ModeShiprocket
		}
	}

	switch mode {
	case ModeShiprocket:
		log.Info("shipping provider selected", zap.String("mode", mode), zap.String("base_url", cfg.BaseURL))
		return shiprocket.New(shiprocket.Options{
			BaseURL:       cfg.BaseURL,
			Email:         cfg.Email,
			Password:      cfg.Password,
			PickupPincode: cfg.PickupPincode,
			Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transform: shiprocket.TransformOptions{
				PickupLocation:  cfg.PickupLocation,
				ProductCategory: cfg.ProductCategory,
				HSN:             cfg.HSN,
				OrderNotes:      cfg.OrderNotes,
			},
			Logger: logger,
		})
	default:
		if mode != ModeFake {
			log.Warn("unknown shipping mode, using fake provider", zap.String("mode", mode))
		} else {
			log.Info("shipping provider selected", zap.String("mode", ModeFake))
		}
		return fake.New()
	}
}
