package pgorders

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/BearBump/ShopShip/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestBuildDocUpdate(t *testing.T) {
	expr, args, err := buildDocUpdate(Fields{
		"shipping.status":  "NEW",
		"shipping.created": true,
	}, 2)
	require.NoError(t, err)
	require.Equal(t, "jsonb_set(jsonb_set(doc, $2::text[], $3::jsonb, true), $4::text[], $5::jsonb, true)", expr)
	require.Equal(t, []any{
		[]string{"shipping", "created"}, "true",
		[]string{"shipping", "status"}, `"NEW"`,
	}, args)
}

func TestBuildDocUpdate_RejectsBadPath(t *testing.T) {
	_, _, err := buildDocUpdate(Fields{"shipping..status": "x"}, 2)
	require.True(t, apperrors.IsValidation(err))

	_, _, err = buildDocUpdate(Fields{"status'); DROP TABLE orders; --": "x"}, 2)
	require.True(t, apperrors.IsValidation(err))
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "shopship_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/shopship_test?sslmode=disable"
	var st *Storage
	// the port opens before postgres accepts connections on first boot
	require.Eventually(t, func() bool {
		st, err = New(dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(st.Close)
	return st
}

func TestPGOrders_RepoFlow(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)

	o := &models.Order{
		OrderID: "VS-1001",
		UserID:  "user-1",
		Customer: models.Customer{
			Name: "Asha Rao", Email: "asha@example.com", Phone: "98",
			Address: models.Address{Street: "12 MG Road", City: "Bengaluru", State: "KA", Pincode: "560001"},
		},
		Items:   []models.LineItem{{ID: "S1", Name: "Saree", Quantity: 1, Price: 1200}},
		Payment: models.PaymentInfo{Method: "razorpay", PaymentID: "pay_1"},
		Status:  models.OrderStatusPending,
		Shipping: models.ShippingInfo{
			CourierName: "Delhivery",
		},
	}
	id, err := st.SaveOrder(ctx, o)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = st.SaveOrder(ctx, &models.Order{OrderID: "VS-1001"})
	require.True(t, apperrors.IsValidation(err))

	// partial update leaves other keys alone
	require.NoError(t, st.UpdateOrder(ctx, id, Fields{
		"shipping.providerOrderId": "7781",
		"shipping.status":          models.ShippingStatusNew,
		"shipping.created":         true,
	}))

	got, err := st.LoadOrder(ctx, "VS-1001")
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, "7781", got.Shipping.ProviderOrderID)
	require.Equal(t, models.ShippingStatusNew, got.Shipping.Status)
	require.True(t, got.Shipping.Created)
	require.Equal(t, "Delhivery", got.Shipping.CourierName)
	require.Equal(t, "Asha Rao", got.Customer.Name)
	require.Equal(t, "pay_1", got.Payment.PaymentID)

	_, err = st.LoadOrder(ctx, "nope")
	require.True(t, apperrors.IsNotFound(err))
	require.True(t, apperrors.IsNotFound(st.UpdateOrder(ctx, "missing-id", Fields{"status": "x"})))

	list, err := st.ListUserOrders(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// generated public id
	o2 := &models.Order{UserID: "user-2"}
	_, err = st.SaveOrder(ctx, o2)
	require.NoError(t, err)
	require.Regexp(t, `^ORD-[0-9A-F]{12}$`, o2.OrderID)
}

func TestPGOrders_ClaimDueSyncs(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)

	a := &models.Order{OrderID: "A"}
	b := &models.Order{OrderID: "B"}
	c := &models.Order{OrderID: "C"}
	for _, o := range []*models.Order{a, b, c} {
		_, err := st.SaveOrder(ctx, o)
		require.NoError(t, err)
	}

	now := time.Now().UTC()
	require.NoError(t, st.ScheduleSync(ctx, a.ID, now.Add(-time.Minute)))
	require.NoError(t, st.ScheduleSync(ctx, b.ID, now.Add(time.Hour)))
	// c is never scheduled

	lease := 10 * time.Second
	due, err := st.ClaimDueSyncs(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "A", due[0].Order.OrderID)
	require.Equal(t, 0, due[0].FailCount)

	// leased rows are not claimed again
	due, err = st.ClaimDueSyncs(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Empty(t, due)

	require.NoError(t, st.RecordSyncFailure(ctx, a.ID, "provider down", now.Add(-time.Second)))
	due, err = st.ClaimDueSyncs(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, 1, due[0].FailCount)
}
