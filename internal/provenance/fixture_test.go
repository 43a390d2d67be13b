package provenance

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/provenance-ledger/internal/data/memory"
	"github.com/provenance-ledger/internal/domain/actor"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/telemetry"
	"github.com/stretchr/testify/require"
)

var (
	producer     = actor.New("producer-1", actor.RoleProducer)
	distributor  = actor.New("dist-1", actor.RoleDistributor)
	distributor2 = actor.New("dist-2", actor.RoleDistributor)
	retailer     = actor.New("retail-1", actor.RoleRetailer)
	consumer     = actor.New("consumer-1", actor.RoleConsumer)
	admin        = actor.New("root", actor.RoleAdmin)
	gateway      = actor.New("telemetry-gateway", actor.RoleAdmin)
)

type fixture struct {
	store   *memory.Store
	archive *memory.Archive
	cache   *memory.ReadingCache
	core    *Core
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	f := &fixture{
		store:   memory.NewStore(),
		archive: memory.NewArchive(),
		cache:   memory.NewReadingCache(100, time.Hour),
	}
	f.core = New(f.store, logger, Options{
		Band:    &telemetry.ExcursionBand{Min: 0, Max: 30},
		Window:  memory.NewDedupWindow(100, time.Hour),
		Cache:   f.cache,
		Archive: f.archive,
	})
	return f
}

func (f *fixture) created(t *testing.T) *product.Product {
	t.Helper()
	p, err := f.core.Registry.Create(context.Background(), producer, product.Attributes{Name: "Fresh Meal Box", Category: "food"}, "")
	require.NoError(t, err)
	return p
}

func (f *fixture) active(t *testing.T) *product.Product {
	t.Helper()
	p := f.created(t)
	_, _, err := f.core.Machine.BindRFID(context.Background(), producer, p.ID, "RF-"+p.ID, "")
	require.NoError(t, err)
	p, _, err = f.core.Machine.Transition(context.Background(), producer, p.ID, product.EventActivate, TransitionOptions{})
	require.NoError(t, err)
	return p
}

func (f *fixture) inTransit(t *testing.T) *product.Product {
	t.Helper()
	p := f.active(t)
	p, _, err := f.core.Machine.Transition(context.Background(), distributor, p.ID, product.EventShipmentDeparted, TransitionOptions{})
	require.NoError(t, err)
	return p
}

func sample(productID string, temp float64) telemetry.Reading {
	return telemetry.Reading{
		DeviceID:    "dev-1",
		ProductID:   productID,
		Temperature: temp,
		Humidity:    55,
		Latitude:    52.52,
		Longitude:   13.40,
		ObservedAt:  time.Now().UTC().Add(-time.Second),
	}
}

func productAttrs() product.Attributes {
	return product.Attributes{Name: "Fresh Meal Box", Category: "food"}
}
