package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightpool/absorb/core/geo"
	infrastore "github.com/freightpool/absorb/infra/store"
)

func TestGenerateFleetDeterministic(t *testing.T) {
	a := GenerateFleet(Config{Trucks: 4, Seed: 42})
	b := GenerateFleet(Config{Trucks: 4, Seed: 42})
	// Timestamps differ between runs; the random placement must not.
	assert.Equal(t, a.Trucks, b.Trucks)
	assert.Equal(t, a.Drivers, b.Drivers)
}

func TestGenerateFleetShape(t *testing.T) {
	f := GenerateFleet(Config{Trucks: 3, Seed: 1})
	assert.Len(t, f.Trucks, 3)
	assert.Len(t, f.Drivers, 3)
	assert.Len(t, f.Routes, 3)
	assert.Len(t, f.Deliveries, 6)
	require.Len(t, f.Hubs, 1)

	for _, tr := range f.Trucks {
		require.NoError(t, tr.Validate())
		assert.True(t, tr.HasPosition)
		assert.LessOrEqual(t, geo.Distance(tr.Position, f.Hubs[0].Position), 20.0)
	}
	for _, r := range f.Routes {
		assert.Contains(t, r.HubIDs(), f.Hubs[0].ID)
	}
}

func TestFleetSeedsScannableStore(t *testing.T) {
	st := infrastore.NewMemoryStore()
	GenerateFleet(Config{Trucks: 4, Seed: 7}).Seed(st)

	fleet, err := st.ActiveFleet(context.Background())
	require.NoError(t, err)
	assert.Len(t, fleet, 4)
	hubs, err := st.Hubs(context.Background())
	require.NoError(t, err)
	assert.Len(t, hubs, 1)
}
