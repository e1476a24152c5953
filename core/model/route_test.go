package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func wp(hubID string) Waypoint {
	return Waypoint{Kind: WaypointDrop, HubID: hubID}
}

func TestRouteHubIDs(t *testing.T) {
	r := Route{Waypoints: []Waypoint{wp("h1"), wp(""), wp("h2"), wp("h1")}}
	assert.Equal(t, []string{"h1", "h2"}, r.HubIDs())
}

func TestRouteSharesHub(t *testing.T) {
	a := Route{Waypoints: []Waypoint{wp("h1"), wp("h2")}}
	b := Route{Waypoints: []Waypoint{wp("h2"), wp("h3")}}
	c := Route{Waypoints: []Waypoint{wp("h4")}}

	assert.True(t, a.SharesHub(b))
	assert.True(t, b.SharesHub(a))
	assert.False(t, a.SharesHub(c))
	assert.False(t, Route{}.SharesHub(a))
}

func TestTotalLoadAndDeliveryIDs(t *testing.T) {
	deliveries := []Delivery{
		{ID: "d1", WeightKg: 10, VolumeL: 40},
		{ID: "d2", WeightKg: 15, VolumeL: 60},
	}
	w, v := TotalLoad(deliveries)
	assert.Equal(t, 25.0, w)
	assert.Equal(t, 100.0, v)
	assert.Equal(t, []string{"d1", "d2"}, DeliveryIDs(deliveries))
}
