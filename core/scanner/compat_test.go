package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCargoCompatible(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Food Products", "Industrial Chemicals", false},
		{"Pharmaceuticals", "Hazardous Waste", false},
		{"Food Products", "Pharmaceuticals", true},
		{"Chemicals", "Hazardous Goods", true},
		{"Electronics", "Textiles", true},
		{"Electronics", "Chemicals", true},
		{"food products", "CHEMICALS", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CargoCompatible(c.a, c.b), "%s vs %s", c.a, c.b)
	}
}

func TestCargoCompatibleSymmetric(t *testing.T) {
	types := []string{"Food Products", "Pharmaceuticals", "Chemicals", "Hazardous Waste", "Electronics"}
	for _, a := range types {
		for _, b := range types {
			assert.Equal(t, CargoCompatible(a, b), CargoCompatible(b, a), "%s vs %s", a, b)
		}
	}
}

func TestRoutesCompatible(t *testing.T) {
	assert.True(t, routesCompatible([]string{"Electronics"}, []string{"Textiles", "Machinery"}))
	assert.False(t, routesCompatible([]string{"Electronics", "Food Products"}, []string{"Chemicals"}))
	assert.True(t, routesCompatible(nil, []string{"Chemicals"}))
}
