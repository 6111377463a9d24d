package bundle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBundle_Validate(t *testing.T) {
	fixed := &Bundle{Type: TypeFixed, Items: []Item{{ProductID: 1, Quantity: 1}}}
	assert.NoError(t, fixed.Validate())

	conf := &Bundle{Type: TypeConfigurable, OptionGroups: []OptionGroup{
		{Name: "Size", Options: []Option{{ProductID: 2, Name: "L", PriceModifier: decimal.Zero}}},
	}}
	assert.NoError(t, conf.Validate())

	tests := []struct {
		name string
		b    *Bundle
	}{
		{"unknown type", &Bundle{Type: "mystery", Items: []Item{{ProductID: 1, Quantity: 1}}}},
		{"fixed without items", &Bundle{Type: TypeFixed}},
		{"fixed with groups", &Bundle{Type: TypeFixed, Items: fixed.Items, OptionGroups: conf.OptionGroups}},
		{"fixed zero quantity", &Bundle{Type: TypeFixed, Items: []Item{{ProductID: 1, Quantity: 0}}}},
		{"configurable without groups", &Bundle{Type: TypeConfigurable}},
		{"configurable empty group", &Bundle{Type: TypeConfigurable, OptionGroups: []OptionGroup{{Name: "Size"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.b.Validate(), ErrInvalidShape)
		})
	}
}

func TestBundle_GroupAndOption(t *testing.T) {
	b := &Bundle{OptionGroups: []OptionGroup{
		{ID: 10, Name: "Color", Options: []Option{{ID: 100, Name: "Red"}, {ID: 101, Name: "Blue"}}},
	}}

	g, ok := b.Group(10)
	assert.True(t, ok)
	o, ok := g.Option(101)
	assert.True(t, ok)
	assert.Equal(t, "Blue", o.Name)

	_, ok = g.Option(999)
	assert.False(t, ok)
	_, ok = b.Group(11)
	assert.False(t, ok)
}
