package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCart_TotalScenario(t *testing.T) {
	c := &Cart{}
	c.Add(Line{BundleID: 1, Quantity: 2, Price: d(500)})
	c.Add(Line{BundleID: 2, Quantity: 1, Price: d(350), Options: []SelectedOption{
		{GroupID: 10, OptionID: 101, PriceModifier: d(50)},
	}})

	assert.Len(t, c.Lines, 2)
	assert.True(t, c.Total().Equal(d(1350)), c.Total().String())
}

func TestCart_SameConfigurationMerges(t *testing.T) {
	c := &Cart{}
	opts := []SelectedOption{{GroupID: 10, OptionID: 101}, {GroupID: 20, OptionID: 200}}
	reordered := []SelectedOption{{GroupID: 20, OptionID: 200}, {GroupID: 10, OptionID: 101}}

	c.Add(Line{BundleID: 2, Quantity: 1, Price: d(350), Options: opts})
	idx := c.Add(Line{BundleID: 2, Quantity: 2, Price: d(350), Options: reordered})

	assert.Equal(t, 0, idx)
	assert.Len(t, c.Lines, 1)
	assert.Equal(t, int64(3), c.Lines[0].Quantity)
}

func TestCart_DifferentConfigurationSeparateLines(t *testing.T) {
	c := &Cart{}
	c.Add(Line{BundleID: 2, Quantity: 1, Price: d(300), Options: []SelectedOption{{GroupID: 10, OptionID: 100}}})
	c.Add(Line{BundleID: 2, Quantity: 1, Price: d(350), Options: []SelectedOption{{GroupID: 10, OptionID: 101}}})

	assert.Len(t, c.Lines, 2)
	assert.NotEqual(t, c.Lines[0].Key(), c.Lines[1].Key())
}

func TestCart_RemoveAndSetQuantity(t *testing.T) {
	c := &Cart{}
	c.Add(Line{BundleID: 1, Quantity: 1, Price: d(100)})
	c.Add(Line{BundleID: 3, Quantity: 1, Price: d(10)})
	key := c.Lines[0].Key()

	assert.True(t, c.SetQuantity(key, 4))
	assert.Equal(t, int64(4), c.Lines[0].Quantity)

	assert.True(t, c.SetQuantity(key, 0))
	assert.Len(t, c.Lines, 1)
	assert.False(t, c.Remove(key))
	assert.False(t, c.SetQuantity("nope", 1))

	c.Clear()
	assert.True(t, c.Empty())
	assert.True(t, c.Total().IsZero())
}
