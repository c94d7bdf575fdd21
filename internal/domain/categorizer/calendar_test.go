package categorizer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_Strength(t *testing.T) {
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	cal := NewCalendar([]BusinessEvent{
		{Label: "conference", Start: start, End: start.Add(72 * time.Hour), Strength: 0.6},
		{Label: "client visit", Start: start.Add(24 * time.Hour), End: start.Add(30 * time.Hour)},
		{Label: "backwards", Start: start, End: start.Add(-time.Hour)},
	})
	assert.Equal(t, 2, cal.Len())

	s, ok := cal.Strength(start.Add(time.Hour))
	assert.True(t, ok)
	assert.Equal(t, 0.6, s)

	s, ok = cal.Strength(start.Add(25 * time.Hour))
	assert.True(t, ok)
	assert.Equal(t, 1.0, s, "overlapping events take the strongest")

	_, ok = cal.Strength(start.Add(-time.Minute))
	assert.False(t, ok)
}

func TestCalendar_TipsClassification(t *testing.T) {
	table := RuleTable{Version: "test", Rules: []CategoryRule{
		{Pattern: "cafe", Category: "Coffee Shops", BusinessType: BusinessTypePersonal, Weight: 1},
		{Pattern: "cafe", Category: "Meals & Entertainment", BusinessType: BusinessTypeBusiness, Weight: 0.8},
	}}
	trip := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	cal := NewCalendar([]BusinessEvent{{Start: trip.Add(-time.Hour), End: trip.Add(time.Hour)}})

	c, err := NewClassifier(table, DefaultConfig(), WithBusinessContext(cal))
	require.NoError(t, err)

	during := c.Classify(Input{Merchant: "Corner Cafe", Amount: decimal.NewFromInt(12), At: &trip})
	assert.Equal(t, "Meals & Entertainment", during.Category)
	assert.Equal(t, BusinessTypeBusiness, during.BusinessType)

	later := trip.Add(48 * time.Hour)
	after := c.Classify(Input{Merchant: "Corner Cafe", Amount: decimal.NewFromInt(12), At: &later})
	assert.Equal(t, "Coffee Shops", after.Category)
}
