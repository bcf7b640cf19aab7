package sheets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-quote-backend/internal/source"
)

type fakeValues struct {
	tabs   map[string][][]interface{}
	err    error
	ranges []string
}

func (f *fakeValues) GetValues(_ context.Context, _ string, readRange string) ([][]interface{}, error) {
	f.ranges = append(f.ranges, readRange)
	if f.err != nil {
		return nil, f.err
	}
	for tab, values := range f.tabs {
		if readRange == tab+"!A1:ZZ" {
			return values, nil
		}
	}
	return nil, nil
}

var testTabs = Tabs{
	Products:   "Products",
	Generators: "Generators",
	Branches:   "Branches",
	States:     "States",
	Config:     "Config",
	Seasonal:   "Seasonal",
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Product ID":       "product_id",
		"Rate 7-Day":       "rate_7_day",
		"  Name  ":         "name",
		"Rate 6+ Month":    "rate_6_plus_month",
		"18+ Month":        "18_plus_month",
		"ADA Compliant?":   "ada_compliant",
		"Base  Fee ($)":    "base_fee",
		"":                 "",
		"Per-Mile__Rate":   "per_mile_rate",
		"Free Miles (max)": "free_miles_max",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeHeader(in), "header %q", in)
	}
}

func TestRowsFromValues(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		rows := rowsFromValues(nil)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		assert.Empty(t, rowsFromValues([][]interface{}{{"Product ID", "Name"}}))
	})

	t.Run("KeysByNormalizedHeader", func(t *testing.T) {
		rows := rowsFromValues([][]interface{}{
			{"Product ID", "Name", "Rate Daily"},
			{"P-1", "Two Stall", 150.0},
			{"P-2", "Shower"},
		})
		require.Len(t, rows, 2)
		assert.Equal(t, source.Row{"product_id": "P-1", "name": "Two Stall", "rate_daily": 150.0}, rows[0])

		_, ok := rows[1]["rate_daily"]
		assert.False(t, ok, "short rows leave trailing columns unset")
	})

	t.Run("SkipsBlankRows", func(t *testing.T) {
		rows := rowsFromValues([][]interface{}{
			{"Product ID", "Name"},
			{"", "  "},
			{},
			{"P-1", ""},
		})
		require.Len(t, rows, 1)
		assert.Equal(t, "P-1", rows[0]["product_id"])
		assert.Equal(t, "", rows[0]["name"])
	})

	t.Run("IgnoresUnheadedColumns", func(t *testing.T) {
		rows := rowsFromValues([][]interface{}{
			{"Product ID", ""},
			{"P-1", "note", "extra"},
		})
		require.Len(t, rows, 1)
		assert.Equal(t, source.Row{"product_id": "P-1"}, rows[0])
	})
}

func TestSource_FetchProducts(t *testing.T) {
	values := &fakeValues{tabs: map[string][][]interface{}{
		"Products": {{"Product ID"}, {"P-1"}, {"P-2"}},
	}}
	src := NewWithGetter(values, "sheet-1", testTabs)

	rows, err := src.FetchProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, []string{"Products!A1:ZZ"}, values.ranges)
}

func TestSource_FetchError(t *testing.T) {
	src := NewWithGetter(&fakeValues{err: errors.New("quota exceeded")}, "sheet-1", testTabs)

	_, err := src.FetchBranches(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read tab Branches")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSource_FetchConfig(t *testing.T) {
	values := &fakeValues{tabs: map[string][][]interface{}{
		"Config": {
			{"Key", "Value"},
			{"Base Fee", 50.0},
			{"Per Mile Rate", 2.5},
			{"", "ignored"},
		},
		"Seasonal": {
			{"Name", "Months", "Multiplier"},
			{"Peak", "5,6,7,8", 1.2},
			{"Standard", "1,2,3,4,9,10,11,12", 1.0},
		},
	}}
	src := NewWithGetter(values, "sheet-1", testTabs)

	block, err := src.FetchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"base_fee": 50.0, "per_mile_rate": 2.5}, block.Settings)
	require.Len(t, block.SeasonalTiers, 2)
	assert.Equal(t, "Peak", block.SeasonalTiers[0]["name"])
	assert.Equal(t, "Standard", block.SeasonalTiers[1]["name"])
}
