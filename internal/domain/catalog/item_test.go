package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	t.Run("creates item with upper-case code", func(t *testing.T) {
		item, err := NewItem("bolt-m8", "Bolt M8", "pcs", 0)

		require.NoError(t, err)
		assert.Equal(t, "BOLT-M8", item.Code)
		assert.Equal(t, ItemStatusActive, item.Status)
		assert.False(t, item.IsDeleted())
	})

	t.Run("rejects precision out of range", func(t *testing.T) {
		_, err := NewItem("STEEL", "Steel sheet", "kg", 5)
		assert.Error(t, err)
	})

	t.Run("rejects empty unit", func(t *testing.T) {
		_, err := NewItem("STEEL", "Steel sheet", " ", 2)
		assert.Error(t, err)
	})
}

func TestItem_RoundQuantity(t *testing.T) {
	tests := []struct {
		precision int32
		in        string
		want      string
	}{
		{0, "10.5", "11"},
		{0, "10.49", "10"},
		{2, "3.14159", "3.14"},
		{2, "2.345", "2.35"},
		{3, "1", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			item, err := NewItem("X", "X", "kg", tt.precision)
			require.NoError(t, err)

			got := item.RoundQuantity(decimal.RequireFromString(tt.in))

			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestItem_Delete(t *testing.T) {
	item, err := NewItem("X", "X", "pcs", 0)
	require.NoError(t, err)

	item.Delete()

	assert.True(t, item.IsDeleted())
}
