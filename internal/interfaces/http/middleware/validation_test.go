package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quantityRequest struct {
	ItemID   string          `json:"item_id" binding:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	Delta    decimal.Decimal `json:"delta" binding:"omitempty"`
}

func bindQuantity(t *testing.T, body string) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	SetupValidator()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req quantityRequest
	return c.ShouldBindJSON(&req)
}

func TestValidationDetails(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantFields  map[string]string
		wantNoError bool
	}{
		{
			name:        "valid",
			body:        `{"item_id":"9f0c2e8e-3c4b-4a43-9a38-6f6e1f4b2d11","quantity":"12.5"}`,
			wantNoError: true,
		},
		{
			name:       "missing fields use json names",
			body:       `{}`,
			wantFields: map[string]string{"item_id": "This field is required", "quantity": "This field is required"},
		},
		{
			name:       "negative quantity",
			body:       `{"item_id":"9f0c2e8e-3c4b-4a43-9a38-6f6e1f4b2d11","quantity":-3}`,
			wantFields: map[string]string{"quantity": "Must be greater than 0"},
		},
		{
			name:       "bad uuid",
			body:       `{"item_id":"nope","quantity":1}`,
			wantFields: map[string]string{"item_id": "Invalid UUID format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bindQuantity(t, tt.body)
			if tt.wantNoError {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			got := map[string]string{}
			for _, d := range ValidationDetails(err) {
				got[d.Field] = d.Message
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestValidationDetails_MalformedJSON(t *testing.T) {
	err := bindQuantity(t, `{"quantity":`)
	require.Error(t, err)
	assert.Nil(t, ValidationDetails(err))
}
