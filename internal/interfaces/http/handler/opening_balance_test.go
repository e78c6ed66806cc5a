package handler

import (
	"context"
	"io"
	"net/http"
	"testing"

	inventoryapp "github.com/erp/manufacturing/internal/application/inventory"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/csvimport"
	"github.com/erp/manufacturing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockImporter struct {
	mock.Mock
	body string
}

func (m *mockImporter) Import(ctx context.Context, r io.Reader, actor string) (*inventoryapp.OpeningBalanceImportResult, error) {
	raw, _ := io.ReadAll(r)
	m.body = string(raw)
	args := m.Called(actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.OpeningBalanceImportResult), args.Error(1)
}

func TestOpeningBalanceHandler_Import(t *testing.T) {
	const file = "item_id,warehouse_id,available\n"

	tests := []struct {
		name       string
		path       string
		setup      func(m *mockImporter)
		wantStatus int
		wantCode   string
		check      func(t *testing.T, env envelope)
	}{
		{
			name: "imported",
			path: "/api/v1/inventory/opening-balances?actor=loader",
			setup: func(m *mockImporter) {
				m.On("Import", "loader").Return(&inventoryapp.OpeningBalanceImportResult{TotalRows: 3, CreatedRows: 2, SkippedRows: 1}, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, env envelope) {
				assert.JSONEq(t, `{"total_rows":3,"created_rows":2,"skipped_rows":1}`, string(env.Data))
			},
		},
		{
			name:       "actor missing",
			path:       "/api/v1/inventory/opening-balances",
			setup:      func(m *mockImporter) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
		},
		{
			name: "row errors listed",
			path: "/api/v1/inventory/opening-balances?actor=loader",
			setup: func(m *mockImporter) {
				m.On("Import", "loader").Return(&inventoryapp.OpeningBalanceImportResult{
					TotalRows:   2,
					TotalErrors: 2,
					Errors: []csvimport.RowError{
						csvimport.NewRowError(2, "available", csvimport.ErrCodeInvalidRange, "cannot be negative"),
						csvimport.NewRowError(3, "", csvimport.ErrCodeDuplicateInFile, "item and warehouse already listed on row 2"),
					},
				}, nil)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
			check: func(t *testing.T, env envelope) {
				assert.Equal(t, "2 invalid rows, nothing imported", env.Error.Message)
				require.Len(t, env.Error.Details, 2)
				assert.Equal(t, "row 2.available", env.Error.Details[0].Field)
				assert.Equal(t, "row 3", env.Error.Details[1].Field)
			},
		},
		{
			name: "bad file",
			path: "/api/v1/inventory/opening-balances?actor=loader",
			setup: func(m *mockImporter) {
				m.On("Import", "loader").Return(nil, shared.NewDomainError(shared.CodeValidation, "missing required columns: warehouse_id"))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer := new(mockImporter)
			tt.setup(importer)
			r := newTestEngine(func(rg *gin.RouterGroup) { NewOpeningBalanceHandler(importer).RegisterRoutes(rg) })

			w := doRequest(t, r, http.MethodPost, tt.path, file)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			env := decode(t, w)
			if tt.wantCode != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantCode, env.Error.Code)
			}
			if tt.check != nil {
				tt.check(t, env)
			}
			importer.AssertExpectations(t)
			if len(importer.ExpectedCalls) > 0 {
				assert.Equal(t, file, importer.body)
			}
		})
	}
}
