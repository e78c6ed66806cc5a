package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/csvimport"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxOpeningBalanceRows caps one import file
const MaxOpeningBalanceRows = 10000

// Opening balance file columns. Bucket columns are optional and default to zero.
const (
	ColumnItemID      = "item_id"
	ColumnWarehouseID = "warehouse_id"
)

// BalanceSeeder creates first balances. LedgerService satisfies it.
type BalanceSeeder interface {
	GetBalance(ctx context.Context, itemID, warehouseID uuid.UUID) (inventory.BalanceSnapshot, error)
	CreateOrUpdateBalance(ctx context.Context, itemID, warehouseID uuid.UUID, seed inventory.BucketQuantities, actor string) (inventory.BalanceSnapshot, error)
}

// OpeningBalanceRow is one validated line of an opening balance file
type OpeningBalanceRow struct {
	Line        int
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	Quantities  inventory.BucketQuantities
}

// OpeningBalanceImportResult reports what an import did. When Errors is not
// empty nothing was written.
type OpeningBalanceImportResult struct {
	TotalRows   int                  `json:"total_rows"`
	CreatedRows int                  `json:"created_rows"`
	SkippedRows int                  `json:"skipped_rows"`
	Errors      []csvimport.RowError `json:"errors,omitempty"`
	TotalErrors int                  `json:"total_errors,omitempty"`
	IsTruncated bool                 `json:"is_truncated,omitempty"`
}

// OpeningBalanceImporter loads initial stock from a CSV file. Rows whose
// balance already exists are skipped, so a file can be re-submitted after a
// partial failure.
type OpeningBalanceImporter struct {
	seeder BalanceSeeder
	logger *zap.Logger
}

// NewOpeningBalanceImporter creates a new OpeningBalanceImporter
func NewOpeningBalanceImporter(seeder BalanceSeeder, log *zap.Logger) *OpeningBalanceImporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &OpeningBalanceImporter{seeder: seeder, logger: log}
}

// Import validates the whole file, then seeds one balance per row
func (im *OpeningBalanceImporter) Import(ctx context.Context, r io.Reader, actor string) (*OpeningBalanceImportResult, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "actor is required")
	}

	rows, rowErrors, err := ParseOpeningBalances(r)
	if err != nil {
		return nil, err
	}
	result := &OpeningBalanceImportResult{TotalRows: len(rows) + rowErrors.TotalCount()}
	if rowErrors.HasErrors() {
		result.Errors = rowErrors.Errors()
		result.TotalErrors = rowErrors.TotalCount()
		result.IsTruncated = rowErrors.IsTruncated()
		return result, nil
	}

	log := logger.WithTraceContext(ctx, im.logger)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		existing, err := im.seeder.GetBalance(ctx, row.ItemID, row.WarehouseID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row.Line, err)
		}
		if existing.Exists {
			result.SkippedRows++
			continue
		}
		if _, err := im.seeder.CreateOrUpdateBalance(ctx, row.ItemID, row.WarehouseID, row.Quantities, actor); err != nil {
			return nil, fmt.Errorf("row %d: %w", row.Line, err)
		}
		result.CreatedRows++
	}

	log.Info("Opening balances imported",
		zap.String("actor", actor),
		zap.Int("rows", result.TotalRows),
		zap.Int("created", result.CreatedRows),
		zap.Int("skipped", result.SkippedRows),
	)
	return result, nil
}

// ParseOpeningBalances reads and validates an opening balance file. File
// level problems are returned as a VALIDATION error; cell problems are
// collected per row.
func ParseOpeningBalances(r io.Reader) ([]OpeningBalanceRow, *csvimport.ErrorCollection, error) {
	parser, err := csvimport.NewCSVParser(r)
	if err != nil {
		return nil, nil, fileError(err)
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, nil, fileError(err)
	}
	if missing := parser.ValidateHeaders([]string{ColumnItemID, ColumnWarehouseID}); len(missing) > 0 {
		return nil, nil, shared.NewDomainError(shared.CodeValidation,
			"missing required columns: "+strings.Join(missing, ", "))
	}
	raw, err := parser.ReadAllRows(MaxOpeningBalanceRows)
	if err != nil {
		var rowErr csvimport.RowError
		if errors.As(err, &rowErr) {
			return nil, nil, shared.NewDomainError(shared.CodeValidation, rowErr.Error())
		}
		return nil, nil, fileError(err)
	}

	errs := csvimport.NewErrorCollection(100)
	seen := make(map[[2]uuid.UUID]int, len(raw))
	rows := make([]OpeningBalanceRow, 0, len(raw))
	for _, line := range raw {
		row, ok := parseOpeningBalanceRow(line, errs)
		if !ok {
			continue
		}
		key := [2]uuid.UUID{row.ItemID, row.WarehouseID}
		if first, dup := seen[key]; dup {
			errs.Add(csvimport.NewRowError(line.LineNumber, "", csvimport.ErrCodeDuplicateInFile,
				fmt.Sprintf("item and warehouse already listed on row %d", first)))
			continue
		}
		seen[key] = line.LineNumber
		rows = append(rows, row)
	}
	return rows, errs, nil
}

func parseOpeningBalanceRow(r *csvimport.Row, errs *csvimport.ErrorCollection) (OpeningBalanceRow, bool) {
	row := OpeningBalanceRow{Line: r.LineNumber, Quantities: inventory.ZeroQuantities()}
	ok := true

	parseID := func(column string) uuid.UUID {
		value := r.Get(column)
		if value == "" {
			errs.Add(csvimport.NewRowError(r.LineNumber, column, csvimport.ErrCodeRequiredField, "value is required"))
			ok = false
			return uuid.Nil
		}
		id, err := uuid.Parse(value)
		if err != nil {
			errs.Add(csvimport.NewRowError(r.LineNumber, column, csvimport.ErrCodeInvalidFormat, "must be a UUID").WithValue(value))
			ok = false
		}
		return id
	}
	row.ItemID = parseID(ColumnItemID)
	row.WarehouseID = parseID(ColumnWarehouseID)

	for _, bucket := range inventory.AllBuckets() {
		value := r.Get(bucket.String())
		if value == "" {
			continue
		}
		qty, err := decimal.NewFromString(value)
		if err != nil {
			errs.Add(csvimport.NewRowError(r.LineNumber, bucket.String(), csvimport.ErrCodeInvalidFormat, "must be a number").WithValue(value))
			ok = false
			continue
		}
		if qty.IsNegative() {
			errs.Add(csvimport.NewRowError(r.LineNumber, bucket.String(), csvimport.ErrCodeInvalidRange, "cannot be negative").WithValue(value))
			ok = false
			continue
		}
		if err := inventory.ValidateQuantity("value", qty); err != nil {
			errs.Add(csvimport.NewRowError(r.LineNumber, bucket.String(), csvimport.ErrCodeInvalidRange, err.Error()).WithValue(value))
			ok = false
			continue
		}
		row.Quantities = row.Quantities.With(bucket, qty)
	}
	return row, ok
}

func fileError(err error) error {
	return shared.NewDomainError(shared.CodeValidation, "invalid opening balance file: "+err.Error())
}
