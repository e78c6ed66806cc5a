package inventory

import (
	"fmt"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Bucket is one of the four status partitions tracked per item and warehouse.
type Bucket string

const (
	BucketAvailable       Bucket = "available"
	BucketReserved        Bucket = "reserved"
	BucketUnderInspection Bucket = "under_inspection"
	BucketRejected        Bucket = "rejected"
)

// AllBuckets lists the buckets in their canonical order.
func AllBuckets() []Bucket {
	return []Bucket{BucketAvailable, BucketReserved, BucketUnderInspection, BucketRejected}
}

// String returns the string representation of Bucket
func (b Bucket) String() string {
	return string(b)
}

// IsValid returns true if the bucket is one of the four known buckets
func (b Bucket) IsValid() bool {
	switch b {
	case BucketAvailable, BucketReserved, BucketUnderInspection, BucketRejected:
		return true
	}
	return false
}

// ParseBucket converts a string to a Bucket
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.IsValid() {
		return "", shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("unknown bucket %q", s))
	}
	return b, nil
}

// QuantityScale is the number of decimal places the quantity columns keep.
const QuantityScale = 4

// MaxQuantity is the smallest magnitude a decimal(18,4) column cannot hold.
var MaxQuantity = decimal.New(1, 18-QuantityScale)

// ValidateQuantity rejects a quantity the ledger columns cannot store
// exactly: more than QuantityScale decimal places, or a magnitude of
// MaxQuantity or more.
func ValidateQuantity(field string, q decimal.Decimal) error {
	if !q.Equal(q.Truncate(QuantityScale)) {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("%s must have at most %d decimal places, got %s", field, QuantityScale, q.String()))
	}
	if q.Abs().GreaterThanOrEqual(MaxQuantity) {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("%s must be below %s, got %s", field, MaxQuantity.String(), q.String()))
	}
	return nil
}

// BucketQuantities holds one quantity per bucket.
type BucketQuantities struct {
	Available       decimal.Decimal `json:"available"`
	Reserved        decimal.Decimal `json:"reserved"`
	UnderInspection decimal.Decimal `json:"under_inspection"`
	Rejected        decimal.Decimal `json:"rejected"`
}

// Get returns the quantity of a bucket
func (q BucketQuantities) Get(b Bucket) decimal.Decimal {
	switch b {
	case BucketAvailable:
		return q.Available
	case BucketReserved:
		return q.Reserved
	case BucketUnderInspection:
		return q.UnderInspection
	case BucketRejected:
		return q.Rejected
	}
	return decimal.Zero
}

// With returns a copy with bucket b set to v.
func (q BucketQuantities) With(b Bucket, v decimal.Decimal) BucketQuantities {
	switch b {
	case BucketAvailable:
		q.Available = v
	case BucketReserved:
		q.Reserved = v
	case BucketUnderInspection:
		q.UnderInspection = v
	case BucketRejected:
		q.Rejected = v
	}
	return q
}

// Add returns a copy with delta added to bucket b.
func (q BucketQuantities) Add(b Bucket, delta decimal.Decimal) BucketQuantities {
	return q.With(b, q.Get(b).Add(delta))
}

// Total returns the sum of all buckets
func (q BucketQuantities) Total() decimal.Decimal {
	return q.Available.Add(q.Reserved).Add(q.UnderInspection).Add(q.Rejected)
}

// IsZero returns true if every bucket is zero
func (q BucketQuantities) IsZero() bool {
	for _, b := range AllBuckets() {
		if !q.Get(b).IsZero() {
			return false
		}
	}
	return true
}

// NegativeBuckets returns the buckets holding a negative quantity.
func (q BucketQuantities) NegativeBuckets() []Bucket {
	var neg []Bucket
	for _, b := range AllBuckets() {
		if q.Get(b).IsNegative() {
			neg = append(neg, b)
		}
	}
	return neg
}

// Validate checks every bucket with ValidateQuantity.
func (q BucketQuantities) Validate() error {
	for _, b := range AllBuckets() {
		if err := ValidateQuantity(b.String(), q.Get(b)); err != nil {
			return err
		}
	}
	return nil
}

// ZeroQuantities returns quantities with every bucket at zero.
func ZeroQuantities() BucketQuantities {
	return BucketQuantities{
		Available:       decimal.Zero,
		Reserved:        decimal.Zero,
		UnderInspection: decimal.Zero,
		Rejected:        decimal.Zero,
	}
}
