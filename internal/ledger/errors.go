package ledger

import (
	"errors"
	"fmt"
)

// OpError represents a business-rule rejection raised before any change
// is applied. Engine operations either complete fully or fail with no
// state change; OpError is the "rejected at the gate" half of that
// contract.
type OpError struct {
	// Code identifies the rejection category.
	Code OpErrorCode

	// Message is a human-readable description.
	Message string

	// ProductID identifies the affected product, when known.
	ProductID string

	// VariantID identifies the affected variant, when known.
	VariantID string
}

// OpErrorCode categorizes operation rejections.
type OpErrorCode string

const (
	// ErrCodeProductNotFound indicates the named product does not exist.
	ErrCodeProductNotFound OpErrorCode = "PRODUCT_NOT_FOUND"

	// ErrCodeVariantNotFound indicates no product carries the variant.
	ErrCodeVariantNotFound OpErrorCode = "VARIANT_NOT_FOUND"

	// ErrCodeZeroChange indicates a movement with zero quantity.
	ErrCodeZeroChange OpErrorCode = "ZERO_CHANGE"

	// ErrCodeZeroAmount indicates a manual movement with zero amount.
	ErrCodeZeroAmount OpErrorCode = "ZERO_AMOUNT"

	// ErrCodeNegativeStock indicates a variant submitted with stock < 0.
	ErrCodeNegativeStock OpErrorCode = "NEGATIVE_STOCK"

	// ErrCodeInvalidType indicates an unknown movement type tag.
	ErrCodeInvalidType OpErrorCode = "INVALID_TYPE"

	// ErrCodeEmptyVariants indicates a product without any variant.
	ErrCodeEmptyVariants OpErrorCode = "EMPTY_VARIANTS"

	// ErrCodeMovementNotFound indicates a named movement does not exist.
	ErrCodeMovementNotFound OpErrorCode = "MOVEMENT_NOT_FOUND"
)

// Error implements the error interface.
func (e *OpError) Error() string {
	switch {
	case e.VariantID != "":
		return fmt.Sprintf("%s: %s (variant=%s)", e.Code, e.Message, e.VariantID)
	case e.ProductID != "":
		return fmt.Sprintf("%s: %s (product=%s)", e.Code, e.Message, e.ProductID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsNotFound reports whether err is a product/variant/movement lookup
// failure. Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeProductNotFound ||
			oe.Code == ErrCodeVariantNotFound ||
			oe.Code == ErrCodeMovementNotFound
	}
	return false
}

// IsRejected reports whether err is any precondition rejection.
func IsRejected(err error) bool {
	var oe *OpError
	return errors.As(err, &oe)
}
