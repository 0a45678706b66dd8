package enums

import "fmt"

// AdjustmentReason explains a stock movement recorded in inventory_history.
type AdjustmentReason string

const (
	AdjustmentRestock    AdjustmentReason = "restock"
	AdjustmentSale       AdjustmentReason = "sale"
	AdjustmentReturn     AdjustmentReason = "return"
	AdjustmentDamage     AdjustmentReason = "damage"
	AdjustmentTransfer   AdjustmentReason = "transfer"
	AdjustmentCorrection AdjustmentReason = "correction"
)

var validAdjustmentReasons = []AdjustmentReason{
	AdjustmentRestock,
	AdjustmentSale,
	AdjustmentReturn,
	AdjustmentDamage,
	AdjustmentTransfer,
	AdjustmentCorrection,
}

// String implements fmt.Stringer.
func (r AdjustmentReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AdjustmentReason.
func (r AdjustmentReason) IsValid() bool {
	for _, candidate := range validAdjustmentReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAdjustmentReason converts raw input into an AdjustmentReason.
func ParseAdjustmentReason(value string) (AdjustmentReason, error) {
	for _, candidate := range validAdjustmentReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment reason %q", value)
}
