package models

import "fmt"

// StockLevel is the three-way classification of a medication's remaining supply
type StockLevel string

const (
	StockGood     StockLevel = "good"
	StockLow      StockLevel = "low"
	StockCritical StockLevel = "critical"
)

// StockFromCounts classifies inventory from pill counts. It is total: any
// input, including zero or negative totals, yields one of the three levels.
// Thresholds:
//   - critical: 3 or fewer pills, or 5% or less of capacity
//   - low: 10 or fewer pills, or 25% or less of capacity
//   - good: otherwise, and whenever the counts are unusable
func StockFromCounts(currentCount, totalCount int) StockLevel {
	if totalCount <= 0 {
		return StockGood
	}
	ratio := float64(currentCount) / float64(totalCount)
	if currentCount <= 3 || ratio <= 0.05 {
		return StockCritical
	}
	if currentCount <= 10 || ratio <= 0.25 {
		return StockLow
	}
	return StockGood
}

// StockFromDaysLeft classifies inventory from estimated days of supply
func StockFromDaysLeft(daysLeft int) StockLevel {
	if daysLeft <= 3 {
		return StockCritical
	}
	if daysLeft <= 10 {
		return StockLow
	}
	return StockGood
}

// Classify is the canonical classifier applied on every mutation path:
// count-based when a usable total count exists, days-based otherwise.
func Classify(currentCount, totalCount, daysLeft int) StockLevel {
	if totalCount > 0 {
		return StockFromCounts(currentCount, totalCount)
	}
	return StockFromDaysLeft(daysLeft)
}

// ParseStockLevel normalizes a stored stock level string, defaulting to good
func ParseStockLevel(s string) StockLevel {
	switch StockLevel(s) {
	case StockLow:
		return StockLow
	case StockCritical:
		return StockCritical
	default:
		return StockGood
	}
}

func errMissingField(entity, field string) error {
	return fmt.Errorf("%s is missing required field %q", entity, field)
}
