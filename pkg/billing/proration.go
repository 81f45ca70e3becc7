package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ceilDays converts a duration to whole days, rounding any partial day up.
// Negative durations round toward zero days and below.
func ceilDays(d time.Duration) int64 {
	days := int64(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// Prorate quotes the cost of switching from currentPrice to newPrice for
// the remainder of the activation window, as of now.
//
// remainingDays and totalDays are ceil-rounded so a partial day counts
// as a full one. A degenerate window (totalDays <= 0) yields a zero
// ratio and a zero quote rather than dividing by zero. Downgrades
// produce a negative prorated price; the sign is preserved.
func Prorate(currentPrice decimal.Decimal, window Window, newPrice decimal.Decimal, now time.Time) Proration {
	remainingDays := ceilDays(window.ExpirationDate.Sub(now))
	totalDays := ceilDays(window.ExpirationDate.Sub(window.ActivationDate))

	p := Proration{
		CurrentPrice:  currentPrice,
		NewPrice:      newPrice,
		RemainingDays: remainingDays,
		TotalDays:     totalDays,
	}

	if totalDays <= 0 {
		p.RemainingRatio = decimal.Zero
		p.ProratedPrice = decimal.Zero
		return p
	}

	remaining := decimal.NewFromInt(remainingDays)
	total := decimal.NewFromInt(totalDays)

	p.RemainingRatio = remaining.DivRound(total, 6)
	p.ProratedPrice = newPrice.Sub(currentPrice).
		Mul(remaining).
		DivRound(total, 2)

	return p
}
