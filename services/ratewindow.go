package services

import (
	"math"
	"sort"

	"github.com/valargen/rateleads-api/models"
)

// Default window bounds: up to three lower-rate neighbors and two higher-rate
// neighbors around the target row.
const (
	DefaultWindowLower = 3
	DefaultWindowUpper = 2
)

// SelectRateWindow reduces a full rate ladder to a compact
// "neighbors around the target" view: the row whose credit cost is closest to
// targetAmount plus up to lowerCount lower-rate and upperCount higher-rate
// rows, sorted ascending by rate.
//
// Rows missing either credit cost or rate are excluded up front. Ties for
// the target row go to the first candidate in sorted order, matching the
// price-point selector's convention.
func SelectRateWindow(rates []models.RateOption, targetAmount float64, lowerCount, upperCount int) []models.RateOption {
	valid := make([]models.RateOption, 0, len(rates))
	for _, r := range rates {
		if r.CreditCost != nil && r.InterestRate != nil {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return []models.RateOption{}
	}

	// Ascending by rate; equal rates ordered by closeness to the target so
	// the window stays deterministic on ladders with duplicate rates.
	sort.SliceStable(valid, func(i, j int) bool {
		ri, rj := *valid[i].InterestRate, *valid[j].InterestRate
		if ri != rj {
			return ri < rj
		}
		return math.Abs(*valid[i].CreditCost-targetAmount) < math.Abs(*valid[j].CreditCost-targetAmount)
	})

	closest := 0
	closestDiff := math.Abs(*valid[0].CreditCost - targetAmount)
	for i := 1; i < len(valid); i++ {
		diff := math.Abs(*valid[i].CreditCost - targetAmount)
		if diff < closestDiff {
			closest = i
			closestDiff = diff
		}
	}

	start := closest - lowerCount
	if start < 0 {
		start = 0
	}
	end := closest + upperCount + 1
	if end > len(valid) {
		end = len(valid)
	}

	type rowKey struct {
		rate, cost, payment float64
		hasPayment          bool
	}
	seen := make(map[rowKey]bool, end-start)
	window := make([]models.RateOption, 0, end-start)
	for i := start; i < end; i++ {
		r := valid[i]
		key := rowKey{rate: *r.InterestRate, cost: *r.CreditCost}
		if r.MonthlyPayment != nil {
			key.payment = *r.MonthlyPayment
			key.hasPayment = true
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		r.IsClosestToTarget = i == closest
		window = append(window, r)
	}

	sort.SliceStable(window, func(i, j int) bool {
		return *window[i].InterestRate < *window[j].InterestRate
	})

	return window
}
