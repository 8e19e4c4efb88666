package services

import (
	"testing"

	"github.com/valargen/rateleads-api/models"
)

func fp(v float64) *float64 {
	return &v
}

func ladderRow(rate, cost, payment float64) models.RateOption {
	return models.RateOption{
		InterestRate:   fp(rate),
		CreditCost:     fp(cost),
		MonthlyPayment: fp(payment),
	}
}

func TestSelectRateWindow_WindowAroundTarget(t *testing.T) {
	// Ten ascending rates; credit cost closest to -2000 at index 5.
	rates := make([]models.RateOption, 0, 10)
	for i := 0; i < 10; i++ {
		dist := float64(i - 5)
		if dist < 0 {
			dist = -dist
		}
		rates = append(rates, ladderRow(5.0+0.125*float64(i), -2000.0-500.0*dist, 1800.0+10.0*float64(i)))
	}

	window := SelectRateWindow(rates, -2000.0, DefaultWindowLower, DefaultWindowUpper)

	if len(window) != 6 {
		t.Fatalf("expected 6 rows (3 below + target + 2 above), got %d", len(window))
	}
	for i := 1; i < len(window); i++ {
		if *window[i].InterestRate <= *window[i-1].InterestRate {
			t.Errorf("window not ascending at %d: %v then %v", i, *window[i-1].InterestRate, *window[i].InterestRate)
		}
	}

	flagged := 0
	for _, r := range window {
		if r.IsClosestToTarget {
			flagged++
			if *r.InterestRate != 5.625 {
				t.Errorf("wrong row flagged closest: rate %v", *r.InterestRate)
			}
		}
	}
	if flagged != 1 {
		t.Errorf("expected exactly one flagged row, got %d", flagged)
	}
}

func TestSelectRateWindow_TargetAtStart(t *testing.T) {
	rates := []models.RateOption{
		ladderRow(5.0, -2000, 1800), // closest
		ladderRow(5.5, -1000, 1850),
		ladderRow(6.0, -500, 1900),
		ladderRow(6.5, 0, 1950),
	}

	window := SelectRateWindow(rates, -2000.0, DefaultWindowLower, DefaultWindowUpper)

	if len(window) != 3 {
		t.Fatalf("expected target + 2 above at the low edge, got %d rows", len(window))
	}
	if !window[0].IsClosestToTarget || *window[0].InterestRate != 5.0 {
		t.Errorf("expected first row to be the flagged 5.0 entry, got %+v", window[0])
	}
}

func TestSelectRateWindow_FiltersIncompleteRows(t *testing.T) {
	rates := []models.RateOption{
		{InterestRate: fp(5.0)}, // no cost
		{CreditCost: fp(-2000)}, // no rate
		ladderRow(6.0, -1900, 1800),
	}

	window := SelectRateWindow(rates, -2000.0, DefaultWindowLower, DefaultWindowUpper)

	if len(window) != 1 || *window[0].InterestRate != 6.0 {
		t.Fatalf("expected only the complete row to survive, got %+v", window)
	}
}

func TestSelectRateWindow_DeduplicatesRows(t *testing.T) {
	rates := []models.RateOption{
		ladderRow(6.0, -1900, 1800),
		ladderRow(6.0, -1900, 1800),
		ladderRow(6.5, -2100, 1750),
	}

	window := SelectRateWindow(rates, -2000.0, DefaultWindowLower, DefaultWindowUpper)

	if len(window) != 2 {
		t.Fatalf("expected duplicate row collapsed, got %d rows", len(window))
	}
}

func TestSelectRateWindow_Empty(t *testing.T) {
	window := SelectRateWindow(nil, -2000.0, DefaultWindowLower, DefaultWindowUpper)
	if window == nil || len(window) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", window)
	}
}
