package services

import (
	"context"
	"log"
	"math"
	"strings"

	"github.com/valargen/rateleads-api/models"
)

// Buydown sources recorded on resolved entries.
const (
	BuydownSourceRates = "rates"
	BuydownSourceAPI   = "api"
)

// exactRateTolerance is how far (absolute, in rate points) a ladder entry may
// sit from the computed target and still count as an exact match.
const exactRateTolerance = 0.01

// ExactRateRequest keys a targeted exact-rate lookup against the provider.
type ExactRateRequest struct {
	CustomerKey string                 `json:"customer_key"`
	ProductName string                 `json:"product_name"`
	TermYears   int                    `json:"term_years"`
	BuydownType string                 `json:"buydown_type"`
	TargetRate  float64                `json:"target_rate"`
	Payload     map[string]interface{} `json:"payload"`
}

// ExactRateResult is the provider's answer to an exact-rate lookup. IsExact
// is the provider's own flag and is propagated as-is, never assumed.
type ExactRateResult struct {
	Rate    float64  `json:"rate"`
	Payment *float64 `json:"payment"`
	Savings float64  `json:"savings"`
	IsExact bool     `json:"is_exact"`
}

// ExactRateLookup is the remote accurate-rate collaborator (UwmService in
// production, a stub in tests).
type ExactRateLookup interface {
	LookupExactRate(ctx context.Context, req ExactRateRequest) (*ExactRateResult, error)
}

// Year1TargetRate computes the first-year rate for a buydown type by
// subtracting its fixed point offset from the base (no-buydown) rate, rounded
// to three decimals. Unrecognized types return nil — the caller must not
// fabricate a rate.
func Year1TargetRate(baseRate float64, buydownType string) *float64 {
	switch {
	case strings.Contains(buydownType, "2-1"):
		return roundRate(baseRate - 2.0)
	case strings.Contains(buydownType, "1-0"):
		return roundRate(baseRate - 1.0)
	}
	return nil
}

// Year2TargetRate computes the second-year rate. Only "2-1" buydowns shift
// year two; "1-0" and everything else revert to the base rate (nil).
func Year2TargetRate(baseRate float64, buydownType string) *float64 {
	if strings.Contains(buydownType, "2-1") {
		return roundRate(baseRate - 1.0)
	}
	return nil
}

func roundRate(r float64) *float64 {
	v := math.Round(r*1000) / 1000
	return &v
}

// FindExactRate scans a rate ladder for the first entry within
// exactRateTolerance of targetRate. nil when targetRate is nil or nothing
// qualifies.
func FindExactRate(rates []models.RateOption, targetRate *float64) *models.RateOption {
	if targetRate == nil {
		return nil
	}
	for i := range rates {
		if rates[i].InterestRate == nil {
			continue
		}
		if math.Abs(*rates[i].InterestRate-*targetRate) <= exactRateTolerance {
			return &rates[i]
		}
	}
	return nil
}

// buydownProductContext carries everything needed to resolve one product's
// buydown-year rate.
type buydownProductContext struct {
	CustomerKey string
	ProductName string
	TermYears   int
	BuydownType string
	Payload     map[string]interface{}
	Rates       []models.RateOption
}

// ResolveBuydownRate turns a computed target rate into a payment/savings
// figure, trying each data source only after the previous one failed:
//
//  1. exact match in the already-fetched rate ladder (source "rates")
//  2. a single-attempt remote exact-rate lookup (source "api")
//  3. the computed target itself, flagged unverified (source nil, is_exact false)
//
// A lookup transport error or cancelled context is the same as "no result";
// it is logged and never reaches the returned numbers.
func ResolveBuydownRate(ctx context.Context, lookup ExactRateLookup, pc buydownProductContext, targetRate *float64) *models.BuydownRateEntry {
	if targetRate == nil {
		return nil
	}

	if entry := FindExactRate(pc.Rates, targetRate); entry != nil && entry.InterestRate != nil {
		src := BuydownSourceRates
		return &models.BuydownRateEntry{
			InterestRate:   *entry.InterestRate,
			MonthlyPayment: entry.MonthlyPayment,
			MonthlySavings: entry.MonthlySavings,
			CreditCost:     entry.CreditCost,
			IsExact:        true,
			Source:         &src,
		}
	}

	if lookup != nil && ctx.Err() == nil {
		res, err := lookup.LookupExactRate(ctx, ExactRateRequest{
			CustomerKey: pc.CustomerKey,
			ProductName: pc.ProductName,
			TermYears:   pc.TermYears,
			BuydownType: pc.BuydownType,
			TargetRate:  *targetRate,
			Payload:     pc.Payload,
		})
		switch {
		case err != nil:
			log.Printf("[Buydown] exact-rate lookup failed for %s @ %.3f: %v", pc.ProductName, *targetRate, err)
		case res != nil:
			src := BuydownSourceAPI
			return &models.BuydownRateEntry{
				InterestRate:   res.Rate,
				MonthlyPayment: res.Payment,
				MonthlySavings: res.Savings,
				IsExact:        res.IsExact,
				Source:         &src,
			}
		}
	}

	return &models.BuydownRateEntry{
		InterestRate: *targetRate,
		IsExact:      false,
		Source:       nil,
		Note:         "computed target rate; no exact pricing available",
	}
}
