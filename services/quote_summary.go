package services

import (
	"encoding/json"
	"math"

	"github.com/valargen/rateleads-api/models"
)

// DefaultTargetAmount is the fee-adjusted price the selector aims for when
// the caller does not supply one: a $2,000 lender credit.
const DefaultTargetAmount = -2000.0

// NoPricePointsNote is emitted for products where no price point carried a
// usable fee-adjusted amount. The wording is part of the API contract.
const NoPricePointsNote = "No matching price points found"

// SelectClosestPricePoint picks the price point whose fee-adjusted amount is
// closest to targetAmount. Points with no usable amount are skipped; when two
// points tie, the first in input order wins (strict < against the current
// best). Returns (nil, nil) when nothing was usable.
func SelectClosestPricePoint(points []models.PricePoint, targetAmount float64) (*models.PricePoint, *float64) {
	var best *models.PricePoint
	var bestDiff float64

	for i := range points {
		amt := points[i].FeeAdjustedAmount()
		if amt == nil {
			continue
		}
		diff := math.Abs(*amt - targetAmount)
		if best == nil || diff < bestDiff {
			best = &points[i]
			bestDiff = diff
		}
	}

	if best == nil {
		return nil, nil
	}
	return best, &bestDiff
}

// BuildQuoteSummary reduces a raw provider response to a decision-ready
// summary. The whole tree is string-normalized before selection so whitespace
// noise in provider text never causes spurious mismatches. A payload without
// validQuoteItems is treated as an empty product list, not an error; the
// caller surfaces transport-level failures before this point.
func BuildQuoteSummary(raw interface{}, targetAmount float64) models.QuoteSummary {
	tree := NormalizeTree(raw)

	var envelope models.RawQuoteResponse
	if encoded, err := json.Marshal(tree); err == nil {
		// Field-level decode failures degrade to "no data" via models.Float;
		// a non-object payload leaves the envelope empty.
		_ = json.Unmarshal(encoded, &envelope)
	}

	matches := make([]models.QuoteMatch, 0, len(envelope.ValidQuoteItems))
	for i := range envelope.ValidQuoteItems {
		item := &envelope.ValidQuoteItems[i]
		matches = append(matches, matchForProduct(item, targetAmount))
	}

	return models.QuoteSummary{
		LoanAmount:           envelope.LoanAmount,
		BorrowerName:         envelope.BorrowerName,
		ValidQuoteItemsCount: len(envelope.ValidQuoteItems),
		ErrorMessages:        envelope.ErrorMessages,
		Matches:              matches,
		RawJSON:              tree,
	}
}

func matchForProduct(item *models.ProductQuote, targetAmount float64) models.QuoteMatch {
	qm := models.QuoteMatch{
		MortgageProductID:    item.MortgageProductID,
		MortgageProductName:  item.MortgageProductName,
		MortgageProductAlias: item.MortgageProductAlias,
	}

	best, diff := SelectClosestPricePoint(item.QuotePricePoints, targetAmount)
	if best == nil {
		qm.Note = NoPricePointsNote
		return qm
	}

	qm.Match = &models.MatchDetail{
		InterestRate:                  rateValue(best.InterestRate),
		FinalPrice:                    pricePercent(best.FinalPrice),
		FinalPriceAfterOriginationFee: pricePercent(best.FinalPriceAfterOriginationFee),
		OriginationFee:                pricePercent(best.OriginationFee),
		PrincipalAndInterest:          rateValue(best.PrincipalAndInterest),
		MonthlyPayment:                rateValue(best.MonthlyPayment),
	}
	qm.Diff = diff

	// Selected points always have an amount; the zero default only covers a
	// point selected on one parse and dropped on the re-read.
	amount := 0.0
	if amt := best.FeeAdjustedAmount(); amt != nil {
		amount = *amt
	}
	qm.Amount = &amount

	return qm
}

func rateValue(rv *models.RateValue) *float64 {
	if rv == nil {
		return nil
	}
	return rv.Value.Ptr()
}

func pricePercent(pv *models.PriceValue) *float64 {
	if pv == nil {
		return nil
	}
	return pv.Percent.Ptr()
}
