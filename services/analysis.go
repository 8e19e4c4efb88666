package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/valargen/rateleads-api/models"
)

// Analysis defaults. Savings below MinSavings are not worth a sales call.
const (
	DefaultMinSavings     = 200.0
	defaultCurrentPayment = 2000.0
)

// BuydownScenarios are the buydown types analyzed per customer, in display
// order. The provider's buyDownAliasID accepts these verbatim.
var BuydownScenarios = []string{"None", "1-0 LLPA", "2-1 LLPA"}

// QuoteFetcher is the pricing-provider collaborator (UwmService in
// production, a stub in tests).
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, payload map[string]interface{}) (interface{}, error)
}

// AnalysisService runs buydown scenario analyses for a customer: one
// provider quote per buydown type, qualification against the customer's
// current payment, rate windowing and buydown-year resolution.
type AnalysisService struct {
	Quotes      QuoteFetcher
	Rates       ExactRateLookup
	Cache       *AnalysisCache
	Concurrency int
}

func NewAnalysisService(uwm *UwmService, cache *AnalysisCache) *AnalysisService {
	return &AnalysisService{
		Quotes:      uwm,
		Rates:       uwm,
		Cache:       cache,
		Concurrency: 4,
	}
}

// AnalyzeCustomer prices every buydown scenario for one customer and returns
// the grouped, windowed result. Single scenario failures degrade to an empty
// scenario; the analysis only fails when no scenario could be priced at all.
func (s *AnalysisService) AnalyzeCustomer(ctx context.Context, customerKey string, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	minSavings := DefaultMinSavings
	if req.MinSavings != nil {
		minSavings = *req.MinSavings
	}
	targetAmount := DefaultTargetAmount
	if req.TargetAmount != nil {
		targetAmount = *req.TargetAmount
	}

	currentPayment := defaultCurrentPayment
	if mp := SafeFloat(req.Payload["currentMonthlyPayment"]); mp != nil {
		currentPayment = *mp
	}

	basePayload := BuildQuotePayload(quoteFields(req.Payload))

	result := &models.AnalysisResult{
		Customer:  customerFromPayload(customerKey, req.Payload, currentPayment),
		Scenarios: make([]models.Scenario, 0, len(BuydownScenarios)),
	}

	priced := 0
	var lastErr error
	for _, buydownType := range BuydownScenarios {
		scenario, err := s.buildScenario(ctx, scenarioParams{
			customerKey:    customerKey,
			buydownType:    buydownType,
			basePayload:    basePayload,
			currentPayment: currentPayment,
			minSavings:     minSavings,
			targetAmount:   targetAmount,
			tolerance:      req.Tolerance,
		})
		if err != nil {
			log.Printf("[Analysis] scenario %q failed for customer %s: %v", buydownType, customerKey, err)
			lastErr = err
			result.Scenarios = append(result.Scenarios, models.Scenario{
				BuydownType: buydownType,
				Products:    []models.ProductRates{},
			})
			continue
		}
		priced++
		result.Scenarios = append(result.Scenarios, *scenario)
	}

	if priced == 0 && lastErr != nil {
		return nil, fmt.Errorf("pricing provider request failed: %w", lastErr)
	}

	result.CacheKey = uuid.NewString()
	if s.Cache != nil {
		if err := s.Cache.Put(ctx, result.CacheKey, customerKey, result); err != nil {
			log.Printf("[Analysis] failed to cache result %s: %v", result.CacheKey, err)
			result.CacheKey = ""
		}
	}

	return result, nil
}

type scenarioParams struct {
	customerKey    string
	buydownType    string
	basePayload    map[string]interface{}
	currentPayment float64
	minSavings     float64
	targetAmount   float64
	tolerance      *float64
}

func (s *AnalysisService) buildScenario(ctx context.Context, p scenarioParams) (*models.Scenario, error) {
	payload := make(map[string]interface{}, len(p.basePayload))
	for k, v := range p.basePayload {
		payload[k] = v
	}
	payload["buyDownAliasID"] = p.buydownType

	raw, err := s.Quotes.FetchQuote(ctx, payload)
	if err != nil {
		return nil, err
	}

	summary := BuildQuoteSummary(raw, p.targetAmount)

	scenario := &models.Scenario{
		BuydownType: p.buydownType,
		Products:    []models.ProductRates{},
	}

	type qualifiedProduct struct {
		product  models.ProductRates
		savings  float64
		baseRate *float64
		ladder   []models.RateOption
	}
	var qualified []qualifiedProduct

	rawItems := quoteItemsFromSummary(summary)
	for i := range rawItems {
		item := &rawItems[i]

		best, _ := SelectClosestPricePoint(item.QuotePricePoints, p.targetAmount)
		if best == nil {
			continue
		}

		// Qualification mirrors the lead filter: a product is only worth
		// surfacing when its target-closest point both exists and beats the
		// customer's current payment by the minimum savings.
		payment := rateValue(best.MonthlyPayment)
		if payment == nil {
			continue
		}
		savings := p.currentPayment - *payment
		if savings < p.minSavings {
			continue
		}
		if p.tolerance != nil {
			if amt := best.FeeAdjustedAmount(); amt != nil && abs(*amt-p.targetAmount) > *p.tolerance {
				continue
			}
		}

		ladder := rateLadder(item.QuotePricePoints, p.currentPayment)
		window := SelectRateWindow(ladder, p.targetAmount, DefaultWindowLower, DefaultWindowUpper)

		qualified = append(qualified, qualifiedProduct{
			product: models.ProductRates{
				ProductName: item.MortgageProductName,
				TermYears:   termYearsFromName(item.MortgageProductName),
				Rates:       window,
			},
			savings:  savings,
			baseRate: rateValue(best.InterestRate),
			ladder:   ladder,
		})
	}

	// Best-saving products lead the scenario; provider order is arbitrary.
	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].savings > qualified[j].savings
	})

	type pendingBuydown struct {
		productIdx int
		baseRate   float64
		ladder     []models.RateOption
	}
	var pending []pendingBuydown

	for i := range qualified {
		scenario.Products = append(scenario.Products, qualified[i].product)
		if qualified[i].baseRate != nil && strings.Contains(p.buydownType, "LLPA") {
			pending = append(pending, pendingBuydown{
				productIdx: len(scenario.Products) - 1,
				baseRate:   *qualified[i].baseRate,
				ladder:     qualified[i].ladder,
			})
		}
	}

	// Buydown-year resolution may hit the provider once per year per
	// product; products run concurrently under a small pool so one slow
	// lookup does not serialize the scenario.
	if len(pending) > 0 {
		limit := s.Concurrency
		if limit < 1 {
			limit = 1
		}
		sem := make(chan struct{}, limit)
		var wg sync.WaitGroup
		for i := range pending {
			wg.Add(1)
			go func(pb pendingBuydown) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				s.resolveProductBuydown(ctx, p, &scenario.Products[pb.productIdx], pb.baseRate, pb.ladder)
			}(pending[i])
		}
		wg.Wait()
	}

	return scenario, nil
}

// resolveProductBuydown fills in a product's buydown-year entries and the
// year-by-year breakdown on its target-closest ladder row.
func (s *AnalysisService) resolveProductBuydown(ctx context.Context, p scenarioParams, product *models.ProductRates, baseRate float64, ladder []models.RateOption) {
	pc := buydownProductContext{
		CustomerKey: p.customerKey,
		ProductName: product.ProductName,
		TermYears:   product.TermYears,
		BuydownType: p.buydownType,
		Payload:     p.basePayload,
		Rates:       ladder,
	}

	year1 := ResolveBuydownRate(ctx, s.Rates, pc, Year1TargetRate(baseRate, p.buydownType))
	if year1 == nil {
		return
	}
	product.BuydownRates = append(product.BuydownRates, *year1)

	basePayment := basePaymentFromLadder(ladder, baseRate)

	year2 := &models.BuydownYear{Rate: baseRate, Payment: basePayment}
	if target := Year2TargetRate(baseRate, p.buydownType); target != nil {
		if entry := ResolveBuydownRate(ctx, s.Rates, pc, target); entry != nil {
			product.BuydownRates = append(product.BuydownRates, *entry)
			year2 = &models.BuydownYear{Rate: entry.InterestRate, Payment: entry.MonthlyPayment}
		}
	}

	breakdown := &models.BuydownBreakdown{
		Year1: &models.BuydownYear{Rate: year1.InterestRate, Payment: year1.MonthlyPayment},
		Year2: year2,
		Year3: &models.BuydownYear{Rate: baseRate, Payment: basePayment},
	}

	for i := range product.Rates {
		if product.Rates[i].IsClosestToTarget {
			product.Rates[i].BuydownBreakdown = breakdown
			return
		}
	}
}

// GetCachedResult retrieves a previously computed analysis.
func (s *AnalysisService) GetCachedResult(ctx context.Context, cacheKey, customerKey string) (*models.AnalysisResult, error) {
	if s.Cache == nil {
		return nil, fmt.Errorf("analysis cache not configured")
	}
	return s.Cache.Get(ctx, cacheKey, customerKey)
}

// rateLadder flattens a product's price points into rate/payment/cost rows.
// Rows keep nil where the provider sent nothing so the window selector can
// exclude them explicitly.
func rateLadder(points []models.PricePoint, currentPayment float64) []models.RateOption {
	ladder := make([]models.RateOption, 0, len(points))
	for i := range points {
		pp := &points[i]
		row := models.RateOption{
			InterestRate:   rateValue(pp.InterestRate),
			MonthlyPayment: rateValue(pp.MonthlyPayment),
			CreditCost:     pp.FeeAdjustedAmount(),
		}
		if row.MonthlyPayment != nil {
			row.MonthlySavings = round2(currentPayment - *row.MonthlyPayment)
		}
		ladder = append(ladder, row)
	}
	return ladder
}

func basePaymentFromLadder(ladder []models.RateOption, baseRate float64) *float64 {
	target := baseRate
	if entry := FindExactRate(ladder, &target); entry != nil {
		return entry.MonthlyPayment
	}
	return nil
}

// quoteItemsFromSummary re-reads the typed product list out of the summary's
// normalized tree. The summary already did the normalization pass; decoding
// here avoids running it twice.
func quoteItemsFromSummary(summary models.QuoteSummary) []models.ProductQuote {
	tree, ok := summary.RawJSON.(map[string]interface{})
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(tree["validQuoteItems"])
	if err != nil {
		return nil
	}
	var items []models.ProductQuote
	if err := json.Unmarshal(encoded, &items); err != nil {
		return nil
	}
	return items
}

var termYearsPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:year|yr)`)

// termYearsFromName pulls the loan term out of a provider product name such
// as "30 Year Fixed". Unknown shapes default to 30.
func termYearsFromName(name string) int {
	m := termYearsPattern.FindStringSubmatch(name)
	if m == nil {
		return 30
	}
	years, err := strconv.Atoi(m[1])
	if err != nil || years <= 0 {
		return 30
	}
	return years
}

// quoteFields strips analysis-only keys before the map becomes a provider
// payload. Customer-record aliases (remainingBalance, name, ...) stay in:
// BuildQuotePayload resolves and consumes them.
func quoteFields(payload map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch k {
		case "currentMonthlyPayment", "customer_key":
			continue
		}
		fields[k] = v
	}
	return fields
}

func customerFromPayload(customerKey string, payload map[string]interface{}, currentPayment float64) models.AnalysisCustomer {
	c := models.AnalysisCustomer{
		CustomerKey:           customerKey,
		Name:                  "Unknown",
		CurrentMonthlyPayment: currentPayment,
	}

	if v, ok := payload["borrowerName"].(string); ok && v != "" {
		c.Name = v
	} else if v, ok := payload["name"].(string); ok && v != "" {
		c.Name = v
	}

	c.RemainingBalance = SafeFloat(payload["remainingBalance"])
	if c.RemainingBalance == nil {
		c.RemainingBalance = SafeFloat(payload["loanAmount"])
	}
	c.PropertyValue = SafeFloat(payload["propertyValue"])
	if c.PropertyValue == nil {
		c.PropertyValue = SafeFloat(payload["appraisedValue"])
	}
	if cs := SafeFloat(payload["creditScore"]); cs != nil {
		score := int(*cs)
		c.CreditScore = &score
	}
	c.MonthlyIncome = SafeFloat(payload["monthlyIncome"])
	if v, ok := payload["propertyZipCode"].(string); ok {
		c.PropertyZip = v
	} else if v, ok := payload["propertyZip"].(string); ok {
		c.PropertyZip = v
	}
	if v, ok := payload["propertyState"].(string); ok {
		c.PropertyState = v
	}

	return c
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
