package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/valargen/rateleads-api/models"
)

type stubQuoteFetcher struct {
	mu       sync.Mutex
	response interface{}
	failAll  bool
	failFor  map[string]bool
	aliases  []string
	payloads []map[string]interface{}
}

func (s *stubQuoteFetcher) FetchQuote(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alias, _ := payload["buyDownAliasID"].(string)
	s.aliases = append(s.aliases, alias)
	s.payloads = append(s.payloads, payload)
	if s.failAll || s.failFor[alias] {
		return nil, errors.New("upstream 500")
	}
	return s.response, nil
}

// providerResponse: a 30-year product whose -1900 point qualifies against a
// $3,000 current payment, plus a 15-year product whose savings fall short.
func providerResponse() map[string]interface{} {
	return map[string]interface{}{
		"loanAmount":   350000,
		"borrowerName": "Jane Doe",
		"validQuoteItems": []interface{}{
			map[string]interface{}{
				"mortgageProductId":   101,
				"mortgageProductName": "30 Year Fixed",
				"quotePricePoints": []interface{}{
					rawPoint(5.0, -2600, 1450),
					rawPoint(6.0, -1900, 1500),
					rawPoint(7.0, -800, 1600),
				},
			},
			map[string]interface{}{
				"mortgageProductId":   102,
				"mortgageProductName": "15 Year Fixed",
				"quotePricePoints": []interface{}{
					rawPoint(5.5, -2000, 2900),
				},
			},
		},
	}
}

func analyzePayload() map[string]interface{} {
	return map[string]interface{}{
		"borrowerName":          "Jane Doe",
		"currentMonthlyPayment": 3000,
		"remainingBalance":      350000,
		"creditScore":           720,
		"monthlyIncome":         9000,
		"propertyZipCode":       "48034",
		"propertyState":         "MI",
	}
}

func TestAnalyzeCustomer(t *testing.T) {
	fetcher := &stubQuoteFetcher{response: providerResponse()}
	lookup := &stubRateLookup{
		res: &ExactRateResult{Rate: 4.0, Payment: fp(1300), Savings: 1700, IsExact: true},
	}
	svc := &AnalysisService{Quotes: fetcher, Rates: lookup, Concurrency: 2}

	result, err := svc.AnalyzeCustomer(context.Background(), "cust-42", models.AnalyzeRequest{
		Payload: analyzePayload(),
	})
	if err != nil {
		t.Fatalf("AnalyzeCustomer: %v", err)
	}
	if result.CacheKey == "" {
		t.Error("expected a cache key on the result")
	}

	c := result.Customer
	if c.CustomerKey != "cust-42" || c.Name != "Jane Doe" || c.CurrentMonthlyPayment != 3000 {
		t.Errorf("customer context wrong: %+v", c)
	}
	if c.RemainingBalance == nil || *c.RemainingBalance != 350000 {
		t.Errorf("remaining balance = %v, want 350000", c.RemainingBalance)
	}
	if c.CreditScore == nil || *c.CreditScore != 720 {
		t.Errorf("credit score = %v, want 720", c.CreditScore)
	}

	if len(result.Scenarios) != len(BuydownScenarios) {
		t.Fatalf("expected %d scenarios, got %d", len(BuydownScenarios), len(result.Scenarios))
	}
	for i, want := range BuydownScenarios {
		if result.Scenarios[i].BuydownType != want {
			t.Errorf("scenario %d = %q, want %q", i, result.Scenarios[i].BuydownType, want)
		}
	}
	if len(fetcher.aliases) != 3 {
		t.Fatalf("expected one provider quote per scenario, got %d", len(fetcher.aliases))
	}
	// The payload carries CRM field names; the provider payload must still
	// price the real balance, not a zero loan.
	if got := fetcher.payloads[0]["loanAmount"]; got != 350000 {
		t.Errorf("provider loanAmount = %v, want 350000 via remainingBalance", got)
	}

	for _, sc := range result.Scenarios {
		if len(sc.Products) != 1 {
			t.Fatalf("scenario %q: expected only the qualifying product, got %d", sc.BuydownType, len(sc.Products))
		}
		p := sc.Products[0]
		if p.ProductName != "30 Year Fixed" || p.TermYears != 30 {
			t.Errorf("scenario %q: wrong product: %+v", sc.BuydownType, p)
		}
		if len(p.Rates) != 3 {
			t.Errorf("scenario %q: window = %d rows, want 3", sc.BuydownType, len(p.Rates))
		}
		for _, r := range p.Rates {
			if r.IsClosestToTarget && *r.InterestRate != 6.0 {
				t.Errorf("scenario %q: flagged rate %v, want 6.0", sc.BuydownType, *r.InterestRate)
			}
		}
	}

	none := result.Scenarios[0].Products[0]
	if len(none.BuydownRates) != 0 {
		t.Errorf("no-buydown scenario must carry no buydown entries, got %d", len(none.BuydownRates))
	}

	oneZero := result.Scenarios[1].Products[0]
	if len(oneZero.BuydownRates) != 1 {
		t.Fatalf("1-0 buydown: expected one year-one entry, got %d", len(oneZero.BuydownRates))
	}
	y1 := oneZero.BuydownRates[0]
	if y1.InterestRate != 5.0 || y1.Source == nil || *y1.Source != BuydownSourceRates || !y1.IsExact {
		t.Errorf("1-0 year one should resolve from the ladder: %+v", y1)
	}
	bd := flaggedBreakdown(t, oneZero)
	if bd.Year1.Rate != 5.0 || bd.Year2.Rate != 6.0 || bd.Year3.Rate != 6.0 {
		t.Errorf("1-0 breakdown rates = %v/%v/%v, want 5/6/6", bd.Year1.Rate, bd.Year2.Rate, bd.Year3.Rate)
	}
	if bd.Year2.Payment == nil || *bd.Year2.Payment != 1500 {
		t.Errorf("1-0 year two payment = %v, want the base 1500", bd.Year2.Payment)
	}

	twoOne := result.Scenarios[2].Products[0]
	if len(twoOne.BuydownRates) != 2 {
		t.Fatalf("2-1 buydown: expected year-one and year-two entries, got %d", len(twoOne.BuydownRates))
	}
	y1, y2 := twoOne.BuydownRates[0], twoOne.BuydownRates[1]
	if y1.InterestRate != 4.0 || y1.Source == nil || *y1.Source != BuydownSourceAPI {
		t.Errorf("2-1 year one (4.0 is off-ladder) should resolve remotely: %+v", y1)
	}
	if y2.InterestRate != 5.0 || y2.Source == nil || *y2.Source != BuydownSourceRates {
		t.Errorf("2-1 year two should resolve from the ladder: %+v", y2)
	}
	if lookup.calls != 1 {
		t.Errorf("only the off-ladder 2-1 year one needs the provider, got %d calls", lookup.calls)
	}
	bd = flaggedBreakdown(t, twoOne)
	if bd.Year1.Rate != 4.0 || bd.Year2.Rate != 5.0 || bd.Year3.Rate != 6.0 {
		t.Errorf("2-1 breakdown rates = %v/%v/%v, want 4/5/6", bd.Year1.Rate, bd.Year2.Rate, bd.Year3.Rate)
	}
	if bd.Year1.Payment == nil || *bd.Year1.Payment != 1300 {
		t.Errorf("2-1 year one payment = %v, want the looked-up 1300", bd.Year1.Payment)
	}
}

func flaggedBreakdown(t *testing.T, p models.ProductRates) *models.BuydownBreakdown {
	t.Helper()
	for _, r := range p.Rates {
		if r.IsClosestToTarget {
			if r.BuydownBreakdown == nil {
				t.Fatal("flagged row must carry the buydown breakdown")
			}
			return r.BuydownBreakdown
		}
	}
	t.Fatal("no flagged row in window")
	return nil
}

func TestAnalyzeCustomer_ProductsSortedBySavings(t *testing.T) {
	// Provider lists the modest 15-year (savings 300) before the 30-year
	// (savings 1500); the scenario must lead with the bigger savings.
	response := map[string]interface{}{
		"validQuoteItems": []interface{}{
			map[string]interface{}{
				"mortgageProductId":   102,
				"mortgageProductName": "15 Year Fixed",
				"quotePricePoints": []interface{}{
					rawPoint(5.5, -2000, 2700),
				},
			},
			map[string]interface{}{
				"mortgageProductId":   101,
				"mortgageProductName": "30 Year Fixed",
				"quotePricePoints": []interface{}{
					rawPoint(6.0, -1900, 1500),
				},
			},
		},
	}
	fetcher := &stubQuoteFetcher{response: response}
	svc := &AnalysisService{Quotes: fetcher, Rates: &stubRateLookup{}, Concurrency: 2}

	result, err := svc.AnalyzeCustomer(context.Background(), "cust-42", models.AnalyzeRequest{
		Payload: analyzePayload(),
	})
	if err != nil {
		t.Fatalf("AnalyzeCustomer: %v", err)
	}

	products := result.Scenarios[0].Products
	if len(products) != 2 {
		t.Fatalf("expected both products to qualify, got %d", len(products))
	}
	if products[0].ProductName != "30 Year Fixed" || products[1].ProductName != "15 Year Fixed" {
		t.Errorf("products not ordered by savings descending: %q then %q",
			products[0].ProductName, products[1].ProductName)
	}
}

func TestAnalyzeCustomer_ScenarioFailureDegrades(t *testing.T) {
	fetcher := &stubQuoteFetcher{
		response: providerResponse(),
		failFor:  map[string]bool{"2-1 LLPA": true},
	}
	svc := &AnalysisService{Quotes: fetcher, Rates: &stubRateLookup{}, Concurrency: 2}

	result, err := svc.AnalyzeCustomer(context.Background(), "cust-42", models.AnalyzeRequest{
		Payload: analyzePayload(),
	})
	if err != nil {
		t.Fatalf("one failed scenario must not fail the analysis: %v", err)
	}
	if len(result.Scenarios) != 3 {
		t.Fatalf("failed scenario must still appear, got %d scenarios", len(result.Scenarios))
	}
	if got := result.Scenarios[2]; got.BuydownType != "2-1 LLPA" || len(got.Products) != 0 {
		t.Errorf("failed scenario should be present and empty: %+v", got)
	}
	if len(result.Scenarios[0].Products) != 1 {
		t.Errorf("healthy scenarios must keep their products")
	}
}

func TestAnalyzeCustomer_AllScenariosFail(t *testing.T) {
	fetcher := &stubQuoteFetcher{failAll: true}
	svc := &AnalysisService{Quotes: fetcher, Rates: &stubRateLookup{}, Concurrency: 2}

	_, err := svc.AnalyzeCustomer(context.Background(), "cust-42", models.AnalyzeRequest{
		Payload: analyzePayload(),
	})
	if err == nil {
		t.Fatal("expected an error when no scenario could be priced")
	}
	if !strings.Contains(err.Error(), "pricing provider request failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAnalyzeCustomer_MinSavingsOverride(t *testing.T) {
	fetcher := &stubQuoteFetcher{response: providerResponse()}
	svc := &AnalysisService{Quotes: fetcher, Rates: &stubRateLookup{}, Concurrency: 2}

	// Lowering the bar to $50 lets the 15-year product (savings $100) through.
	result, err := svc.AnalyzeCustomer(context.Background(), "cust-42", models.AnalyzeRequest{
		Payload:    analyzePayload(),
		MinSavings: fp(50),
	})
	if err != nil {
		t.Fatalf("AnalyzeCustomer: %v", err)
	}
	if got := len(result.Scenarios[0].Products); got != 2 {
		t.Fatalf("expected both products with min_savings 50, got %d", got)
	}
	if result.Scenarios[0].Products[1].TermYears != 15 {
		t.Errorf("second product should be the 15-year, got %+v", result.Scenarios[0].Products[1])
	}
}

func TestTermYearsFromName(t *testing.T) {
	cases := []struct {
		name string
		want int
	}{
		{"30 Year Fixed", 30},
		{"15yr Conventional", 15},
		{"20 YEAR High Balance", 20},
		{"Jumbo Elite", 30},
		{"", 30},
	}
	for _, tc := range cases {
		if got := termYearsFromName(tc.name); got != tc.want {
			t.Errorf("termYearsFromName(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}
