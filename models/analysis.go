package models

// The snake_case JSON names in this file are consumed by the existing
// analysis table/export UI and must not change.

// AnalyzeRequest is the body of POST /customers/:customer_key/analyze.
type AnalyzeRequest struct {
	Payload      map[string]interface{} `json:"payload" binding:"required"`
	MinSavings   *float64               `json:"min_savings"`
	TargetAmount *float64               `json:"target_amount"`
	Tolerance    *float64               `json:"tolerance"`
}

// RateOption is one row of a product's rate ladder: a rate with its payment,
// savings against the customer's current payment and the credit/cost attached
// to that price point. InterestRate and CreditCost stay nil when the provider
// sent no figure.
type RateOption struct {
	InterestRate      *float64          `json:"interest_rate"`
	MonthlyPayment    *float64          `json:"monthly_payment"`
	MonthlySavings    float64           `json:"monthly_savings"`
	CreditCost        *float64          `json:"credit_cost"`
	BuydownBreakdown  *BuydownBreakdown `json:"buydown_breakdown,omitempty"`
	IsClosestToTarget bool              `json:"is_closest_to_target,omitempty"`
}

// BuydownYear is one year of a buydown schedule.
type BuydownYear struct {
	Rate    float64  `json:"rate"`
	Payment *float64 `json:"payment"`
}

// BuydownBreakdown is the year-by-year schedule for a temporary buydown.
// Year3 carries the reverted base rate.
type BuydownBreakdown struct {
	Year1 *BuydownYear `json:"year1,omitempty"`
	Year2 *BuydownYear `json:"year2,omitempty"`
	Year3 *BuydownYear `json:"year3,omitempty"`
}

// BuydownRateEntry is a resolved buydown-year rate. Source records where the
// figure came from: "rates" (exact match in the fetched ladder), "api"
// (remote exact-rate lookup) or nil when the entry is the computed,
// unverified target. IsExact=false must always be surfaced, never hidden.
type BuydownRateEntry struct {
	InterestRate   float64  `json:"interest_rate"`
	MonthlyPayment *float64 `json:"monthly_payment"`
	MonthlySavings float64  `json:"monthly_savings"`
	CreditCost     *float64 `json:"credit_cost"`
	IsExact        bool     `json:"is_exact"`
	Source         *string  `json:"source"`
	Note           string   `json:"note,omitempty"`
}

// ProductRates groups a product's windowed rate ladder and, for buydown
// scenarios, the resolved buydown-year entries.
type ProductRates struct {
	ProductName  string             `json:"product_name"`
	TermYears    int                `json:"term_years"`
	Rates        []RateOption       `json:"rates"`
	BuydownRates []BuydownRateEntry `json:"buydown_rates,omitempty"`
}

// Scenario groups products under one buydown type.
type Scenario struct {
	BuydownType string         `json:"buydown_type"`
	Products    []ProductRates `json:"products"`
}

// AnalysisCustomer is the customer context echoed back with the analysis.
type AnalysisCustomer struct {
	CustomerKey           string   `json:"customer_key"`
	Name                  string   `json:"name"`
	CurrentMonthlyPayment float64  `json:"current_monthly_payment"`
	RemainingBalance      *float64 `json:"remaining_balance,omitempty"`
	PropertyValue         *float64 `json:"property_value,omitempty"`
	CreditScore           *int     `json:"credit_score,omitempty"`
	MonthlyIncome         *float64 `json:"monthly_income,omitempty"`
	PropertyZip           string   `json:"property_zip,omitempty"`
	PropertyState         string   `json:"property_state,omitempty"`
}

// AnalysisResult is the full customer analysis returned to the table/export
// UI and stored in the analysis cache.
type AnalysisResult struct {
	Customer  AnalysisCustomer `json:"customer"`
	Scenarios []Scenario       `json:"scenarios"`
	CacheKey  string           `json:"cache_key,omitempty"`
}
