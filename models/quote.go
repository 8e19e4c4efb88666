package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Float is a nullable numeric field from the pricing provider. The provider
// mixes JSON numbers, numeric strings and nulls for the same fields, and a
// value that fails to parse must read as "no data" rather than abort the
// whole decode. Zero and absent are distinct in this domain.
type Float struct {
	Value float64
	Valid bool
}

func (f *Float) UnmarshalJSON(b []byte) error {
	f.Value, f.Valid = 0, false

	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
		s = strings.TrimSpace(raw)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.Value, f.Valid = v, true
	return nil
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns the value as *float64, nil when absent.
func (f Float) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// RateValue wraps the provider's {"value": ...} numeric envelope.
type RateValue struct {
	Value Float `json:"value"`
}

// PriceValue wraps the provider's {"percent": ..., "amount": ...} envelope.
// Amount is the dollar figure (negative = lender credit), Percent the price
// expressed in points.
type PriceValue struct {
	Percent Float `json:"percent"`
	Amount  Float `json:"amount"`
}

// PricePoint is one quoted rate/cost combination within a product.
type PricePoint struct {
	InterestRate                  *RateValue  `json:"interestRate"`
	FinalPrice                    *PriceValue `json:"finalPrice"`
	FinalPriceAfterOriginationFee *PriceValue `json:"finalPriceAfterOriginationFee"`
	OriginationFee                *PriceValue `json:"originationFee"`
	PrincipalAndInterest          *RateValue  `json:"principalAndInterest"`
	MonthlyPayment                *RateValue  `json:"monthlyPayment"`
	IsBestQuotePricePoint         bool        `json:"isBestQuotePricePoint"`
}

// FeeAdjustedAmount returns the dollar amount after the origination fee,
// nil when the provider sent no usable figure.
func (p *PricePoint) FeeAdjustedAmount() *float64 {
	if p.FinalPriceAfterOriginationFee == nil {
		return nil
	}
	return p.FinalPriceAfterOriginationFee.Amount.Ptr()
}

// ProductQuote is one mortgage product in the provider response.
type ProductQuote struct {
	MortgageProductID    json.Number  `json:"mortgageProductId"`
	MortgageProductName  string       `json:"mortgageProductName"`
	MortgageProductAlias string       `json:"mortgageProductAlias,omitempty"`
	QuotePricePoints     []PricePoint `json:"quotePricePoints"`
}

// RawQuoteResponse is the typed envelope over the provider's quote payload.
// Fields the engine does not model stay in the generic tree kept alongside
// (QuoteSummary.RawJSON).
type RawQuoteResponse struct {
	LoanAmount      Float          `json:"loanAmount"`
	BorrowerName    string         `json:"borrowerName"`
	ErrorMessages   []interface{}  `json:"errorMessages"`
	ValidQuoteItems []ProductQuote `json:"validQuoteItems"`
}

// MatchDetail carries the selected price point's fields. finalPrice here is
// the provider's finalPrice.percent; the fee-adjusted percent rides under
// finalPriceAfterOriginationFee. These names are the existing API contract.
type MatchDetail struct {
	InterestRate                  *float64 `json:"interestRate"`
	FinalPrice                    *float64 `json:"finalPrice"`
	FinalPriceAfterOriginationFee *float64 `json:"finalPriceAfterOriginationFee"`
	OriginationFee                *float64 `json:"originationFee"`
	PrincipalAndInterest          *float64 `json:"principalAndInterest"`
	MonthlyPayment                *float64 `json:"monthlyPayment"`
}

// QuoteMatch is the per-product outcome. Exactly one of Match or Note is set:
// Match when a price point was selected, Note when nothing was usable.
type QuoteMatch struct {
	MortgageProductID    json.Number  `json:"mortgageProductId"`
	MortgageProductName  string       `json:"mortgageProductName"`
	MortgageProductAlias string       `json:"mortgageProductAlias,omitempty"`
	Match                *MatchDetail `json:"match,omitempty"`
	Diff                 *float64     `json:"diff,omitempty"`
	Amount               *float64     `json:"amount,omitempty"`
	Note                 string       `json:"note,omitempty"`
}

// QuoteSummary is the decision-ready reduction of a provider response.
// ValidQuoteItemsCount always reflects the source list length, regardless of
// how many products produced a match.
type QuoteSummary struct {
	LoanAmount           Float         `json:"loanAmount"`
	BorrowerName         string        `json:"borrowerName"`
	ValidQuoteItemsCount int           `json:"validQuoteItemsCount"`
	ErrorMessages        []interface{} `json:"errorMessages,omitempty"`
	Matches              []QuoteMatch  `json:"matches"`
	RawJSON              interface{}   `json:"rawJson"`
}

// QuoteInput is the borrower scenario accepted by the quote endpoint. Known
// fields are typed; everything else the caller sends is kept verbatim in
// Extra and passed through to the provider payload.
type QuoteInput struct {
	LoanAmount      float64
	CreditScore     int
	BorrowerName    string
	PropertyZipCode string
	PropertyCounty  string
	PropertyState   string
	SalesPrice      float64
	AppraisedValue  float64
	Extra           map[string]interface{}
}

var quoteInputKnownKeys = map[string]bool{
	"loanAmount":      true,
	"creditScore":     true,
	"borrowerName":    true,
	"propertyZipCode": true,
	"propertyCounty":  true,
	"propertyState":   true,
	"salesPrice":      true,
	"appraisedValue":  true,
}

func (q *QuoteInput) UnmarshalJSON(b []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*q = QuoteInput{Extra: make(map[string]interface{})}

	if v, ok := asFloat(raw["loanAmount"]); ok {
		q.LoanAmount = v
	}
	if v, ok := asFloat(raw["creditScore"]); ok {
		q.CreditScore = int(v)
	}
	if v, ok := raw["borrowerName"].(string); ok {
		q.BorrowerName = v
	}
	if v, ok := raw["propertyZipCode"].(string); ok {
		q.PropertyZipCode = v
	}
	if v, ok := raw["propertyCounty"].(string); ok {
		q.PropertyCounty = v
	}
	if v, ok := raw["propertyState"].(string); ok {
		q.PropertyState = v
	}
	if v, ok := asFloat(raw["salesPrice"]); ok {
		q.SalesPrice = v
	}
	if v, ok := asFloat(raw["appraisedValue"]); ok {
		q.AppraisedValue = v
	}

	for k, v := range raw {
		if !quoteInputKnownKeys[k] {
			q.Extra[k] = v
		}
	}
	return nil
}

func (q QuoteInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Fields())
}

// Fields flattens the input back into a single map, known fields over Extra.
func (q QuoteInput) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(q.Extra)+8)
	for k, v := range q.Extra {
		out[k] = v
	}
	out["loanAmount"] = q.LoanAmount
	out["creditScore"] = q.CreditScore
	out["borrowerName"] = q.BorrowerName
	out["propertyZipCode"] = q.PropertyZipCode
	out["propertyCounty"] = q.PropertyCounty
	out["propertyState"] = q.PropertyState
	out["salesPrice"] = q.SalesPrice
	out["appraisedValue"] = q.AppraisedValue
	return out
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
