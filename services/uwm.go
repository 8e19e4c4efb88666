package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// UwmService talks to the UWM instant-price-quote API. One instance is shared
// across requests; the OAuth token is cached until shortly before expiry.
type UwmService struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	Scope        string
	TokenURL     string
	QuoteURL     string
	ExactRateURL string
	Client       *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewUwmService() *UwmService {
	quoteURL := os.Getenv("UWM_PRICEQUOTE_URL")
	if quoteURL == "" {
		quoteURL = "https://stg.api.uwm.com/public/instantpricequote/v2/pricequote"
	}
	exactRateURL := os.Getenv("UWM_EXACTRATE_URL")
	if exactRateURL == "" {
		exactRateURL = quoteURL + "/exactrate"
	}
	tokenURL := os.Getenv("UWM_TOKEN_URL")
	if tokenURL == "" {
		tokenURL = "https://sso.uwm.com/adfs/oauth2/token"
	}

	// Trim spaces to prevent 401s from copy-pasted credentials
	return &UwmService{
		Username:     strings.TrimSpace(os.Getenv("UWM_USERNAME")),
		Password:     strings.TrimSpace(os.Getenv("UWM_PASSWORD")),
		ClientID:     strings.TrimSpace(os.Getenv("UWM_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("UWM_CLIENT_SECRET")),
		Scope:        strings.TrimSpace(os.Getenv("UWM_SCOPE")),
		TokenURL:     tokenURL,
		QuoteURL:     quoteURL,
		ExactRateURL: exactRateURL,
		Client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *UwmService) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "rateleads-api/1.0")
	req.Header.Set("Accept", "application/json")
}

// GetAccessToken returns a cached token or fetches a fresh one via the ADFS
// password grant.
func (s *UwmService) GetAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	if s.Username == "" || s.Password == "" || s.ClientID == "" || s.ClientSecret == "" {
		return "", fmt.Errorf("missing UWM credentials (UWM_USERNAME, UWM_PASSWORD, UWM_CLIENT_ID, UWM_CLIENT_SECRET)")
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", s.Username)
	form.Set("password", s.Password)
	form.Set("client_id", s.ClientID)
	form.Set("client_secret", s.ClientSecret)
	if s.Scope != "" {
		form.Set("scope", s.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed (%d): %s", resp.StatusCode, string(b))
	}

	var tokenRes struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenRes); err != nil {
		return "", fmt.Errorf("token decode error: %w", err)
	}
	if tokenRes.AccessToken == "" {
		return "", fmt.Errorf("no access_token in token response")
	}

	ttl := time.Duration(tokenRes.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	s.token = tokenRes.AccessToken
	s.tokenExpiry = time.Now().Add(ttl - 30*time.Second)

	return s.token, nil
}

// FetchQuote posts a borrower scenario and returns the provider's response as
// a decoded JSON tree. The provider occasionally double-encodes the body
// (JSON serialized inside a JSON string); both shapes are handled.
func (s *UwmService) FetchQuote(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payload encode error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.QuoteURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price quote request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("price quote rate limited (429): %s", truncate(respBody, 200))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("price quote failed (%d): %s", resp.StatusCode, truncate(respBody, 200))
	}

	return decodeProviderJSON(respBody)
}

// LookupExactRate performs a single-attempt targeted rate lookup. No retries:
// a failure here falls through to the buydown fallback, and the upstream is
// session-constrained.
func (s *UwmService) LookupExactRate(ctx context.Context, lookup ExactRateRequest) (*ExactRateResult, error) {
	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := make(map[string]interface{}, len(lookup.Payload)+4)
	for k, v := range lookup.Payload {
		payload[k] = v
	}
	payload["buyDownAliasID"] = lookup.BuydownType
	payload["exactRateTypeId"] = "1"
	payload["exactRateValue"] = lookup.TargetRate
	payload["loanTermIds"] = []string{termIDForYears(lookup.TermYears)}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("payload encode error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.ExactRateURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exact-rate request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("exact-rate failed (%d): %s", resp.StatusCode, truncate(respBody, 200))
	}

	// Decoded with a nullable rate: an absent rate means the provider had
	// nothing for this target, a zero rate is a (strange but valid) answer.
	var decoded struct {
		Rate    *float64 `json:"rate"`
		Payment *float64 `json:"payment"`
		Savings float64  `json:"savings"`
		IsExact bool     `json:"is_exact"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("exact-rate decode error: %w", err)
	}
	if decoded.Rate == nil {
		return nil, nil
	}

	return &ExactRateResult{
		Rate:    *decoded.Rate,
		Payment: decoded.Payment,
		Savings: decoded.Savings,
		IsExact: decoded.IsExact,
	}, nil
}

// termIDForYears maps loan term years onto the provider's loanTermIds enum.
func termIDForYears(years int) string {
	switch years {
	case 30:
		return "0"
	case 25:
		return "1"
	case 20:
		return "2"
	case 15:
		return "3"
	case 10:
		return "4"
	}
	return "0"
}

// decodeProviderJSON decodes a provider body that may be a JSON value or a
// JSON value serialized as a string.
func decodeProviderJSON(body []byte) (interface{}, error) {
	var tree interface{}
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("response decode error: %w", err)
	}
	if inner, ok := tree.(string); ok {
		var nested interface{}
		if err := json.Unmarshal([]byte(inner), &nested); err == nil {
			return nested, nil
		}
	}
	return tree, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// defaultQuotePayload returns the provider payload skeleton. Caller fields
// overlay these entries; the IDs are the provider's documented enum values.
func defaultQuotePayload() map[string]interface{} {
	return map[string]interface{}{
		"brokerAlias":               "TEST",
		"loanOfficer":               "lofficer@email.com",
		"borrowerName":              "Unknown",
		"purposeTypeID":             "3",
		"loanTypeIds":               []string{"0"},
		"refinancePurposeId":        "Rate And Term Reduction-CONV",
		"salesPrice":                0,
		"appraisedValue":            0,
		"loanAmount":                0,
		"secondLoanAmount":          0,
		"occupancyTypeId":           "1",
		"propertyTypeId":            "22",
		"propertyZipCode":           "",
		"propertyCounty":            "",
		"propertyState":             "",
		"creditScore":               0,
		"commitmentPeriodId":        "13",
		"isCorrespondent":           false,
		"isDTIOver45Percent":        false,
		"monthlyDebt":               0,
		"annualTaxes":               0,
		"annualHomeownersInsurance": 0,
		"annualPercentageRateFees":  0,
		"selfEmployed":              false,
		"monthsOfBankStatementsId":  "0",
		"monthsOfReservesId":        "0",
		"numberOfBorrowers":         1,
		"compensationPayerTypeID":   "1",
		"escrowWaiverTypeId":        "1",
		"includeFlexTerms":          false,
		"tracTypeId":                "0",
		"waivableFeeTypeIds":        []string{"0"},
		"loanShieldTypeId":          "0",
		"paPlusTypeId":              "0",
		"exactRateTypeId":           "2",
		"targetPriceValue":          0,
		"targetCashValue":           0,
		"waiveUnderwritingFee":      false,
		"monthlyIncome":             20000,
		"buyDownAliasID":            "None",
		"firstTimeHomeBuyer":        false,
		"loanTermIds":               []string{"4", "3", "1", "2", "0"},
	}
}

// payloadAliases maps each provider payload field to the customer-record
// field that backs it when the canonical key carries nothing. Callers send
// CRM shapes (remainingBalance, propertyValue) as often as provider shapes.
var payloadAliases = map[string]string{
	"loanAmount":      "remainingBalance",
	"appraisedValue":  "propertyValue",
	"propertyZipCode": "propertyZip",
	"borrowerName":    "name",
	"loanOfficer":     "email",
}

// blankField reports whether a caller value carries no usable data: missing,
// empty string or numeric zero.
func blankField(v interface{}) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	if f := SafeFloat(v); f != nil {
		return *f == 0
	}
	return false
}

// BuildQuotePayload merges caller fields over the payload skeleton, resolving
// customer-record aliases onto the provider's field names. A monthlyIncome
// below 1 (or unparseable) falls back to the skeleton default — the provider
// rejects zero-income scenarios outright.
func BuildQuotePayload(fields map[string]interface{}) map[string]interface{} {
	payload := defaultQuotePayload()
	for k, v := range fields {
		payload[k] = v
	}

	for canonical, alias := range payloadAliases {
		if blankField(fields[canonical]) && !blankField(fields[alias]) {
			payload[canonical] = fields[alias]
		}
		// Alias keys are not provider fields.
		delete(payload, alias)
	}

	if mi := SafeFloat(payload["monthlyIncome"]); mi == nil || *mi < 1 {
		payload["monthlyIncome"] = 20000
	}

	return payload
}
