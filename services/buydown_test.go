package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/valargen/rateleads-api/models"
)

type stubRateLookup struct {
	mu    sync.Mutex
	res   *ExactRateResult
	err   error
	calls int
	reqs  []ExactRateRequest
}

func (s *stubRateLookup) LookupExactRate(ctx context.Context, req ExactRateRequest) (*ExactRateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.reqs = append(s.reqs, req)
	return s.res, s.err
}

func TestYear1TargetRate(t *testing.T) {
	cases := []struct {
		base        float64
		buydownType string
		want        *float64
	}{
		{6.625, "2-1 LLPA", fp(4.625)},
		{6.625, "1-0 LLPA", fp(5.625)},
		{6.625, "None", nil},
		{6.625, "", nil},
		{6.6264, "1-0 LLPA", fp(5.626)}, // rounded to three decimals
	}

	for _, tc := range cases {
		got := Year1TargetRate(tc.base, tc.buydownType)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("Year1TargetRate(%v, %q) = %v, want nil", tc.base, tc.buydownType, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("Year1TargetRate(%v, %q) = %v, want %v", tc.base, tc.buydownType, got, *tc.want)
		}
	}
}

func TestYear2TargetRate(t *testing.T) {
	if got := Year2TargetRate(6.625, "2-1 LLPA"); got == nil || *got != 5.625 {
		t.Errorf("2-1 year two = %v, want 5.625", got)
	}
	if got := Year2TargetRate(6.625, "1-0 LLPA"); got != nil {
		t.Errorf("1-0 buydown keeps base in year two, got %v", *got)
	}
	if got := Year2TargetRate(6.625, "None"); got != nil {
		t.Errorf("no buydown must yield nil, got %v", *got)
	}
}

func TestFindExactRate(t *testing.T) {
	ladder := []models.RateOption{
		{MonthlyPayment: fp(1700)}, // no rate, skipped
		ladderRow(5.0, -2600, 1650),
		ladderRow(5.625, -2200, 1720),
	}

	if got := FindExactRate(ladder, fp(5.63)); got == nil || *got.InterestRate != 5.625 {
		t.Errorf("5.63 is within tolerance of 5.625, got %+v", got)
	}
	if got := FindExactRate(ladder, fp(5.65)); got != nil {
		t.Errorf("5.65 is outside tolerance, got %+v", got)
	}
	if got := FindExactRate(ladder, nil); got != nil {
		t.Errorf("nil target must yield nil, got %+v", got)
	}
}

func TestResolveBuydownRate_NilTarget(t *testing.T) {
	lookup := &stubRateLookup{}
	if got := ResolveBuydownRate(context.Background(), lookup, buydownProductContext{}, nil); got != nil {
		t.Fatalf("expected nil entry, got %+v", got)
	}
	if lookup.calls != 0 {
		t.Errorf("no lookup should happen for a nil target")
	}
}

func TestResolveBuydownRate_FromLadder(t *testing.T) {
	lookup := &stubRateLookup{res: &ExactRateResult{Rate: 9.9}}
	pc := buydownProductContext{
		ProductName: "30 Year Fixed",
		Rates: []models.RateOption{
			ladderRow(4.625, -3100, 1450),
			ladderRow(6.625, -1900, 1800),
		},
	}

	entry := ResolveBuydownRate(context.Background(), lookup, pc, fp(4.625))
	if entry == nil {
		t.Fatal("expected an entry")
	}
	if entry.Source == nil || *entry.Source != BuydownSourceRates {
		t.Errorf("source = %v, want %q", entry.Source, BuydownSourceRates)
	}
	if !entry.IsExact {
		t.Error("a ladder hit is exact by definition")
	}
	if entry.InterestRate != 4.625 || entry.MonthlyPayment == nil || *entry.MonthlyPayment != 1450 {
		t.Errorf("entry must carry the ladder row's numbers: %+v", entry)
	}
	if lookup.calls != 0 {
		t.Errorf("ladder hit must not call the provider, got %d calls", lookup.calls)
	}
}

func TestResolveBuydownRate_FromLookup(t *testing.T) {
	lookup := &stubRateLookup{
		res: &ExactRateResult{Rate: 4.75, Payment: fp(1480), Savings: 520, IsExact: true},
	}
	pc := buydownProductContext{
		CustomerKey: "cust-1",
		ProductName: "30 Year Fixed",
		TermYears:   30,
		BuydownType: "2-1 LLPA",
	}

	entry := ResolveBuydownRate(context.Background(), lookup, pc, fp(4.625))
	if entry == nil {
		t.Fatal("expected an entry")
	}
	if entry.Source == nil || *entry.Source != BuydownSourceAPI {
		t.Errorf("source = %v, want %q", entry.Source, BuydownSourceAPI)
	}
	if entry.InterestRate != 4.75 || !entry.IsExact {
		t.Errorf("provider numbers must be propagated as-is: %+v", entry)
	}
	if lookup.calls != 1 {
		t.Fatalf("expected a single lookup attempt, got %d", lookup.calls)
	}
	req := lookup.reqs[0]
	if req.TargetRate != 4.625 || req.CustomerKey != "cust-1" || req.BuydownType != "2-1 LLPA" {
		t.Errorf("lookup request not keyed to the product context: %+v", req)
	}
}

func TestResolveBuydownRate_FallbackOnNoResult(t *testing.T) {
	for _, lookup := range []*stubRateLookup{
		{},                                    // provider had nothing
		{err: errors.New("upstream timeout")}, // transport failure
	} {
		entry := ResolveBuydownRate(context.Background(), lookup, buydownProductContext{ProductName: "30 Year Fixed"}, fp(5.125))
		if entry == nil {
			t.Fatal("fallback entry expected")
		}
		if entry.Source != nil {
			t.Errorf("fallback has no source, got %q", *entry.Source)
		}
		if entry.IsExact {
			t.Error("fallback is never exact")
		}
		if entry.InterestRate != 5.125 {
			t.Errorf("fallback rate = %v, want the computed target", entry.InterestRate)
		}
		if entry.Note == "" {
			t.Error("fallback must explain itself")
		}
	}
}

func TestResolveBuydownRate_SkipsLookupWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lookup := &stubRateLookup{res: &ExactRateResult{Rate: 4.75, IsExact: true}}
	entry := ResolveBuydownRate(ctx, lookup, buydownProductContext{}, fp(4.625))

	if lookup.calls != 0 {
		t.Errorf("cancelled context must skip the lookup, got %d calls", lookup.calls)
	}
	if entry == nil || entry.Source != nil || entry.IsExact {
		t.Errorf("expected the unverified fallback, got %+v", entry)
	}
}
