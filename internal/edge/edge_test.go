package edge

import (
	"math"
	"testing"
	"time"

	"github.com/edgescout/edgescout/internal/movement"
)

func TestNetEdgeReferenceCase(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()

	// $100 stake into $600k volume: spread tier 0.5%, slippage tier
	// 0.2%, fee 1% of the 6% raw edge.
	res := m.Evaluate(Input{
		FairYes:        0.56,
		YesPrice:       0.50,
		NoPrice:        0.52,
		Volume24hr:     600_000,
		PriceUpdatedAt: now,
	}, now)
	if res == nil {
		t.Fatal("expected an assessment")
	}
	if res.Side != "yes" {
		t.Errorf("side = %q, want yes", res.Side)
	}
	if math.Abs(res.RawEdge-0.06) > 1e-9 {
		t.Errorf("raw edge = %v, want 0.06", res.RawEdge)
	}
	if math.Abs(res.NetEdge-0.0524) > 1e-9 {
		t.Errorf("net edge = %v, want 0.0524", res.NetEdge)
	}
}

func TestRecommendsLargerSide(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()

	res := m.Evaluate(Input{
		FairYes:        0.40,
		YesPrice:       0.45,
		NoPrice:        0.52,
		Volume24hr:     600_000,
		PriceUpdatedAt: now,
	}, now)
	if res == nil {
		t.Fatal("expected an assessment")
	}
	// yes edge = -0.05, no edge = 0.60 - 0.52 = 0.08.
	if res.Side != "no" {
		t.Errorf("side = %q, want no", res.Side)
	}
	if math.Abs(res.RawEdge-0.08) > 1e-9 {
		t.Errorf("raw edge = %v, want 0.08", res.RawEdge)
	}
}

func TestMovementOverrideFlipsSide(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()

	in := Input{
		FairYes:        0.50,
		YesPrice:       0.485, // yes edge 1.5%
		NoPrice:        0.47,  // no edge 3.0%
		Volume24hr:     600_000,
		PriceUpdatedAt: now,
		Movement: movement.Result{
			Triggered: true,
			Direction: movement.Shortening,
		},
	}
	res := m.Evaluate(in, now)
	if res == nil {
		t.Fatal("expected an assessment")
	}
	if res.Side != "yes" {
		t.Errorf("side = %q, want yes (movement override)", res.Side)
	}

	// Below the 1% override floor the larger side stands.
	in.YesPrice = 0.495
	res = m.Evaluate(in, now)
	if res == nil {
		t.Fatal("expected an assessment")
	}
	if res.Side != "no" {
		t.Errorf("side = %q, want no (override floor not met)", res.Side)
	}
}

func TestStaleExtremeFavoriteDiscarded(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()

	in := Input{
		FairYes:        0.88,
		YesPrice:       0.80,
		NoPrice:        0.22,
		Volume24hr:     600_000,
		PriceUpdatedAt: now.Add(-5 * time.Minute),
	}
	if res := m.Evaluate(in, now); res != nil {
		t.Errorf("expected staleness discard, got %+v", res)
	}

	// A fresh quote on the same numbers is fine.
	in.PriceUpdatedAt = now.Add(-1 * time.Minute)
	if res := m.Evaluate(in, now); res == nil {
		t.Error("expected fresh quote to produce an assessment")
	}
}

func TestExtremeFavoriteEdgeCapped(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()

	res := m.Evaluate(Input{
		FairYes:        0.95,
		YesPrice:       0.40, // raw 55%
		NoPrice:        0.62,
		Volume24hr:     600_000,
		PriceUpdatedAt: now,
	}, now)
	if res == nil {
		t.Fatal("expected an assessment")
	}
	if !res.Capped {
		t.Error("expected cap flag")
	}
	if math.Abs(res.RawEdge-0.40) > 1e-9 {
		t.Errorf("raw edge = %v, want capped 0.40", res.RawEdge)
	}
	wantNet := 0.40 - 0.01*0.40 - 0.005 - 0.002
	if math.Abs(res.NetEdge-wantNet) > 1e-9 {
		t.Errorf("net edge = %v, want %v", res.NetEdge, wantNet)
	}
}

func TestLiveSpreadPreferred(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()

	res := m.Evaluate(Input{
		FairYes:        0.56,
		YesPrice:       0.50,
		NoPrice:        0.52,
		Spread:         0.012,
		Volume24hr:     600_000,
		PriceUpdatedAt: now,
	}, now)
	if res == nil {
		t.Fatal("expected an assessment")
	}
	if math.Abs(res.SpreadCost-0.012) > 1e-9 {
		t.Errorf("spread cost = %v, want live spread 0.012", res.SpreadCost)
	}
}

func TestMalformedPricesYieldNoAssessment(t *testing.T) {
	m := New(DefaultConfig())
	now := time.Now()

	cases := []Input{
		{FairYes: 0.5, YesPrice: 0, NoPrice: 0.5, Volume24hr: 1000},
		{FairYes: 0.5, YesPrice: 0.5, NoPrice: 1.2, Volume24hr: 1000},
		{FairYes: math.NaN(), YesPrice: 0.5, NoPrice: 0.5, Volume24hr: 1000},
		{FairYes: 0.5, YesPrice: 0.55, NoPrice: 0.55, Volume24hr: 1000}, // no positive edge
	}
	for i, in := range cases {
		in.PriceUpdatedAt = now
		if res := m.Evaluate(in, now); res != nil {
			t.Errorf("case %d: expected nil, got %+v", i, res)
		}
	}
}
