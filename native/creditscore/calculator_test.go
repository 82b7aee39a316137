package creditscore

import (
	"math/big"
	"testing"
)

func makeHistory(count, onTime int, amount int64) []PaymentRecord {
	history := make([]PaymentRecord, 0, count)
	for i := 0; i < count; i++ {
		history = append(history, PaymentRecord{
			LoanID:    uint64(i + 1),
			Amount:    big.NewInt(amount),
			OnTime:    i < onTime,
			Timestamp: int64(1_700_000_000 + i),
		})
	}
	return history
}

func TestOnChainScoreEmptyHistory(t *testing.T) {
	if got := OnChainScore(nil, big.NewInt(0)); got != 0 {
		t.Fatalf("expected zero score for empty history, got %d", got)
	}
}

func TestOnChainScoreSmallHistory(t *testing.T) {
	// 10 on-time payments of 100 units: history 20, punctuality 100,
	// volume 1000 sits in the lowest band, reputation 75 because the
	// payment count does not clear the top rung.
	history := makeHistory(10, 10, 100)
	got := OnChainScore(history, TotalVolume(history))
	if got != 50 {
		t.Fatalf("expected on-chain score 50, got %d", got)
	}
}

func TestOnChainScoreEstablishedBorrower(t *testing.T) {
	// 20 on-time payments of 10_000 units: history 40, punctuality 100,
	// volume 200_000 clears the top band, reputation 100.
	history := makeHistory(20, 20, 10_000)
	got := OnChainScore(history, TotalVolume(history))
	if got != 76 {
		t.Fatalf("expected on-chain score 76, got %d", got)
	}
}

func TestOnChainScoreHistoryCapped(t *testing.T) {
	sparse := makeHistory(51, 51, 1)
	dense := makeHistory(60, 60, 1)
	if OnChainScore(sparse, big.NewInt(51)) != OnChainScore(dense, big.NewInt(60)) {
		t.Fatalf("history component should cap at 100 beyond 50 payments")
	}
}

func TestOnChainScorePunctualityTruncates(t *testing.T) {
	// 2 of 3 on time: 200/3 truncates to 66.
	history := makeHistory(3, 2, 100)
	got := OnChainScore(history, TotalVolume(history))
	// history 6, punctuality 66, volume band 25, reputation 50:
	// (240 + 1980 + 500 + 500) / 100 = 32.
	if got != 32 {
		t.Fatalf("expected on-chain score 32, got %d", got)
	}
}

func TestVolumeBandBoundariesExclusive(t *testing.T) {
	history := makeHistory(1, 1, 1)
	cases := []struct {
		volume int64
		want   uint32
	}{
		{1_000, 25},
		{1_001, 50},
		{10_000, 50},
		{10_001, 75},
		{100_000, 75},
		{100_001, 100},
	}
	for _, tc := range cases {
		// history 2, punctuality 100, reputation 75.
		want := (2*historyWeight + 100*punctualityWeight + tc.want*volumeWeight + 75*reputationWeight) / 100
		if got := OnChainScore(history, big.NewInt(tc.volume)); got != want {
			t.Fatalf("volume %d: expected %d, got %d", tc.volume, want, got)
		}
	}
}

func TestOffChainScore(t *testing.T) {
	cases := []struct {
		name   string
		data   OffChainData
		bureau uint32
		want   uint32
	}{
		{"none", OffChainData{}, 0, 0},
		{"flagsOnly", OffChainData{BankStatements: true, RecurringPayments: true, Invoices: true}, 0, 60},
		{"bureauOnly", OffChainData{CreditBureau: true}, 500, 20},
		{"bureauIgnoredWhenUnset", OffChainData{}, 1_000, 0},
		{"full", OffChainData{BankStatements: true, RecurringPayments: true, Invoices: true, CreditBureau: true}, 1_000, 100},
		{"overflowClamped", OffChainData{BankStatements: true, RecurringPayments: true, Invoices: true, CreditBureau: true}, 2_000, 100},
	}
	for _, tc := range cases {
		if got := OffChainScore(tc.data, tc.bureau); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestFinalScoreBlend(t *testing.T) {
	if got := FinalScore(76, 100); got != 85 {
		t.Fatalf("expected blended score 85, got %d", got)
	}
	if got := FinalScore(0, 0); got != 0 {
		t.Fatalf("expected zero blend, got %d", got)
	}
	if got := FinalScore(100, 100); got != 100 {
		t.Fatalf("expected full blend 100, got %d", got)
	}
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		score uint32
		want  RiskTier
	}{
		{100, RiskLow},
		{70, RiskLow},
		{69, RiskMedium},
		{40, RiskMedium},
		{39, RiskHigh},
		{0, RiskHigh},
	}
	for _, tc := range cases {
		if got := TierFor(tc.score); got != tc.want {
			t.Fatalf("score %d: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}
