package creditscore

import "math/big"

// Score weighting between the ledger-derived and attestation-derived
// sub-scores.
const (
	onChainWeight  = 60
	offChainWeight = 40
)

// On-chain sub-score component weights.
const (
	historyWeight     = 40
	punctualityWeight = 30
	volumeWeight      = 20
	reputationWeight  = 10
)

// Cumulative volume bands for the volume tier step function, in base units.
var (
	volumeBandLow  = big.NewInt(1_000)
	volumeBandMid  = big.NewInt(10_000)
	volumeBandHigh = big.NewInt(100_000)
)

// TotalVolume sums the transacted amount across the payment history.
func TotalVolume(history []PaymentRecord) *big.Int {
	total := big.NewInt(0)
	for _, record := range history {
		if record.Amount != nil {
			total.Add(total, record.Amount)
		}
	}
	return total
}

// OnChainScore derives the ledger sub-score (0-100) from the payment history
// and the cumulative transacted volume. An empty history yields zero. All
// arithmetic is integer with intentional truncation; the result must stay
// reproducible bit-for-bit across implementations.
func OnChainScore(history []PaymentRecord, totalVolume *big.Int) uint32 {
	if len(history) == 0 {
		return 0
	}

	var onTimeCount uint32
	for _, record := range history {
		if record.OnTime {
			onTimeCount++
		}
	}

	totalPayments := uint32(len(history))
	punctualityScore := (onTimeCount * 100) / totalPayments

	historyScore := totalPayments * 2
	if totalPayments > 50 {
		historyScore = 100
	} else if historyScore > 100 {
		historyScore = 100
	}

	volume := totalVolume
	if volume == nil {
		volume = big.NewInt(0)
	}
	var volumeScore uint32
	switch {
	case volume.Cmp(volumeBandHigh) > 0:
		volumeScore = 100
	case volume.Cmp(volumeBandMid) > 0:
		volumeScore = 75
	case volume.Cmp(volumeBandLow) > 0:
		volumeScore = 50
	default:
		volumeScore = 25
	}

	var reputationScore uint32
	switch {
	case punctualityScore > 90 && totalPayments > 10:
		reputationScore = 100
	case punctualityScore > 75:
		reputationScore = 75
	default:
		reputationScore = 50
	}

	weighted := (historyScore*historyWeight +
		punctualityScore*punctualityWeight +
		volumeScore*volumeWeight +
		reputationScore*reputationWeight) / 100

	return clampScore(weighted)
}

// OffChainScore derives the attestation sub-score (0-100). Each verified flag
// contributes 20 points independently; a set bureau flag contributes the
// bureau score normalised from its 0-1000 range onto 40 points. Out-of-range
// bureau values are not rejected, only clamped through the final bound.
func OffChainScore(data OffChainData, bureauScore uint32) uint32 {
	var score uint32
	if data.BankStatements {
		score += 20
	}
	if data.RecurringPayments {
		score += 20
	}
	if data.Invoices {
		score += 20
	}
	if data.CreditBureau {
		score += (bureauScore * 40) / 1000
	}
	return clampScore(score)
}

// FinalScore blends the sub-scores with the 60/40 on-chain/off-chain split.
func FinalScore(onChain, offChain uint32) uint32 {
	final := (onChain*onChainWeight + offChain*offChainWeight) / 100
	return clampScore(final)
}

// TierFor maps a final score onto its risk tier: Low at 70 and above, Medium
// from 40 through 69, High below 40.
func TierFor(score uint32) RiskTier {
	switch {
	case score >= 70:
		return RiskLow
	case score >= 40:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func clampScore(score uint32) uint32 {
	if score > 100 {
		return 100
	}
	return score
}
