package creditscore

import "math/big"

// RiskTier buckets a numeric credit score into the coarse creditworthiness
// classes used by lending policy checks.
type RiskTier uint8

const (
	RiskLow RiskTier = iota
	RiskMedium
	RiskHigh
)

// Valid reports whether the tier value is within the supported range.
func (r RiskTier) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

func (r RiskTier) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// CreditScore captures the blended creditworthiness rating for a subject. The
// final score is always the weighted combination of the on-chain and off-chain
// sub-scores and stays within [0, 100].
type CreditScore struct {
	Subject           [20]byte
	Score             uint32
	Risk              RiskTier
	OnChainScore      uint32
	OffChainScore     uint32
	PaymentCount      uint32
	TotalTransactions uint32
	DefaultCount      uint32
	LastUpdated       int64
}

// Clone returns a deep copy of the score record.
func (c *CreditScore) Clone() *CreditScore {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// PaymentRecord is one entry in a subject's payment history. Records are
// append-only: once written they are never mutated or removed.
type PaymentRecord struct {
	LoanID    uint64
	Amount    *big.Int
	OnTime    bool
	Timestamp int64
}

// Clone returns a deep copy of the payment record.
func (p PaymentRecord) Clone() PaymentRecord {
	clone := p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return clone
}

// OffChainData carries the externally verified attestation flags folded into a
// subject's off-chain sub-score. It is transient input and never persisted on
// its own.
type OffChainData struct {
	BankStatements    bool
	RecurringPayments bool
	Invoices          bool
	CreditBureau      bool
}
