package treasury

import (
	"fmt"
	"math/big"
)

var basisPoints = big.NewInt(10_000)

// FeeConfig holds the protocol fee rates in basis points. It is a singleton
// mutated only by the admin.
type FeeConfig struct {
	TransactionFeeBps uint32
	GasFeeBps         uint32
	LastUpdated       int64
}

// TransactionFee computes the transaction fee owed on amount.
func (c FeeConfig) TransactionFee(amount *big.Int) *big.Int {
	return feeFor(amount, c.TransactionFeeBps)
}

// GasFee computes the gas fee owed on amount.
func (c FeeConfig) GasFee(amount *big.Int) *big.Int {
	return feeFor(amount, c.GasFeeBps)
}

func feeFor(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return fee.Quo(fee, basisPoints)
}

// Validate checks the configured rates stay within the basis-point domain.
func (c FeeConfig) Validate() error {
	if c.TransactionFeeBps > 10_000 {
		return fmt.Errorf("treasury: transaction fee bps out of range: %d", c.TransactionFeeBps)
	}
	if c.GasFeeBps > 10_000 {
		return fmt.Errorf("treasury: gas fee bps out of range: %d", c.GasFeeBps)
	}
	return nil
}

// ProtectionFund is the pooled reserve compensating lenders on borrower
// default. TotalBalance never goes negative and only decreases through a
// successful claim payout bounded by the fund's own balance.
type ProtectionFund struct {
	TotalBalance *big.Int
	TotalClaims  uint32
	ActiveClaims uint32
}

// Clone returns a deep copy of the fund state.
func (f *ProtectionFund) Clone() *ProtectionFund {
	if f == nil {
		return &ProtectionFund{TotalBalance: big.NewInt(0)}
	}
	clone := &ProtectionFund{
		TotalBalance: big.NewInt(0),
		TotalClaims:  f.TotalClaims,
		ActiveClaims: f.ActiveClaims,
	}
	if f.TotalBalance != nil {
		clone.TotalBalance = new(big.Int).Set(f.TotalBalance)
	}
	return clone
}
