package treasury

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"peerlend/core/types"
)

const (
	// EventTypeFeesUpdated is emitted when the admin replaces the fee
	// configuration.
	EventTypeFeesUpdated = "treasury.feesUpdated"
	// EventTypeClaimPaid is emitted when a protection claim pays out.
	EventTypeClaimPaid = "treasury.claimPaid"
	// EventTypeFundContribution is emitted on a voluntary fund deposit.
	EventTypeFundContribution = "treasury.fundContribution"
	// EventTypeFeesWithdrawn is emitted when accumulated fees leave the
	// treasury.
	EventTypeFeesWithdrawn = "treasury.feesWithdrawn"
)

// NewFeesUpdatedEvent reports the fee schedule now in force.
func NewFeesUpdatedEvent(cfg FeeConfig) *types.Event {
	return &types.Event{
		Type: EventTypeFeesUpdated,
		Attributes: map[string]string{
			"transactionFeeBps": strconv.FormatUint(uint64(cfg.TransactionFeeBps), 10),
			"gasFeeBps":         strconv.FormatUint(uint64(cfg.GasFeeBps), 10),
			"updatedAt":         strconv.FormatInt(cfg.LastUpdated, 10),
		},
	}
}

// NewClaimPaidEvent reports a protection payout to a lender.
func NewClaimPaidEvent(lender [20]byte, loanID uint64, claimed, payout *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeClaimPaid,
		Attributes: map[string]string{
			"lender":  hex.EncodeToString(lender[:]),
			"loanId":  strconv.FormatUint(loanID, 10),
			"claimed": formatAmount(claimed),
			"payout":  formatAmount(payout),
		},
	}
}

// NewFundContributionEvent reports a deposit into the protection fund.
func NewFundContributionEvent(from [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFundContribution,
		Attributes: map[string]string{
			"from":   hex.EncodeToString(from[:]),
			"amount": formatAmount(amount),
		},
	}
}

// NewFeesWithdrawnEvent reports a fee withdrawal to a recipient.
func NewFeesWithdrawnEvent(recipient [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFeesWithdrawn,
		Attributes: map[string]string{
			"recipient": hex.EncodeToString(recipient[:]),
			"amount":    formatAmount(amount),
		},
	}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
