package creditscore

import (
	"encoding/hex"
	"strconv"

	"peerlend/core/types"
)

const (
	// EventTypeScoreUpdated is emitted after a full score recomputation.
	EventTypeScoreUpdated = "creditscore.updated"
	// EventTypePaymentRecorded is emitted when the loan module appends a
	// payment to a subject's history.
	EventTypePaymentRecorded = "creditscore.paymentRecorded"
)

// NewScoreUpdatedEvent returns the canonical event payload for a score update.
func NewScoreUpdatedEvent(score *CreditScore) *types.Event {
	attrs := make(map[string]string)
	if score == nil {
		return &types.Event{Type: EventTypeScoreUpdated, Attributes: attrs}
	}
	attrs["subject"] = hex.EncodeToString(score.Subject[:])
	attrs["score"] = strconv.FormatUint(uint64(score.Score), 10)
	attrs["risk"] = score.Risk.String()
	attrs["onChainScore"] = strconv.FormatUint(uint64(score.OnChainScore), 10)
	attrs["offChainScore"] = strconv.FormatUint(uint64(score.OffChainScore), 10)
	attrs["lastUpdated"] = strconv.FormatInt(score.LastUpdated, 10)
	return &types.Event{Type: EventTypeScoreUpdated, Attributes: attrs}
}

// NewPaymentRecordedEvent returns the canonical event payload for an appended
// payment record.
func NewPaymentRecordedEvent(subject [20]byte, record PaymentRecord) *types.Event {
	attrs := map[string]string{
		"subject":   hex.EncodeToString(subject[:]),
		"loanId":    strconv.FormatUint(record.LoanID, 10),
		"onTime":    strconv.FormatBool(record.OnTime),
		"timestamp": strconv.FormatInt(record.Timestamp, 10),
	}
	if record.Amount != nil {
		attrs["amount"] = record.Amount.String()
	} else {
		attrs["amount"] = "0"
	}
	return &types.Event{Type: EventTypePaymentRecorded, Attributes: attrs}
}
