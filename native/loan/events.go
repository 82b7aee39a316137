package loan

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"peerlend/core/types"
)

const (
	EventTypeLoanCreated          = "loan.created"
	EventTypePaymentMade          = "loan.paymentMade"
	EventTypeLoanCompleted        = "loan.completed"
	EventTypeLoanDefaulted        = "loan.defaulted"
	EventTypeCardCreated          = "loan.cardCreated"
	EventTypeApplicationSubmitted = "loan.applicationSubmitted"
	EventTypeApplicationApproved  = "loan.applicationApproved"
	EventTypeApplicationRejected  = "loan.applicationRejected"
)

// NewLoanCreatedEvent returns the canonical event payload for a newly issued
// loan.
func NewLoanCreatedEvent(l *Loan) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: EventTypeLoanCreated, Attributes: attrs}
	}
	attrs["loanId"] = strconv.FormatUint(l.ID, 10)
	attrs["borrower"] = hex.EncodeToString(l.Borrower[:])
	attrs["lender"] = hex.EncodeToString(l.Lender[:])
	attrs["principal"] = formatAmount(l.Principal)
	attrs["interestRateBps"] = strconv.FormatUint(uint64(l.InterestRateBps), 10)
	attrs["installments"] = strconv.FormatUint(uint64(l.Installments), 10)
	attrs["createdAt"] = strconv.FormatInt(l.CreatedAt, 10)
	return &types.Event{Type: EventTypeLoanCreated, Attributes: attrs}
}

// NewPaymentMadeEvent returns the canonical event payload emitted for every
// settled installment.
func NewPaymentMadeEvent(l *Loan, p Payment) *types.Event {
	attrs := map[string]string{
		"loanId":      strconv.FormatUint(p.LoanID, 10),
		"amount":      formatAmount(p.Amount),
		"installment": strconv.FormatUint(uint64(p.Installment), 10),
		"onTime":      strconv.FormatBool(p.OnTime),
		"paidAt":      strconv.FormatInt(p.PaidAt, 10),
	}
	if l != nil {
		attrs["borrower"] = hex.EncodeToString(l.Borrower[:])
	}
	return &types.Event{Type: EventTypePaymentMade, Attributes: attrs}
}

// NewLoanCompletedEvent returns the canonical event payload for a fully
// repaid loan.
func NewLoanCompletedEvent(l *Loan) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: EventTypeLoanCompleted, Attributes: attrs}
	}
	attrs["loanId"] = strconv.FormatUint(l.ID, 10)
	attrs["borrower"] = hex.EncodeToString(l.Borrower[:])
	attrs["totalPaid"] = formatAmount(l.TotalPaid)
	return &types.Event{Type: EventTypeLoanCompleted, Attributes: attrs}
}

// NewLoanDefaultedEvent returns the canonical event payload emitted when a
// loan is marked defaulted after grace-period expiry.
func NewLoanDefaultedEvent(l *Loan) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: EventTypeLoanDefaulted, Attributes: attrs}
	}
	attrs["loanId"] = strconv.FormatUint(l.ID, 10)
	attrs["borrower"] = hex.EncodeToString(l.Borrower[:])
	attrs["lender"] = hex.EncodeToString(l.Lender[:])
	attrs["totalPaid"] = formatAmount(l.TotalPaid)
	return &types.Event{Type: EventTypeLoanDefaulted, Attributes: attrs}
}

// NewCardCreatedEvent returns the canonical event payload for a freshly
// listed card of either kind.
func NewCardCreatedEvent(cardID uint64, owner [20]byte, kind CardKind, createdAt int64) *types.Event {
	return &types.Event{
		Type: EventTypeCardCreated,
		Attributes: map[string]string{
			"cardId":    strconv.FormatUint(cardID, 10),
			"owner":     hex.EncodeToString(owner[:]),
			"kind":      kind.String(),
			"createdAt": strconv.FormatInt(createdAt, 10),
		},
	}
}

// NewApplicationSubmittedEvent returns the canonical event payload for a new
// loan application.
func NewApplicationSubmittedEvent(a *LoanApplication) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: EventTypeApplicationSubmitted, Attributes: attrs}
	}
	attrs["appId"] = strconv.FormatUint(a.ID, 10)
	attrs["cardId"] = strconv.FormatUint(a.CardID, 10)
	attrs["applicant"] = hex.EncodeToString(a.Applicant[:])
	attrs["amount"] = formatAmount(a.Amount)
	return &types.Event{Type: EventTypeApplicationSubmitted, Attributes: attrs}
}

// NewApplicationApprovedEvent returns the canonical event payload for an
// approved application together with the loan it produced.
func NewApplicationApprovedEvent(a *LoanApplication, loanID uint64) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: EventTypeApplicationApproved, Attributes: attrs}
	}
	attrs["appId"] = strconv.FormatUint(a.ID, 10)
	attrs["cardId"] = strconv.FormatUint(a.CardID, 10)
	attrs["loanId"] = strconv.FormatUint(loanID, 10)
	attrs["applicant"] = hex.EncodeToString(a.Applicant[:])
	return &types.Event{Type: EventTypeApplicationApproved, Attributes: attrs}
}

// NewApplicationRejectedEvent returns the canonical event payload for a
// rejected application.
func NewApplicationRejectedEvent(a *LoanApplication) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: EventTypeApplicationRejected, Attributes: attrs}
	}
	attrs["appId"] = strconv.FormatUint(a.ID, 10)
	attrs["cardId"] = strconv.FormatUint(a.CardID, 10)
	attrs["applicant"] = hex.EncodeToString(a.Applicant[:])
	return &types.Event{Type: EventTypeApplicationRejected, Attributes: attrs}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
