package loan

import (
	"fmt"
	"math/big"
)

// LoanStatus enumerates the lifecycle states of a loan. Transitions are
// monotone: Completed, Defaulted and Cancelled are terminal.
type LoanStatus uint8

const (
	StatusPending LoanStatus = iota
	StatusActive
	StatusCompleted
	StatusDefaulted
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s LoanStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusDefaulted, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s LoanStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusDefaulted:
		return "defaulted"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CardKind discriminates the two card variants sharing the listing semantics:
// standing offers posted by lenders and requests posted by borrowers.
type CardKind uint8

const (
	CardInvestment CardKind = iota
	CardRequest
)

// Valid reports whether the kind value is within the supported range.
func (k CardKind) Valid() bool {
	return k == CardInvestment || k == CardRequest
}

func (k CardKind) String() string {
	switch k {
	case CardInvestment:
		return "investment"
	case CardRequest:
		return "request"
	default:
		return "unknown"
	}
}

// ApplicationStatus enumerates the lifecycle of a loan application. Approved
// and Rejected are terminal.
type ApplicationStatus uint8

const (
	ApplicationPending ApplicationStatus = iota
	ApplicationApproved
	ApplicationRejected
)

func (s ApplicationStatus) String() string {
	switch s {
	case ApplicationPending:
		return "pending"
	case ApplicationApproved:
		return "approved"
	case ApplicationRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Loan captures an issued loan together with its amortization bookkeeping.
// InstallmentAmount is derived through integer division of the interest-bearing
// total; the truncated remainder is deliberately not redistributed.
type Loan struct {
	ID                uint64
	Borrower          [20]byte
	Lender            [20]byte
	Principal         *big.Int
	InterestRateBps   uint32
	Installments      uint32
	InstallmentAmount *big.Int
	PaidInstallments  uint32
	TotalPaid         *big.Int
	Status            LoanStatus
	CreatedAt         int64
	NextPaymentDue    int64
	Schedule          []int64
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Principal = cloneAmount(l.Principal)
	clone.InstallmentAmount = cloneAmount(l.InstallmentAmount)
	clone.TotalPaid = cloneAmount(l.TotalPaid)
	clone.Schedule = append([]int64(nil), l.Schedule...)
	return &clone
}

// InvestmentCard is a lender-posted standing offer awaiting borrower
// applications.
type InvestmentCard struct {
	ID              uint64
	Investor        [20]byte
	MaxAmount       *big.Int
	MinAmount       *big.Int
	InterestRateBps uint32
	MaxInstallments uint32
	TargetRiskTier  uint32
	IsActive        bool
	TotalInvested   *big.Int
	CreatedAt       int64
}

// Clone returns a deep copy of the investment card.
func (c *InvestmentCard) Clone() *InvestmentCard {
	if c == nil {
		return nil
	}
	clone := *c
	clone.MaxAmount = cloneAmount(c.MaxAmount)
	clone.MinAmount = cloneAmount(c.MinAmount)
	clone.TotalInvested = cloneAmount(c.TotalInvested)
	return &clone
}

// RequestCard is a borrower-posted credit request awaiting a lender. Once
// funded the card is terminal and can never be funded again.
type RequestCard struct {
	ID                  uint64
	Borrower            [20]byte
	RequestedAmount     *big.Int
	DesiredInstallments uint32
	Schedule            []int64
	Description         string
	IsActive            bool
	IsFunded            bool
	CreatedAt           int64
}

// Clone returns a deep copy of the request card.
func (c *RequestCard) Clone() *RequestCard {
	if c == nil {
		return nil
	}
	clone := *c
	clone.RequestedAmount = cloneAmount(c.RequestedAmount)
	clone.Schedule = append([]int64(nil), c.Schedule...)
	return &clone
}

// LoanApplication links a borrower to an investment card.
type LoanApplication struct {
	ID        uint64
	CardID    uint64
	CardKind  CardKind
	Applicant [20]byte
	Amount    *big.Int
	Status    ApplicationStatus
	CreatedAt int64
}

// Clone returns a deep copy of the application.
func (a *LoanApplication) Clone() *LoanApplication {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Amount = cloneAmount(a.Amount)
	return &clone
}

// Payment records one paid installment. Installment numbers are 1-based and
// match PaidInstallments after the increment.
type Payment struct {
	LoanID      uint64
	Installment uint32
	Amount      *big.Int
	PaidAt      int64
	OnTime      bool
}

// Clone returns a deep copy of the payment.
func (p Payment) Clone() Payment {
	clone := p
	clone.Amount = cloneAmount(p.Amount)
	return clone
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// SanitizeLoan validates the loan invariants a stored record must uphold and
// returns a normalised clone.
func SanitizeLoan(l *Loan) (*Loan, error) {
	if l == nil {
		return nil, fmt.Errorf("nil loan")
	}
	clone := l.Clone()
	if clone.Principal.Sign() < 0 {
		return nil, fmt.Errorf("loan principal must be non-negative")
	}
	if clone.Installments == 0 {
		return nil, fmt.Errorf("loan requires at least one installment")
	}
	if clone.PaidInstallments > clone.Installments {
		return nil, fmt.Errorf("paid installments exceed installment count")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid loan status: %d", clone.Status)
	}
	return clone, nil
}
