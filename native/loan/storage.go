package loan

import (
	"fmt"
	"math/big"
)

var (
	loanPrefix     = []byte("loan/loan/")
	invCardPrefix  = []byte("loan/invcard/")
	reqCardPrefix  = []byte("loan/reqcard/")
	appPrefix      = []byte("loan/app/")
	paymentsPrefix = []byte("loan/payments/")

	adminKey      = []byte("loan/admin")
	nextLoanIDKey = []byte("loan/next-loan-id")
	nextCardIDKey = []byte("loan/next-card-id")
	nextAppIDKey  = []byte("loan/next-app-id")
)

func loanKey(id uint64) []byte     { return []byte(fmt.Sprintf("%s%d", loanPrefix, id)) }
func invCardKey(id uint64) []byte  { return []byte(fmt.Sprintf("%s%d", invCardPrefix, id)) }
func reqCardKey(id uint64) []byte  { return []byte(fmt.Sprintf("%s%d", reqCardPrefix, id)) }
func appKey(id uint64) []byte      { return []byte(fmt.Sprintf("%s%d", appPrefix, id)) }
func paymentsKey(id uint64) []byte { return []byte(fmt.Sprintf("%s%d", paymentsPrefix, id)) }

// Persisted mirrors of the domain types. Timestamps are stored unsigned; the
// engine converts at the boundary.
type storedLoan struct {
	ID                uint64
	Borrower          [20]byte
	Lender            [20]byte
	Principal         *big.Int
	InterestRateBps   uint32
	Installments      uint32
	InstallmentAmount *big.Int
	PaidInstallments  uint32
	TotalPaid         *big.Int
	Status            uint8
	CreatedAt         uint64
	NextPaymentDue    uint64
	Schedule          []uint64
}

type storedInvestmentCard struct {
	ID              uint64
	Investor        [20]byte
	MaxAmount       *big.Int
	MinAmount       *big.Int
	InterestRateBps uint32
	MaxInstallments uint32
	TargetRiskTier  uint32
	IsActive        bool
	TotalInvested   *big.Int
	CreatedAt       uint64
}

type storedRequestCard struct {
	ID                  uint64
	Borrower            [20]byte
	RequestedAmount     *big.Int
	DesiredInstallments uint32
	Schedule            []uint64
	Description         string
	IsActive            bool
	IsFunded            bool
	CreatedAt           uint64
}

type storedApplication struct {
	ID        uint64
	CardID    uint64
	CardKind  uint8
	Applicant [20]byte
	Amount    *big.Int
	Status    uint8
	CreatedAt uint64
}

type storedPayment struct {
	LoanID      uint64
	Installment uint32
	Amount      *big.Int
	PaidAt      uint64
	OnTime      bool
}

func toUnsigned(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func scheduleToUnsigned(schedule []int64) []uint64 {
	out := make([]uint64, 0, len(schedule))
	for _, ts := range schedule {
		out = append(out, toUnsigned(ts))
	}
	return out
}

func scheduleFromUnsigned(schedule []uint64) []int64 {
	out := make([]int64, 0, len(schedule))
	for _, ts := range schedule {
		out = append(out, int64(ts))
	}
	return out
}

func encodeLoan(l *Loan) *storedLoan {
	return &storedLoan{
		ID:                l.ID,
		Borrower:          l.Borrower,
		Lender:            l.Lender,
		Principal:         cloneAmount(l.Principal),
		InterestRateBps:   l.InterestRateBps,
		Installments:      l.Installments,
		InstallmentAmount: cloneAmount(l.InstallmentAmount),
		PaidInstallments:  l.PaidInstallments,
		TotalPaid:         cloneAmount(l.TotalPaid),
		Status:            uint8(l.Status),
		CreatedAt:         toUnsigned(l.CreatedAt),
		NextPaymentDue:    toUnsigned(l.NextPaymentDue),
		Schedule:          scheduleToUnsigned(l.Schedule),
	}
}

func decodeLoan(s *storedLoan) *Loan {
	return &Loan{
		ID:                s.ID,
		Borrower:          s.Borrower,
		Lender:            s.Lender,
		Principal:         cloneAmount(s.Principal),
		InterestRateBps:   s.InterestRateBps,
		Installments:      s.Installments,
		InstallmentAmount: cloneAmount(s.InstallmentAmount),
		PaidInstallments:  s.PaidInstallments,
		TotalPaid:         cloneAmount(s.TotalPaid),
		Status:            LoanStatus(s.Status),
		CreatedAt:         int64(s.CreatedAt),
		NextPaymentDue:    int64(s.NextPaymentDue),
		Schedule:          scheduleFromUnsigned(s.Schedule),
	}
}

func encodeInvestmentCard(c *InvestmentCard) *storedInvestmentCard {
	return &storedInvestmentCard{
		ID:              c.ID,
		Investor:        c.Investor,
		MaxAmount:       cloneAmount(c.MaxAmount),
		MinAmount:       cloneAmount(c.MinAmount),
		InterestRateBps: c.InterestRateBps,
		MaxInstallments: c.MaxInstallments,
		TargetRiskTier:  c.TargetRiskTier,
		IsActive:        c.IsActive,
		TotalInvested:   cloneAmount(c.TotalInvested),
		CreatedAt:       toUnsigned(c.CreatedAt),
	}
}

func decodeInvestmentCard(s *storedInvestmentCard) *InvestmentCard {
	return &InvestmentCard{
		ID:              s.ID,
		Investor:        s.Investor,
		MaxAmount:       cloneAmount(s.MaxAmount),
		MinAmount:       cloneAmount(s.MinAmount),
		InterestRateBps: s.InterestRateBps,
		MaxInstallments: s.MaxInstallments,
		TargetRiskTier:  s.TargetRiskTier,
		IsActive:        s.IsActive,
		TotalInvested:   cloneAmount(s.TotalInvested),
		CreatedAt:       int64(s.CreatedAt),
	}
}

func encodeRequestCard(c *RequestCard) *storedRequestCard {
	return &storedRequestCard{
		ID:                  c.ID,
		Borrower:            c.Borrower,
		RequestedAmount:     cloneAmount(c.RequestedAmount),
		DesiredInstallments: c.DesiredInstallments,
		Schedule:            scheduleToUnsigned(c.Schedule),
		Description:         c.Description,
		IsActive:            c.IsActive,
		IsFunded:            c.IsFunded,
		CreatedAt:           toUnsigned(c.CreatedAt),
	}
}

func decodeRequestCard(s *storedRequestCard) *RequestCard {
	return &RequestCard{
		ID:                  s.ID,
		Borrower:            s.Borrower,
		RequestedAmount:     cloneAmount(s.RequestedAmount),
		DesiredInstallments: s.DesiredInstallments,
		Schedule:            scheduleFromUnsigned(s.Schedule),
		Description:         s.Description,
		IsActive:            s.IsActive,
		IsFunded:            s.IsFunded,
		CreatedAt:           int64(s.CreatedAt),
	}
}

func encodeApplication(a *LoanApplication) *storedApplication {
	return &storedApplication{
		ID:        a.ID,
		CardID:    a.CardID,
		CardKind:  uint8(a.CardKind),
		Applicant: a.Applicant,
		Amount:    cloneAmount(a.Amount),
		Status:    uint8(a.Status),
		CreatedAt: toUnsigned(a.CreatedAt),
	}
}

func decodeApplication(s *storedApplication) *LoanApplication {
	return &LoanApplication{
		ID:        s.ID,
		CardID:    s.CardID,
		CardKind:  CardKind(s.CardKind),
		Applicant: s.Applicant,
		Amount:    cloneAmount(s.Amount),
		Status:    ApplicationStatus(s.Status),
		CreatedAt: int64(s.CreatedAt),
	}
}

func encodePayment(p Payment) storedPayment {
	return storedPayment{
		LoanID:      p.LoanID,
		Installment: p.Installment,
		Amount:      cloneAmount(p.Amount),
		PaidAt:      toUnsigned(p.PaidAt),
		OnTime:      p.OnTime,
	}
}

func decodePayment(s storedPayment) Payment {
	return Payment{
		LoanID:      s.LoanID,
		Installment: s.Installment,
		Amount:      cloneAmount(s.Amount),
		PaidAt:      int64(s.PaidAt),
		OnTime:      s.OnTime,
	}
}
