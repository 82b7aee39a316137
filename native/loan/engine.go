package loan

import (
	"errors"
	"math/big"
	"time"

	"peerlend/core/events"
	"peerlend/core/types"
	nativecommon "peerlend/native/common"
)

var (
	errNilState            = errors.New("loan engine: state not configured")
	errFeeCollectorUnset   = errors.New("loan engine: fee collector not configured")
	errAdminUnset          = errors.New("loan engine: admin not configured")
	errLoanNotFound        = errors.New("loan engine: loan not found")
	errCardNotFound        = errors.New("loan engine: card not found")
	errApplicationNotFound = errors.New("loan engine: application not found")
	errNotCardOwner        = errors.New("loan engine: caller is not the card owner")
	errNotBorrower         = errors.New("loan engine: caller is not the borrower")
	errNotAdmin            = errors.New("loan engine: caller is not the admin")
	errInvalidAmount       = errors.New("loan engine: amount must be positive")
	errInvalidBounds       = errors.New("loan engine: card amount bounds invalid")
	errInvalidInstallments = errors.New("loan engine: installment count must be positive")
	errInvalidCardKind     = errors.New("loan engine: unknown card kind")
	errAmountOutOfRange    = errors.New("loan engine: amount outside card bounds")
	errBorrowLimitExceeded = errors.New("loan engine: amount exceeds borrow limit for risk tier")
	errCardInactive        = errors.New("loan engine: card is not active")
	errCardAlreadyFunded   = errors.New("loan engine: card already funded")
	errApplicationSettled  = errors.New("loan engine: application already settled")
	errLoanNotActive       = errors.New("loan engine: loan not active")
	errGracePeriodActive   = errors.New("loan engine: grace period not expired")
)

var basisPoints = big.NewInt(10_000)

const (
	daySeconds          = 86_400
	defaultPaymentCycle = 30 * daySeconds
	onTimeGraceSeconds  = daySeconds
	defaultGraceSeconds = 7 * daySeconds
	governanceFeeBps    = 50
)

const moduleName = "loan"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Transfer(from, to [20]byte, amount *big.Int) error
}

// ScoreKeeper is the credit-scoring capability the lifecycle manager depends
// on: a read-only borrow-limit gate plus payment reporting into the subject's
// history.
type ScoreKeeper interface {
	CanBorrow(subject [20]byte, amount *big.Int) (bool, error)
	RecordPayment(subject [20]byte, loanID uint64, amount *big.Int, onTime bool) error
}

type loanEvent struct {
	evt *types.Event
}

func (e loanEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e loanEvent) Event() *types.Event { return e.evt }

// Engine orchestrates card listings, applications, loan issuance, amortized
// repayment and default marking. Every operation validates authorization and
// referenced records before the first state write so a failed invocation
// leaves no partial state behind.
type Engine struct {
	state        engineState
	scores       ScoreKeeper
	feeCollector [20]byte
	emitter      events.Emitter
	nowFn        func() int64
	pauses       nativecommon.PauseView
}

// NewEngine creates a loan engine with a no-op emitter. Callers wire the state
// backend, score keeper and fee collector before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetScoreKeeper wires the credit-scoring capability.
func (e *Engine) SetScoreKeeper(scores ScoreKeeper) {
	if e == nil {
		return
	}
	e.scores = scores
}

// SetFeeCollector configures the treasury address receiving the governance
// fee charged on loan issuance.
func (e *Engine) SetFeeCollector(addr [20]byte) { e.feeCollector = addr }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the logical clock used for schedules and grace
// periods. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPauses wires the governance pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(loanEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Initialize seeds the module admin and the identifier counters. Invoked once
// at genesis.
func (e *Engine) Initialize(admin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.state.KVPut(adminKey, &admin); err != nil {
		return err
	}
	one := uint64(1)
	for _, key := range [][]byte{nextLoanIDKey, nextCardIDKey, nextAppIDKey} {
		if err := e.state.KVPut(key, one); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) nextID(key []byte) (uint64, error) {
	var id uint64
	ok, err := e.state.KVGet(key, &id)
	if err != nil {
		return 0, err
	}
	if !ok || id == 0 {
		id = 1
	}
	return id, nil
}

// bumpID advances the counter only after the creation it numbered succeeded.
func (e *Engine) bumpID(key []byte, id uint64) error {
	return e.state.KVPut(key, id+1)
}

// CreateInvestmentCard lists a lender's standing offer and returns the
// allocated card id.
func (e *Engine) CreateInvestmentCard(investor [20]byte, maxAmount, minAmount *big.Int, rateBps, maxInstallments, targetRiskTier uint32) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if minAmount == nil || maxAmount == nil || minAmount.Sign() <= 0 || maxAmount.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if minAmount.Cmp(maxAmount) > 0 {
		return 0, errInvalidBounds
	}
	if maxInstallments == 0 {
		return 0, errInvalidInstallments
	}

	cardID, err := e.nextID(nextCardIDKey)
	if err != nil {
		return 0, err
	}
	card := &InvestmentCard{
		ID:              cardID,
		Investor:        investor,
		MaxAmount:       new(big.Int).Set(maxAmount),
		MinAmount:       new(big.Int).Set(minAmount),
		InterestRateBps: rateBps,
		MaxInstallments: maxInstallments,
		TargetRiskTier:  targetRiskTier,
		IsActive:        true,
		TotalInvested:   big.NewInt(0),
		CreatedAt:       e.now(),
	}
	if err := e.state.KVPut(invCardKey(cardID), encodeInvestmentCard(card)); err != nil {
		return 0, err
	}
	if err := e.bumpID(nextCardIDKey, cardID); err != nil {
		return 0, err
	}
	e.emit(NewCardCreatedEvent(cardID, investor, CardInvestment, card.CreatedAt))
	return cardID, nil
}

// CreateRequestCard lists a borrower's credit request and returns the
// allocated card id.
func (e *Engine) CreateRequestCard(borrower [20]byte, requestedAmount *big.Int, desiredInstallments uint32, schedule []int64, description string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if requestedAmount == nil || requestedAmount.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if desiredInstallments == 0 {
		return 0, errInvalidInstallments
	}

	cardID, err := e.nextID(nextCardIDKey)
	if err != nil {
		return 0, err
	}
	card := &RequestCard{
		ID:                  cardID,
		Borrower:            borrower,
		RequestedAmount:     new(big.Int).Set(requestedAmount),
		DesiredInstallments: desiredInstallments,
		Schedule:            append([]int64(nil), schedule...),
		Description:         description,
		IsActive:            true,
		CreatedAt:           e.now(),
	}
	if err := e.state.KVPut(reqCardKey(cardID), encodeRequestCard(card)); err != nil {
		return 0, err
	}
	if err := e.bumpID(nextCardIDKey, cardID); err != nil {
		return 0, err
	}
	e.emit(NewCardCreatedEvent(cardID, borrower, CardRequest, card.CreatedAt))
	return cardID, nil
}

// ApplyToInvestmentCard files a borrower's application against an investment
// card. The amount must fall within the card bounds and pass the borrow-limit
// gate for the applicant's risk tier.
func (e *Engine) ApplyToInvestmentCard(borrower [20]byte, cardID uint64, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, errInvalidAmount
	}

	card, err := e.loadInvestmentCard(cardID)
	if err != nil {
		return 0, err
	}
	if !card.IsActive {
		return 0, errCardInactive
	}
	if amount.Cmp(card.MinAmount) < 0 || amount.Cmp(card.MaxAmount) > 0 {
		return 0, errAmountOutOfRange
	}
	if e.scores != nil {
		allowed, err := e.scores.CanBorrow(borrower, amount)
		if err != nil {
			return 0, err
		}
		if !allowed {
			return 0, errBorrowLimitExceeded
		}
	}

	appID, err := e.nextID(nextAppIDKey)
	if err != nil {
		return 0, err
	}
	application := &LoanApplication{
		ID:        appID,
		CardID:    cardID,
		CardKind:  CardInvestment,
		Applicant: borrower,
		Amount:    new(big.Int).Set(amount),
		Status:    ApplicationPending,
		CreatedAt: e.now(),
	}
	if err := e.state.KVPut(appKey(appID), encodeApplication(application)); err != nil {
		return 0, err
	}
	if err := e.bumpID(nextAppIDKey, appID); err != nil {
		return 0, err
	}
	e.emit(NewApplicationSubmittedEvent(application))
	return appID, nil
}

// ApproveApplication lets the card's investor approve a pending application,
// issuing the loan with the supplied installment plan. Returns the new loan
// id.
func (e *Engine) ApproveApplication(caller [20]byte, appID uint64, installments uint32, schedule []int64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}

	application, err := e.loadApplication(appID)
	if err != nil {
		return 0, err
	}
	if application.Status != ApplicationPending {
		return 0, errApplicationSettled
	}
	card, err := e.loadInvestmentCard(application.CardID)
	if err != nil {
		return 0, err
	}
	if caller != card.Investor {
		return 0, errNotCardOwner
	}

	loanID, err := e.createLoan(application.Applicant, card.Investor, application.Amount, card.InterestRateBps, installments, schedule)
	if err != nil {
		return 0, err
	}

	application.Status = ApplicationApproved
	if err := e.state.KVPut(appKey(appID), encodeApplication(application)); err != nil {
		return 0, err
	}
	card.TotalInvested = new(big.Int).Add(card.TotalInvested, application.Amount)
	if err := e.state.KVPut(invCardKey(card.ID), encodeInvestmentCard(card)); err != nil {
		return 0, err
	}
	e.emit(NewApplicationApprovedEvent(application, loanID))
	return loanID, nil
}

// RejectApplication lets the card's investor reject a pending application.
// Rejected is terminal.
func (e *Engine) RejectApplication(caller [20]byte, appID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	application, err := e.loadApplication(appID)
	if err != nil {
		return err
	}
	if application.Status != ApplicationPending {
		return errApplicationSettled
	}
	card, err := e.loadInvestmentCard(application.CardID)
	if err != nil {
		return err
	}
	if caller != card.Investor {
		return errNotCardOwner
	}

	application.Status = ApplicationRejected
	if err := e.state.KVPut(appKey(appID), encodeApplication(application)); err != nil {
		return err
	}
	e.emit(NewApplicationRejectedEvent(application))
	return nil
}

// FundRequestCard lets a lender fund a borrower's request card at the offered
// rate. Funded cards are terminal and can never be funded again.
func (e *Engine) FundRequestCard(lender [20]byte, cardID uint64, rateBps uint32) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}

	card, err := e.loadRequestCard(cardID)
	if err != nil {
		return 0, err
	}
	if !card.IsActive {
		return 0, errCardInactive
	}
	if card.IsFunded {
		return 0, errCardAlreadyFunded
	}

	loanID, err := e.createLoan(card.Borrower, lender, card.RequestedAmount, rateBps, card.DesiredInstallments, card.Schedule)
	if err != nil {
		return 0, err
	}

	card.IsFunded = true
	if err := e.state.KVPut(reqCardKey(cardID), encodeRequestCard(card)); err != nil {
		return 0, err
	}
	return loanID, nil
}

// createLoan is the shared issuance routine. The interest-bearing total is
// split with integer division; the truncated remainder stays with the
// borrower rather than being folded into the last installment. The loan
// counter advances only after the principal and fee transfers succeeded.
func (e *Engine) createLoan(borrower, lender [20]byte, principal *big.Int, rateBps uint32, installments uint32, schedule []int64) (uint64, error) {
	if principal == nil || principal.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if installments == 0 {
		return 0, errInvalidInstallments
	}
	if e.feeCollector == ([20]byte{}) {
		return 0, errFeeCollectorUnset
	}

	loanID, err := e.nextID(nextLoanIDKey)
	if err != nil {
		return 0, err
	}

	interest := new(big.Int).Mul(principal, new(big.Int).SetUint64(uint64(rateBps)))
	interest.Quo(interest, basisPoints)
	total := new(big.Int).Add(principal, interest)
	installmentAmount := new(big.Int).Quo(total, new(big.Int).SetUint64(uint64(installments)))

	now := e.now()
	nextDue := now + defaultPaymentCycle
	if len(schedule) > 0 {
		nextDue = schedule[0]
	}

	if err := e.state.Transfer(lender, borrower, principal); err != nil {
		return 0, err
	}
	fee := new(big.Int).Mul(principal, big.NewInt(governanceFeeBps))
	fee.Quo(fee, basisPoints)
	if err := e.state.Transfer(lender, e.feeCollector, fee); err != nil {
		return 0, err
	}

	loan := &Loan{
		ID:                loanID,
		Borrower:          borrower,
		Lender:            lender,
		Principal:         new(big.Int).Set(principal),
		InterestRateBps:   rateBps,
		Installments:      installments,
		InstallmentAmount: installmentAmount,
		PaidInstallments:  0,
		TotalPaid:         big.NewInt(0),
		Status:            StatusActive,
		CreatedAt:         now,
		NextPaymentDue:    nextDue,
		Schedule:          append([]int64(nil), schedule...),
	}
	if err := e.state.KVPut(loanKey(loanID), encodeLoan(loan)); err != nil {
		return 0, err
	}
	if err := e.bumpID(nextLoanIDKey, loanID); err != nil {
		return 0, err
	}
	e.emit(NewLoanCreatedEvent(loan))
	return loanID, nil
}

// MakePayment settles the next installment of an active loan. The on-time
// determination allows one full day past the due date. Returns whether the
// loan is now completed.
func (e *Engine) MakePayment(caller [20]byte, loanID uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, err
	}

	loan, err := e.loadLoan(loanID)
	if err != nil {
		return false, err
	}
	if caller != loan.Borrower {
		return false, errNotBorrower
	}
	if loan.Status != StatusActive {
		return false, errLoanNotActive
	}

	now := e.now()
	onTime := now <= loan.NextPaymentDue+onTimeGraceSeconds

	if err := e.state.Transfer(loan.Borrower, loan.Lender, loan.InstallmentAmount); err != nil {
		return false, err
	}

	loan.PaidInstallments++
	loan.TotalPaid = new(big.Int).Add(loan.TotalPaid, loan.InstallmentAmount)

	payment := Payment{
		LoanID:      loanID,
		Installment: loan.PaidInstallments,
		Amount:      new(big.Int).Set(loan.InstallmentAmount),
		PaidAt:      now,
		OnTime:      onTime,
	}
	if err := e.appendPayment(loanID, payment); err != nil {
		return false, err
	}

	if loan.PaidInstallments < loan.Installments {
		next := now + defaultPaymentCycle
		if idx := int(loan.PaidInstallments); idx < len(loan.Schedule) {
			next = loan.Schedule[idx]
		}
		loan.NextPaymentDue = next
	} else {
		loan.Status = StatusCompleted
		e.emit(NewLoanCompletedEvent(loan))
	}

	if err := e.state.KVPut(loanKey(loanID), encodeLoan(loan)); err != nil {
		return false, err
	}

	if e.scores != nil {
		if err := e.scores.RecordPayment(loan.Borrower, loanID, payment.Amount, onTime); err != nil {
			return false, err
		}
	}

	e.emit(NewPaymentMadeEvent(loan, payment))
	return loan.Status == StatusCompleted, nil
}

// MarkDefaulted transitions an active loan to Defaulted once the missed due
// date is more than the seven-day grace period in the past. Admin only;
// Defaulted is terminal.
func (e *Engine) MarkDefaulted(caller [20]byte, loanID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	var admin [20]byte
	ok, err := e.state.KVGet(adminKey, &admin)
	if err != nil {
		return err
	}
	if !ok {
		return errAdminUnset
	}
	if caller != admin {
		return errNotAdmin
	}

	loan, err := e.loadLoan(loanID)
	if err != nil {
		return err
	}
	if loan.Status != StatusActive {
		return errLoanNotActive
	}
	if e.now() <= loan.NextPaymentDue+defaultGraceSeconds {
		return errGracePeriodActive
	}

	loan.Status = StatusDefaulted
	if err := e.state.KVPut(loanKey(loanID), encodeLoan(loan)); err != nil {
		return err
	}
	e.emit(NewLoanDefaultedEvent(loan))
	return nil
}

// CancelCard deactivates a card. Only the card owner may cancel; cancelling an
// already-inactive card is accepted silently.
func (e *Engine) CancelCard(caller [20]byte, cardID uint64, kind CardKind) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	switch kind {
	case CardInvestment:
		card, err := e.loadInvestmentCard(cardID)
		if err != nil {
			return err
		}
		if caller != card.Investor {
			return errNotCardOwner
		}
		card.IsActive = false
		return e.state.KVPut(invCardKey(cardID), encodeInvestmentCard(card))
	case CardRequest:
		card, err := e.loadRequestCard(cardID)
		if err != nil {
			return err
		}
		if caller != card.Borrower {
			return errNotCardOwner
		}
		card.IsActive = false
		return e.state.KVPut(reqCardKey(cardID), encodeRequestCard(card))
	default:
		return errInvalidCardKind
	}
}

// Loan returns the stored loan for the id, if present.
func (e *Engine) Loan(loanID uint64) (*Loan, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedLoan
	ok, err := e.state.KVGet(loanKey(loanID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return decodeLoan(&stored), true, nil
}

// InvestmentCard returns the stored investment card for the id, if present.
func (e *Engine) InvestmentCard(cardID uint64) (*InvestmentCard, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedInvestmentCard
	ok, err := e.state.KVGet(invCardKey(cardID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return decodeInvestmentCard(&stored), true, nil
}

// RequestCard returns the stored request card for the id, if present.
func (e *Engine) RequestCard(cardID uint64) (*RequestCard, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedRequestCard
	ok, err := e.state.KVGet(reqCardKey(cardID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return decodeRequestCard(&stored), true, nil
}

// Application returns the stored application for the id, if present.
func (e *Engine) Application(appID uint64) (*LoanApplication, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var stored storedApplication
	ok, err := e.state.KVGet(appKey(appID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return decodeApplication(&stored), true, nil
}

// Payments returns the ordered installment payments recorded for the loan.
func (e *Engine) Payments(loanID uint64) ([]Payment, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var stored []storedPayment
	ok, err := e.state.KVGet(paymentsKey(loanID), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	payments := make([]Payment, 0, len(stored))
	for _, record := range stored {
		payments = append(payments, decodePayment(record))
	}
	return payments, nil
}

func (e *Engine) loadLoan(loanID uint64) (*Loan, error) {
	var stored storedLoan
	ok, err := e.state.KVGet(loanKey(loanID), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	return SanitizeLoan(decodeLoan(&stored))
}

func (e *Engine) loadInvestmentCard(cardID uint64) (*InvestmentCard, error) {
	var stored storedInvestmentCard
	ok, err := e.state.KVGet(invCardKey(cardID), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errCardNotFound
	}
	return decodeInvestmentCard(&stored), nil
}

func (e *Engine) loadRequestCard(cardID uint64) (*RequestCard, error) {
	var stored storedRequestCard
	ok, err := e.state.KVGet(reqCardKey(cardID), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errCardNotFound
	}
	return decodeRequestCard(&stored), nil
}

func (e *Engine) loadApplication(appID uint64) (*LoanApplication, error) {
	var stored storedApplication
	ok, err := e.state.KVGet(appKey(appID), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errApplicationNotFound
	}
	return decodeApplication(&stored), nil
}

func (e *Engine) appendPayment(loanID uint64, payment Payment) error {
	var stored []storedPayment
	if _, err := e.state.KVGet(paymentsKey(loanID), &stored); err != nil {
		return err
	}
	stored = append(stored, encodePayment(payment))
	return e.state.KVPut(paymentsKey(loanID), stored)
}
