package creditscore

import (
	"errors"
	"math/big"
	"time"

	"peerlend/core/events"
	"peerlend/core/types"
	nativecommon "peerlend/native/common"
)

var (
	errNilEngine         = errors.New("creditscore engine: engine not initialised")
	errNotAdmin          = errors.New("creditscore engine: caller is not the admin")
	errNotLoanModule     = errors.New("creditscore engine: caller is not the loan module")
	errLoanModuleUnset   = errors.New("creditscore engine: loan module not configured")
	errAdminUnset        = errors.New("creditscore engine: admin not configured")
	errInvalidBorrowArgs = errors.New("creditscore engine: amount must be positive")
)

// Borrow limits applied by the policy gate, in base units.
var (
	borrowLimitMedium  = big.NewInt(50_000)
	borrowLimitHigh    = big.NewInt(10_000)
	borrowLimitUnknown = big.NewInt(5_000)
)

const moduleName = "creditscore"

type scoreEvent struct {
	evt *types.Event
}

func (e scoreEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e scoreEvent) Event() *types.Event { return e.evt }

// Engine blends ledger payment behaviour with off-ledger attestations into a
// bounded credit rating and guards the append-only payment history.
type Engine struct {
	ledger  *Ledger
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine constructs a scoring engine backed by the provided storage.
func NewEngine(store Storage) *Engine {
	return &Engine{
		ledger:  NewLedger(store),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the logical clock. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
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
	e.emitter.Emit(scoreEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Initialize records the module admin. Subsequent loan-module rewires require
// this principal.
func (e *Engine) Initialize(admin [20]byte) error {
	if e == nil || e.ledger == nil || e.ledger.store == nil {
		return errNilEngine
	}
	return e.ledger.store.KVPut(adminKey, &admin)
}

// SetLoanModule designates the loan-management principal authorised to record
// payments. Admin only.
func (e *Engine) SetLoanModule(caller, module [20]byte) error {
	if e == nil || e.ledger == nil || e.ledger.store == nil {
		return errNilEngine
	}
	var admin [20]byte
	ok, err := e.ledger.store.KVGet(adminKey, &admin)
	if err != nil {
		return err
	}
	if !ok {
		return errAdminUnset
	}
	if caller != admin {
		return errNotAdmin
	}
	return e.ledger.store.KVPut(loanModuleKey, &module)
}

// UpdateScore recomputes and persists the subject's credit score from their
// full payment history and the supplied attestations. First-time subjects are
// initialised with score zero and High risk before recomputation. The caller
// is the subject; the host has already authenticated the invocation.
func (e *Engine) UpdateScore(subject [20]byte, data OffChainData, bureauScore uint32) (*CreditScore, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilEngine
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}

	score, ok, err := e.ledger.Score(subject)
	if err != nil {
		return nil, err
	}
	if !ok {
		score = &CreditScore{
			Subject:     subject,
			Score:       0,
			Risk:        RiskHigh,
			LastUpdated: e.now(),
		}
	}

	history, err := e.ledger.History(subject)
	if err != nil {
		return nil, err
	}

	onChain := OnChainScore(history, TotalVolume(history))
	offChain := OffChainScore(data, bureauScore)
	final := FinalScore(onChain, offChain)

	score.OnChainScore = onChain
	score.OffChainScore = offChain
	score.Score = final
	score.Risk = TierFor(final)
	score.PaymentCount = uint32(len(history))
	score.LastUpdated = e.now()

	if err := e.ledger.PutScore(score); err != nil {
		return nil, err
	}
	e.emit(NewScoreUpdatedEvent(score))
	return score.Clone(), nil
}

// RecordPayment appends a payment record to the subject's history and bumps
// the transaction counters on an existing score. The score itself is not
// recomputed; that is a separate, explicitly invoked operation. Only the
// configured loan-management principal may call this.
func (e *Engine) RecordPayment(caller, subject [20]byte, loanID uint64, amount *big.Int, onTime bool) error {
	if e == nil || e.ledger == nil || e.ledger.store == nil {
		return errNilEngine
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	var module [20]byte
	ok, err := e.ledger.store.KVGet(loanModuleKey, &module)
	if err != nil {
		return err
	}
	if !ok {
		return errLoanModuleUnset
	}
	if caller != module {
		return errNotLoanModule
	}

	record := PaymentRecord{
		LoanID:    loanID,
		Amount:    amount,
		OnTime:    onTime,
		Timestamp: e.now(),
	}
	if err := e.ledger.AppendPayment(subject, record); err != nil {
		return err
	}

	score, ok, err := e.ledger.Score(subject)
	if err != nil {
		return err
	}
	if ok {
		score.TotalTransactions++
		if !onTime {
			score.DefaultCount++
		}
		if err := e.ledger.PutScore(score); err != nil {
			return err
		}
	}

	e.emit(NewPaymentRecordedEvent(subject, record))
	return nil
}

// CanBorrow is the policy gate deciding whether the subject may take on a loan
// of the given amount. It never mutates state: Low risk borrows freely,
// Medium up to 50k units, High up to 10k, and subjects without a score up to
// 5k (boundaries inclusive).
func (e *Engine) CanBorrow(subject [20]byte, amount *big.Int) (bool, error) {
	if e == nil || e.ledger == nil {
		return false, errNilEngine
	}
	if amount == nil || amount.Sign() <= 0 {
		return false, errInvalidBorrowArgs
	}
	score, ok, err := e.ledger.Score(subject)
	if err != nil {
		return false, err
	}
	if !ok {
		return amount.Cmp(borrowLimitUnknown) <= 0, nil
	}
	switch score.Risk {
	case RiskLow:
		return true, nil
	case RiskMedium:
		return amount.Cmp(borrowLimitMedium) <= 0, nil
	default:
		return amount.Cmp(borrowLimitHigh) <= 0, nil
	}
}

// Score returns the persisted credit score for subject, if any.
func (e *Engine) Score(subject [20]byte) (*CreditScore, bool, error) {
	if e == nil || e.ledger == nil {
		return nil, false, errNilEngine
	}
	return e.ledger.Score(subject)
}

// PaymentHistory returns the ordered payment history for subject.
func (e *Engine) PaymentHistory(subject [20]byte) ([]PaymentRecord, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilEngine
	}
	return e.ledger.History(subject)
}
