package creditscore

import (
	"errors"
	"fmt"
	"math/big"
)

// Storage abstracts the subset of state manager functionality required by the
// score ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	scorePrefix   = []byte("creditscore/score/")
	historyPrefix = []byte("creditscore/history/")
	adminKey      = []byte("creditscore/admin")
	loanModuleKey = []byte("creditscore/loan-module")
)

func scoreKey(subject [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", scorePrefix, subject))
}

func historyKey(subject [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", historyPrefix, subject))
}

var (
	errLedgerNotInitialised = errors.New("creditscore: ledger not initialised")
	errNilScore             = errors.New("creditscore: score required")
)

// Ledger persists credit scores and the append-only payment history per
// subject.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

type storedCreditScore struct {
	Subject           [20]byte
	Score             uint32
	Risk              uint8
	OnChainScore      uint32
	OffChainScore     uint32
	PaymentCount      uint32
	TotalTransactions uint32
	DefaultCount      uint32
	LastUpdated       uint64
}

type storedPaymentRecord struct {
	LoanID    uint64
	Amount    *big.Int
	OnTime    bool
	Timestamp uint64
}

// Score retrieves the persisted score for subject.
func (l *Ledger) Score(subject [20]byte) (*CreditScore, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, errLedgerNotInitialised
	}
	var stored storedCreditScore
	ok, err := l.store.KVGet(scoreKey(subject), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	score := &CreditScore{
		Subject:           stored.Subject,
		Score:             stored.Score,
		Risk:              RiskTier(stored.Risk),
		OnChainScore:      stored.OnChainScore,
		OffChainScore:     stored.OffChainScore,
		PaymentCount:      stored.PaymentCount,
		TotalTransactions: stored.TotalTransactions,
		DefaultCount:      stored.DefaultCount,
		LastUpdated:       int64(stored.LastUpdated),
	}
	return score, true, nil
}

// PutScore persists the score record, overwriting any previous value for the
// subject.
func (l *Ledger) PutScore(score *CreditScore) error {
	if l == nil || l.store == nil {
		return errLedgerNotInitialised
	}
	if score == nil {
		return errNilScore
	}
	if !score.Risk.Valid() {
		return fmt.Errorf("creditscore: invalid risk tier %d", score.Risk)
	}
	stored := storedCreditScore{
		Subject:           score.Subject,
		Score:             score.Score,
		Risk:              uint8(score.Risk),
		OnChainScore:      score.OnChainScore,
		OffChainScore:     score.OffChainScore,
		PaymentCount:      score.PaymentCount,
		TotalTransactions: score.TotalTransactions,
		DefaultCount:      score.DefaultCount,
	}
	if score.LastUpdated > 0 {
		stored.LastUpdated = uint64(score.LastUpdated)
	}
	return l.store.KVPut(scoreKey(score.Subject), &stored)
}

// History loads the ordered payment history for subject. A missing key yields
// an empty history.
func (l *Ledger) History(subject [20]byte) ([]PaymentRecord, error) {
	if l == nil || l.store == nil {
		return nil, errLedgerNotInitialised
	}
	var stored []storedPaymentRecord
	ok, err := l.store.KVGet(historyKey(subject), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	history := make([]PaymentRecord, 0, len(stored))
	for _, record := range stored {
		amount := record.Amount
		if amount == nil {
			amount = big.NewInt(0)
		}
		history = append(history, PaymentRecord{
			LoanID:    record.LoanID,
			Amount:    new(big.Int).Set(amount),
			OnTime:    record.OnTime,
			Timestamp: int64(record.Timestamp),
		})
	}
	return history, nil
}

// AppendPayment appends the record to the subject's history. Existing entries
// are never rewritten.
func (l *Ledger) AppendPayment(subject [20]byte, record PaymentRecord) error {
	if l == nil || l.store == nil {
		return errLedgerNotInitialised
	}
	if record.Amount != nil && record.Amount.Sign() < 0 {
		return fmt.Errorf("creditscore: payment amount must be non-negative")
	}
	var stored []storedPaymentRecord
	if _, err := l.store.KVGet(historyKey(subject), &stored); err != nil {
		return err
	}
	amount := record.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	entry := storedPaymentRecord{
		LoanID: record.LoanID,
		Amount: new(big.Int).Set(amount),
		OnTime: record.OnTime,
	}
	if record.Timestamp > 0 {
		entry.Timestamp = uint64(record.Timestamp)
	}
	stored = append(stored, entry)
	return l.store.KVPut(historyKey(subject), stored)
}
