package treasury

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"peerlend/core/events"
	"peerlend/core/types"
	nativecommon "peerlend/native/common"
)

var (
	errNilState            = errors.New("treasury engine: state not configured")
	errNotInitialised      = errors.New("treasury engine: fee config not initialised")
	errAdminUnset          = errors.New("treasury engine: admin not configured")
	errNotAdmin            = errors.New("treasury engine: caller is not the admin")
	errInvalidAmount       = errors.New("treasury engine: amount must be positive")
	errExceedsWithdrawal   = errors.New("treasury engine: amount exceeds withdrawable balance")
	errNegativeFundBalance = errors.New("treasury engine: protection fund balance must be non-negative")
)

// claimCoveragePercent bounds an insurance payout to a share of the claimed
// amount before the fund-balance cap applies.
const claimCoveragePercent = 80

const moduleName = "treasury"

var (
	feeConfigKey = []byte("treasury/fee-config")
	fundKey      = []byte("treasury/protection-fund")
	adminKey     = []byte("treasury/admin")
	claimPrefix  = []byte("treasury/claim/")
)

func claimKey(loanID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", claimPrefix, loanID))
}

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	GetAccount(addr [20]byte) (*types.Account, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

type storedFeeConfig struct {
	TransactionFeeBps uint32
	GasFeeBps         uint32
	LastUpdated       uint64
}

type storedProtectionFund struct {
	TotalBalance *big.Int
	TotalClaims  uint32
	ActiveClaims uint32
}

type treasuryEvent struct {
	evt *types.Event
}

func (e treasuryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e treasuryEvent) Event() *types.Event { return e.evt }

// Engine runs the protocol treasury: basis-point fee collection, the pooled
// protection fund and bounded insurance payouts. The fund can never be
// double-spent: a payout is capped by the fund's own balance and discretionary
// withdrawal is walled off from the fund principal.
type Engine struct {
	state         engineState
	moduleAddress [20]byte
	emitter       events.Emitter
	nowFn         func() int64
	pauses        nativecommon.PauseView
}

// NewEngine constructs a treasury engine bound to the module account that
// holds collected fees and the protection fund principal.
func NewEngine(moduleAddr [20]byte) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the logical clock. Primarily intended for tests.
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
	e.emitter.Emit(treasuryEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// ModuleAddress returns the treasury's ledger account.
func (e *Engine) ModuleAddress() [20]byte {
	if e == nil {
		return [20]byte{}
	}
	return e.moduleAddress
}

// Initialize seeds the admin, the fee configuration and an empty protection
// fund. Invoked once at genesis.
func (e *Engine) Initialize(admin [20]byte, transactionFeeBps, gasFeeBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	cfg := FeeConfig{
		TransactionFeeBps: transactionFeeBps,
		GasFeeBps:         gasFeeBps,
		LastUpdated:       e.now(),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.state.KVPut(adminKey, &admin); err != nil {
		return err
	}
	if err := e.putFeeConfig(cfg); err != nil {
		return err
	}
	return e.putFund(&ProtectionFund{TotalBalance: big.NewInt(0)})
}

// CollectTransactionFee charges the configured transaction fee on amount,
// moving it from the payer into the treasury. The computed fee is returned.
func (e *Engine) CollectTransactionFee(payer [20]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	cfg, err := e.feeConfig()
	if err != nil {
		return nil, err
	}
	fee := cfg.TransactionFee(amount)
	if err := e.state.Transfer(payer, e.moduleAddress, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

// CollectGasFee charges the configured gas fee on amount and routes it into
// the protection fund, the fund's only inflow besides voluntary
// contributions. The computed fee is returned.
func (e *Engine) CollectGasFee(payer [20]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	cfg, err := e.feeConfig()
	if err != nil {
		return nil, err
	}
	fee := cfg.GasFee(amount)
	if err := e.state.Transfer(payer, e.moduleAddress, fee); err != nil {
		return nil, err
	}
	fund, err := e.fund()
	if err != nil {
		return nil, err
	}
	fund.TotalBalance = new(big.Int).Add(fund.TotalBalance, fee)
	if err := e.putFund(fund); err != nil {
		return nil, err
	}
	return fee, nil
}

// ClaimProtection pays a bounded insurance claim to the lender of a defaulted
// loan. The payout covers at most 80% of the claimed amount and never exceeds
// the fund balance. An underfunded claim returns false without mutating any
// state. Whether the referenced loan actually defaulted is an external
// precondition the caller enforces.
func (e *Engine) ClaimProtection(lender [20]byte, loanID uint64, amount *big.Int) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return false, errInvalidAmount
	}

	fund, err := e.fund()
	if err != nil {
		return false, err
	}
	if fund.TotalBalance.Cmp(amount) < 0 {
		return false, nil
	}

	coverage := new(big.Int).Mul(amount, big.NewInt(claimCoveragePercent))
	coverage.Quo(coverage, big.NewInt(100))
	payout := coverage
	if payout.Cmp(fund.TotalBalance) > 0 {
		payout = new(big.Int).Set(fund.TotalBalance)
	}

	if err := e.state.Transfer(e.moduleAddress, lender, payout); err != nil {
		return false, err
	}

	fund.TotalBalance = new(big.Int).Sub(fund.TotalBalance, payout)
	fund.TotalClaims++
	fund.ActiveClaims++
	if err := e.putFund(fund); err != nil {
		return false, err
	}
	if err := e.state.KVPut(claimKey(loanID), payout); err != nil {
		return false, err
	}

	e.emit(NewClaimPaidEvent(lender, loanID, amount, payout))
	return true, nil
}

// Claim returns the recorded payout for the loan, if a claim was paid.
func (e *Engine) Claim(loanID uint64) (*big.Int, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	payout := new(big.Int)
	ok, err := e.state.KVGet(claimKey(loanID), payout)
	if err != nil || !ok {
		return nil, false, err
	}
	return payout, true, nil
}

// WithdrawFees releases accumulated fees to the recipient. The protection
// fund principal is structurally walled off: only the slice of the treasury
// balance above the fund may be withdrawn. Admin only.
func (e *Engine) WithdrawFees(caller, recipient [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	fund, err := e.fund()
	if err != nil {
		return err
	}
	account, err := e.state.GetAccount(e.moduleAddress)
	if err != nil {
		return err
	}
	available := new(big.Int).Sub(account.Balance, fund.TotalBalance)
	if amount.Cmp(available) > 0 {
		return errExceedsWithdrawal
	}

	if err := e.state.Transfer(e.moduleAddress, recipient, amount); err != nil {
		return err
	}
	e.emit(NewFeesWithdrawnEvent(recipient, amount))
	return nil
}

// AddToProtectionFund accepts a voluntary contribution into the fund from any
// account.
func (e *Engine) AddToProtectionFund(from [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := e.state.Transfer(from, e.moduleAddress, amount); err != nil {
		return err
	}
	fund, err := e.fund()
	if err != nil {
		return err
	}
	fund.TotalBalance = new(big.Int).Add(fund.TotalBalance, amount)
	if err := e.putFund(fund); err != nil {
		return err
	}
	e.emit(NewFundContributionEvent(from, amount))
	return nil
}

// UpdateFees replaces the fee configuration. Admin only.
func (e *Engine) UpdateFees(caller [20]byte, transactionFeeBps, gasFeeBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	cfg := FeeConfig{
		TransactionFeeBps: transactionFeeBps,
		GasFeeBps:         gasFeeBps,
		LastUpdated:       e.now(),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.putFeeConfig(cfg); err != nil {
		return err
	}
	e.emit(NewFeesUpdatedEvent(cfg))
	return nil
}

// Fees returns the current fee configuration.
func (e *Engine) Fees() (FeeConfig, error) {
	if e == nil || e.state == nil {
		return FeeConfig{}, errNilState
	}
	return e.feeConfig()
}

// ProtectionFund returns the current fund state.
func (e *Engine) ProtectionFund() (*ProtectionFund, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.fund()
}

// TransferAdmin hands the admin role to a new principal. Admin only.
func (e *Engine) TransferAdmin(caller, newAdmin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	return e.state.KVPut(adminKey, &newAdmin)
}

func (e *Engine) requireAdmin(caller [20]byte) error {
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
	return nil
}

func (e *Engine) feeConfig() (FeeConfig, error) {
	var stored storedFeeConfig
	ok, err := e.state.KVGet(feeConfigKey, &stored)
	if err != nil {
		return FeeConfig{}, err
	}
	if !ok {
		return FeeConfig{}, errNotInitialised
	}
	return FeeConfig{
		TransactionFeeBps: stored.TransactionFeeBps,
		GasFeeBps:         stored.GasFeeBps,
		LastUpdated:       int64(stored.LastUpdated),
	}, nil
}

func (e *Engine) putFeeConfig(cfg FeeConfig) error {
	stored := storedFeeConfig{
		TransactionFeeBps: cfg.TransactionFeeBps,
		GasFeeBps:         cfg.GasFeeBps,
	}
	if cfg.LastUpdated > 0 {
		stored.LastUpdated = uint64(cfg.LastUpdated)
	}
	return e.state.KVPut(feeConfigKey, &stored)
}

func (e *Engine) fund() (*ProtectionFund, error) {
	var stored storedProtectionFund
	ok, err := e.state.KVGet(fundKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotInitialised
	}
	balance := stored.TotalBalance
	if balance == nil {
		balance = big.NewInt(0)
	}
	return &ProtectionFund{
		TotalBalance: new(big.Int).Set(balance),
		TotalClaims:  stored.TotalClaims,
		ActiveClaims: stored.ActiveClaims,
	}, nil
}

func (e *Engine) putFund(fund *ProtectionFund) error {
	sanitized := fund.Clone()
	if sanitized.TotalBalance.Sign() < 0 {
		return errNegativeFundBalance
	}
	stored := storedProtectionFund{
		TotalBalance: sanitized.TotalBalance,
		TotalClaims:  sanitized.TotalClaims,
		ActiveClaims: sanitized.ActiveClaims,
	}
	return e.state.KVPut(fundKey, &stored)
}
