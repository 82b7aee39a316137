package treasury

import (
	"errors"
	"math/big"
	"testing"

	"peerlend/core/state"
	"peerlend/storage"
)

func makeAddress(seed byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = seed
	}
	return addr
}

type testEnv struct {
	engine  *Engine
	manager *state.Manager
	admin   [20]byte
	module  [20]byte
	payer   [20]byte
	lender  [20]byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		manager: state.NewManager(storage.NewMemDB()),
		admin:   makeAddress(0x01),
		module:  makeAddress(0x02),
		payer:   makeAddress(0x03),
		lender:  makeAddress(0x04),
	}
	env.engine = NewEngine(env.module)
	env.engine.SetState(env.manager)
	env.engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	if err := env.engine.Initialize(env.admin, 100, 50); err != nil {
		t.Fatalf("initialize engine: %v", err)
	}
	env.fund(t, env.payer, 1_000_000)
	return env
}

func (env *testEnv) fund(t *testing.T, addr [20]byte, amount int64) {
	t.Helper()
	account, err := env.manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	account.Balance = big.NewInt(amount)
	if err := env.manager.PutAccount(addr, account); err != nil {
		t.Fatalf("store account: %v", err)
	}
}

func (env *testEnv) balance(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	account, err := env.manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	return account.Balance
}

func TestCollectTransactionFee(t *testing.T) {
	env := newTestEnv(t)

	fee, err := env.engine.CollectTransactionFee(env.payer, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if fee.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 1%% fee of 100, got %s", fee)
	}
	if got := env.balance(t, env.module); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected treasury balance 100, got %s", got)
	}

	// Transaction fees are revenue, not fund inflow.
	fund, err := env.engine.ProtectionFund()
	if err != nil {
		t.Fatalf("load fund: %v", err)
	}
	if fund.TotalBalance.Sign() != 0 {
		t.Fatalf("expected empty fund, got %s", fund.TotalBalance)
	}
}

func TestCollectGasFeeFeedsFund(t *testing.T) {
	env := newTestEnv(t)

	fee, err := env.engine.CollectGasFee(env.payer, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if fee.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected gas fee 50, got %s", fee)
	}
	fund, err := env.engine.ProtectionFund()
	if err != nil {
		t.Fatalf("load fund: %v", err)
	}
	if fund.TotalBalance.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected fund balance 50, got %s", fund.TotalBalance)
	}
}

func TestClaimProtectionPayout(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.AddToProtectionFund(env.payer, big.NewInt(50_000)); err != nil {
		t.Fatalf("seed fund: %v", err)
	}

	paid, err := env.engine.ClaimProtection(env.lender, 7, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !paid {
		t.Fatalf("expected claim paid")
	}
	// 80% coverage of the claimed amount.
	if got := env.balance(t, env.lender); got.Cmp(big.NewInt(8_000)) != 0 {
		t.Fatalf("expected lender payout 8000, got %s", got)
	}

	fund, err := env.engine.ProtectionFund()
	if err != nil {
		t.Fatalf("load fund: %v", err)
	}
	if fund.TotalBalance.Cmp(big.NewInt(42_000)) != 0 {
		t.Fatalf("expected fund balance 42000, got %s", fund.TotalBalance)
	}
	if fund.TotalClaims != 1 || fund.ActiveClaims != 1 {
		t.Fatalf("expected claim counters bumped, got %+v", fund)
	}

	payout, ok, err := env.engine.Claim(7)
	if err != nil || !ok {
		t.Fatalf("load claim: ok=%v err=%v", ok, err)
	}
	if payout.Cmp(big.NewInt(8_000)) != 0 {
		t.Fatalf("expected recorded payout 8000, got %s", payout)
	}
}

func TestClaimProtectionUnderfunded(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.AddToProtectionFund(env.payer, big.NewInt(5_000)); err != nil {
		t.Fatalf("seed fund: %v", err)
	}

	paid, err := env.engine.ClaimProtection(env.lender, 9, big.NewInt(6_000))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid {
		t.Fatalf("expected underfunded claim declined")
	}

	// A declined claim leaves no trace.
	fund, err := env.engine.ProtectionFund()
	if err != nil {
		t.Fatalf("load fund: %v", err)
	}
	if fund.TotalBalance.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("expected fund untouched, got %s", fund.TotalBalance)
	}
	if fund.TotalClaims != 0 {
		t.Fatalf("expected no claims counted, got %d", fund.TotalClaims)
	}
	if got := env.balance(t, env.lender); got.Sign() != 0 {
		t.Fatalf("expected no payout, got %s", got)
	}
	if _, ok, err := env.engine.Claim(9); err != nil || ok {
		t.Fatalf("expected no recorded claim, ok=%v err=%v", ok, err)
	}
}

func TestWithdrawFeesWallsOffFund(t *testing.T) {
	env := newTestEnv(t)
	recipient := makeAddress(0x10)

	// 500 in fees, 5_000 in the fund: only the fees are withdrawable.
	if _, err := env.engine.CollectTransactionFee(env.payer, big.NewInt(50_000)); err != nil {
		t.Fatalf("collect fees: %v", err)
	}
	if err := env.engine.AddToProtectionFund(env.payer, big.NewInt(5_000)); err != nil {
		t.Fatalf("seed fund: %v", err)
	}

	if err := env.engine.WithdrawFees(env.payer, recipient, big.NewInt(100)); !errors.Is(err, errNotAdmin) {
		t.Fatalf("expected errNotAdmin, got %v", err)
	}
	if err := env.engine.WithdrawFees(env.admin, recipient, big.NewInt(501)); !errors.Is(err, errExceedsWithdrawal) {
		t.Fatalf("expected errExceedsWithdrawal, got %v", err)
	}
	if err := env.engine.WithdrawFees(env.admin, recipient, big.NewInt(500)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := env.balance(t, recipient); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected recipient balance 500, got %s", got)
	}
	if got := env.balance(t, env.module); got.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("expected fund principal retained, got %s", got)
	}
}

func TestUpdateFees(t *testing.T) {
	env := newTestEnv(t)

	if err := env.engine.UpdateFees(env.payer, 200, 80); !errors.Is(err, errNotAdmin) {
		t.Fatalf("expected errNotAdmin, got %v", err)
	}
	if err := env.engine.UpdateFees(env.admin, 10_001, 80); err == nil {
		t.Fatalf("expected out-of-range bps rejected")
	}
	if err := env.engine.UpdateFees(env.admin, 200, 80); err != nil {
		t.Fatalf("update fees: %v", err)
	}

	cfg, err := env.engine.Fees()
	if err != nil {
		t.Fatalf("load fees: %v", err)
	}
	if cfg.TransactionFeeBps != 200 || cfg.GasFeeBps != 80 {
		t.Fatalf("expected updated rates, got %+v", cfg)
	}
	if cfg.LastUpdated != 1_700_000_000 {
		t.Fatalf("expected LastUpdated from logical clock, got %d", cfg.LastUpdated)
	}

	fee, err := env.engine.CollectTransactionFee(env.payer, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if fee.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected fee at updated rate, got %s", fee)
	}
}

func TestPutFundRejectsNegativeBalance(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.putFund(&ProtectionFund{TotalBalance: big.NewInt(-1)})
	if !errors.Is(err, errNegativeFundBalance) {
		t.Fatalf("expected errNegativeFundBalance, got %v", err)
	}
	// The rejected write must not clobber the stored fund.
	fund, err := env.engine.ProtectionFund()
	if err != nil {
		t.Fatalf("load fund: %v", err)
	}
	if fund.TotalBalance.Sign() != 0 {
		t.Fatalf("expected fund unchanged, got %s", fund.TotalBalance)
	}
}

func TestTransferAdmin(t *testing.T) {
	env := newTestEnv(t)
	successor := makeAddress(0x20)

	if err := env.engine.TransferAdmin(env.payer, successor); !errors.Is(err, errNotAdmin) {
		t.Fatalf("expected errNotAdmin, got %v", err)
	}
	if err := env.engine.TransferAdmin(env.admin, successor); err != nil {
		t.Fatalf("transfer admin: %v", err)
	}
	if err := env.engine.UpdateFees(env.admin, 300, 90); !errors.Is(err, errNotAdmin) {
		t.Fatalf("expected former admin locked out, got %v", err)
	}
	if err := env.engine.UpdateFees(successor, 300, 90); err != nil {
		t.Fatalf("successor update: %v", err)
	}
}
