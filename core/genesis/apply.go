package genesis

import (
	"fmt"
	"math/big"

	"peerlend/core/events"
	"peerlend/core/state"
	"peerlend/native/creditscore"
	"peerlend/native/loan"
	"peerlend/native/treasury"
)

// Engines bundles the module engines constructed during genesis, wired to the
// same state manager and ready to serve transactions.
type Engines struct {
	CreditScore *creditscore.Engine
	Loan        *loan.Engine
	Treasury    *treasury.Engine
}

// Apply seeds the state manager from the spec and boots the module engines:
// balances from the alloc table, then the credit score, loan and treasury
// modules with the spec's admin. The loan engine is bound to the credit score
// module so issuance and repayment feed the scoring history.
func (s *Spec) Apply(manager *state.Manager, emitter events.Emitter) (*Engines, error) {
	if manager == nil {
		return nil, fmt.Errorf("genesis: state manager must not be nil")
	}

	for addr, amount := range s.allocAmounts {
		account, err := manager.GetAccount(addr)
		if err != nil {
			return nil, fmt.Errorf("genesis: load account: %w", err)
		}
		account.Balance = new(big.Int).Set(amount)
		if err := manager.PutAccount(addr, account); err != nil {
			return nil, fmt.Errorf("genesis: seed account: %w", err)
		}
	}

	now := s.genesisTimestamp.Unix()

	scores := creditscore.NewEngine(manager)
	scores.SetEmitter(emitter)
	scores.SetNowFunc(func() int64 { return now })
	if err := scores.Initialize(s.adminAddr); err != nil {
		return nil, fmt.Errorf("genesis: init credit score module: %w", err)
	}
	if err := scores.SetLoanModule(s.adminAddr, s.loanModuleAddr); err != nil {
		return nil, fmt.Errorf("genesis: bind loan module: %w", err)
	}
	scores.SetNowFunc(nil)

	loans := loan.NewEngine()
	loans.SetState(manager)
	loans.SetEmitter(emitter)
	loans.SetNowFunc(func() int64 { return now })
	loans.SetFeeCollector(s.treasuryAddr)
	loans.SetScoreKeeper(scores.BindModule(s.loanModuleAddr))
	if err := loans.Initialize(s.adminAddr); err != nil {
		return nil, fmt.Errorf("genesis: init loan module: %w", err)
	}
	loans.SetNowFunc(nil)

	vault := treasury.NewEngine(s.treasuryAddr)
	vault.SetState(manager)
	vault.SetEmitter(emitter)
	vault.SetNowFunc(func() int64 { return now })
	if err := vault.Initialize(s.adminAddr, s.Fees.TransactionFeeBps, s.Fees.GasFeeBps); err != nil {
		return nil, fmt.Errorf("genesis: init treasury module: %w", err)
	}
	vault.SetNowFunc(nil)

	return &Engines{CreditScore: scores, Loan: loans, Treasury: vault}, nil
}
