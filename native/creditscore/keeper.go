package creditscore

import "math/big"

// ModuleKeeper is the scoring facade handed to the loan engine. It binds the
// loan module's principal so payment reporting carries the right caller
// identity through the authorisation check.
type ModuleKeeper struct {
	engine *Engine
	module [20]byte
}

// BindModule returns a keeper acting on behalf of the given loan-management
// principal.
func (e *Engine) BindModule(module [20]byte) *ModuleKeeper {
	return &ModuleKeeper{engine: e, module: module}
}

// CanBorrow delegates to the engine's policy gate.
func (k *ModuleKeeper) CanBorrow(subject [20]byte, amount *big.Int) (bool, error) {
	if k == nil || k.engine == nil {
		return false, errNilEngine
	}
	return k.engine.CanBorrow(subject, amount)
}

// RecordPayment reports a loan installment to the scoring engine under the
// bound module principal.
func (k *ModuleKeeper) RecordPayment(subject [20]byte, loanID uint64, amount *big.Int, onTime bool) error {
	if k == nil || k.engine == nil {
		return errNilEngine
	}
	return k.engine.RecordPayment(k.module, subject, loanID, amount, onTime)
}
