package genesis

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"peerlend/core/state"
	"peerlend/native/creditscore"
	"peerlend/storage"
)

// Exercises the full wiring across modules: genesis boots the engines, a loan
// is issued and repaid, the treasury collects the issuance fee and the credit
// score module accumulates the payment history reported by the loan engine.
func TestLoanLifecycleAcrossModules(t *testing.T) {
	raw := `{
		"genesisTime": "2026-01-01T00:00:00Z",
		"admin": "` + hexAddr(0x01) + `",
		"treasuryModule": "` + hexAddr(0x02) + `",
		"loanModule": "` + hexAddr(0x03) + `",
		"fees": {"transactionFeeBps": 100, "gasFeeBps": 50},
		"alloc": {
			"` + hexAddr(0x04) + `": "1000000",
			"` + hexAddr(0x05) + `": "10000"
		}
	}`
	spec, err := ParseSpec([]byte(raw))
	require.NoError(t, err)

	manager := state.NewManager(storage.NewMemDB())
	engines, err := spec.Apply(manager, nil)
	require.NoError(t, err)

	lender, err := ParseAddress(hexAddr(0x04))
	require.NoError(t, err)
	borrower, err := ParseAddress(hexAddr(0x05))
	require.NoError(t, err)

	cardID, err := engines.Loan.CreateInvestmentCard(lender, big.NewInt(5_000), big.NewInt(1_000), 1_200, 4, 2)
	require.NoError(t, err)

	// An unscored borrower stays under the 5k unknown-subject limit.
	appID, err := engines.Loan.ApplyToInvestmentCard(borrower, cardID, big.NewInt(4_000))
	require.NoError(t, err)
	loanID, err := engines.Loan.ApproveApplication(lender, appID, 4, nil)
	require.NoError(t, err)

	// Issuance charged the 50 bps governance fee into the treasury account.
	treasuryAcc, err := manager.GetAccount(spec.TreasuryAddress())
	require.NoError(t, err)
	require.Zero(t, treasuryAcc.Balance.Cmp(big.NewInt(20)))

	// 12% interest: total 4_480 over 4 installments of 1_120.
	for i := 0; i < 4; i++ {
		completed, err := engines.Loan.MakePayment(borrower, loanID)
		require.NoError(t, err)
		require.Equal(t, i == 3, completed)
	}

	history, err := engines.CreditScore.PaymentHistory(borrower)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for _, record := range history {
		require.Equal(t, loanID, record.LoanID)
		require.True(t, record.OnTime)
		require.Zero(t, record.Amount.Cmp(big.NewInt(1_120)))
	}

	score, err := engines.CreditScore.UpdateScore(borrower, creditscore.OffChainData{}, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(4), score.PaymentCount)
	require.NotZero(t, score.Score)
}
