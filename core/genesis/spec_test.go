package genesis

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"peerlend/core/state"
	"peerlend/storage"
)

func hexAddr(seed byte) string {
	return strings.Repeat(string([]byte{hexDigit(seed >> 4), hexDigit(seed & 0x0f)}), 20)
}

func hexDigit(v byte) byte {
	const digits = "0123456789abcdef"
	return digits[v&0x0f]
}

func validSpecJSON() string {
	return `{
		"genesisTime": "2026-01-01T00:00:00Z",
		"admin": "` + hexAddr(0x01) + `",
		"treasuryModule": "` + hexAddr(0x02) + `",
		"loanModule": "` + hexAddr(0x03) + `",
		"fees": {"transactionFeeBps": 100, "gasFeeBps": 50},
		"alloc": {
			"` + hexAddr(0x04) + `": "1000000"
		}
	}`
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec([]byte(validSpecJSON()))
	require.NoError(t, err)
	require.Equal(t, uint32(100), spec.Fees.TransactionFeeBps)
	require.Equal(t, uint32(50), spec.Fees.GasFeeBps)
	require.Equal(t, int64(1767225600), spec.GenesisTimestamp().Unix())

	admin, err := ParseAddress(hexAddr(0x01))
	require.NoError(t, err)
	require.Equal(t, admin, spec.AdminAddress())
}

func TestParseSpecRejectsUnknownFields(t *testing.T) {
	raw := strings.Replace(validSpecJSON(), `"fees"`, `"surprise": true, "fees"`, 1)
	_, err := ParseSpec([]byte(raw))
	require.Error(t, err)
}

func TestParseSpecRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(string) string
	}{
		{"badAdmin", func(s string) string { return strings.Replace(s, hexAddr(0x01), "not-an-address", 1) }},
		{"missingTime", func(s string) string { return strings.Replace(s, "2026-01-01T00:00:00Z", "", 1) }},
		{"feeOutOfRange", func(s string) string { return strings.Replace(s, `"transactionFeeBps": 100`, `"transactionFeeBps": 10001`, 1) }},
		{"negativeAlloc", func(s string) string { return strings.Replace(s, `"1000000"`, `"-5"`, 1) }},
		{"sharedModuleAccount", func(s string) string { return strings.Replace(s, hexAddr(0x03), hexAddr(0x02), 1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSpec([]byte(tc.mutate(validSpecJSON())))
			require.Error(t, err)
		})
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x" + hexAddr(0x0a))
	require.NoError(t, err)
	require.Equal(t, byte(0x0a), addr[0])

	_, err = ParseAddress(hexAddr(0x0a)[:38])
	require.Error(t, err)
	_, err = ParseAddress("")
	require.Error(t, err)
}

func TestApplyBootsEngines(t *testing.T) {
	spec, err := ParseSpec([]byte(validSpecJSON()))
	require.NoError(t, err)

	manager := state.NewManager(storage.NewMemDB())
	engines, err := spec.Apply(manager, nil)
	require.NoError(t, err)
	require.NotNil(t, engines.CreditScore)
	require.NotNil(t, engines.Loan)
	require.NotNil(t, engines.Treasury)

	funded, err := ParseAddress(hexAddr(0x04))
	require.NoError(t, err)
	account, err := manager.GetAccount(funded)
	require.NoError(t, err)
	require.Zero(t, account.Balance.Cmp(big.NewInt(1_000_000)))

	cfg, err := engines.Treasury.Fees()
	require.NoError(t, err)
	require.Equal(t, uint32(100), cfg.TransactionFeeBps)
	require.Equal(t, uint32(50), cfg.GasFeeBps)

	// The loan engine is live: listing a card works immediately.
	lender, err := ParseAddress(hexAddr(0x04))
	require.NoError(t, err)
	cardID, err := engines.Loan.CreateInvestmentCard(lender, big.NewInt(10_000), big.NewInt(1_000), 500, 12, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), cardID)
}
