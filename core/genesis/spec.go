package genesis

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"
)

// Spec is the decoded genesis configuration. It names the protocol admin, the
// module accounts for the treasury and the loan module, the initial fee
// schedule and the starting balance allocation.
type Spec struct {
	GenesisTime    string            `json:"genesisTime"`
	Admin          string            `json:"admin"`
	TreasuryModule string            `json:"treasuryModule"`
	LoanModule     string            `json:"loanModule"`
	Fees           FeeSpec           `json:"fees"`
	Alloc          map[string]string `json:"alloc"` // addr -> amount

	genesisTimestamp time.Time
	adminAddr        [20]byte
	treasuryAddr     [20]byte
	loanModuleAddr   [20]byte
	allocAmounts     map[[20]byte]*big.Int
}

// FeeSpec holds the basis-point fee schedule applied at genesis.
type FeeSpec struct {
	TransactionFeeBps uint32 `json:"transactionFeeBps"`
	GasFeeBps         uint32 `json:"gasFeeBps"`
}

// LoadSpec reads and validates a genesis spec from disk. Unknown fields are
// rejected so typos in hand-edited files surface immediately.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseSpec decodes and validates a genesis spec from raw JSON.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// GenesisTimestamp returns the parsed genesis time.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// AdminAddress returns the parsed protocol admin account.
func (s *Spec) AdminAddress() [20]byte { return s.adminAddr }

// TreasuryAddress returns the parsed treasury module account.
func (s *Spec) TreasuryAddress() [20]byte { return s.treasuryAddr }

// LoanModuleAddress returns the parsed loan module account.
func (s *Spec) LoanModuleAddress() [20]byte { return s.loanModuleAddr }

func (s *Spec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	admin, err := ParseAddress(s.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	s.adminAddr = admin

	treasury, err := ParseAddress(s.TreasuryModule)
	if err != nil {
		return fmt.Errorf("treasuryModule: %w", err)
	}
	s.treasuryAddr = treasury

	loanModule, err := ParseAddress(s.LoanModule)
	if err != nil {
		return fmt.Errorf("loanModule: %w", err)
	}
	s.loanModuleAddr = loanModule

	if s.treasuryAddr == s.loanModuleAddr {
		return fmt.Errorf("treasuryModule and loanModule must be distinct accounts")
	}

	if s.Fees.TransactionFeeBps > 10_000 {
		return fmt.Errorf("fees.transactionFeeBps must be 10_000 or fewer")
	}
	if s.Fees.GasFeeBps > 10_000 {
		return fmt.Errorf("fees.gasFeeBps must be 10_000 or fewer")
	}

	s.allocAmounts = make(map[[20]byte]*big.Int, len(s.Alloc))
	if len(s.Alloc) > 0 {
		accounts := make([]string, 0, len(s.Alloc))
		for account := range s.Alloc {
			accounts = append(accounts, account)
		}
		sort.Strings(accounts)
		for _, account := range accounts {
			addr, err := ParseAddress(account)
			if err != nil {
				return fmt.Errorf("alloc[%q]: %w", account, err)
			}
			amount := strings.TrimSpace(s.Alloc[account])
			if amount == "" {
				return fmt.Errorf("alloc[%q]: amount must be provided", account)
			}
			parsed, ok := new(big.Int).SetString(amount, 10)
			if !ok {
				return fmt.Errorf("alloc[%q]: invalid amount %q", account, amount)
			}
			if parsed.Sign() < 0 {
				return fmt.Errorf("alloc[%q]: amount must not be negative", account)
			}
			if _, dup := s.allocAmounts[addr]; dup {
				return fmt.Errorf("alloc[%q]: duplicate account", account)
			}
			s.allocAmounts[addr] = parsed
		}
	}
	return nil
}

// ParseAddress decodes a 20-byte account address from its hex form. A leading
// 0x prefix is accepted.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return addr, fmt.Errorf("address must be provided")
	}
	trimmed = strings.TrimPrefix(trimmed, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", value, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: want %d bytes, got %d", value, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
