package token

import (
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Snapshot is the serialisable form of a token ledger. Amounts are stored as
// decimal strings so snapshots survive JSON round-trips without precision loss.
type Snapshot struct {
	Symbol      string                       `json:"symbol"`
	Decimals    uint8                        `json:"decimals"`
	TotalSupply string                       `json:"totalSupply"`
	Balances    map[string]string            `json:"balances,omitempty"`
	Allowances  map[string]map[string]string `json:"allowances,omitempty"`
	Nonces      map[string]uint64            `json:"nonces,omitempty"`
}

// Snapshot captures the full ledger state for persistence.
func (t *Token) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := &Snapshot{
		Symbol:      t.symbol,
		Decimals:    t.decimals,
		TotalSupply: t.totalSupply.String(),
		Balances:    make(map[string]string, len(t.balances)),
		Allowances:  make(map[string]map[string]string, len(t.allowances)),
		Nonces:      make(map[string]uint64, len(t.nonces)),
	}
	for addr, amount := range t.balances {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		snap.Balances[encodeAddress(addr)] = amount.String()
	}
	for owner, spenders := range t.allowances {
		if len(spenders) == 0 {
			continue
		}
		entry := make(map[string]string, len(spenders))
		for spender, amount := range spenders {
			if amount == nil || amount.Sign() == 0 {
				continue
			}
			entry[encodeAddress(spender)] = amount.String()
		}
		if len(entry) > 0 {
			snap.Allowances[encodeAddress(owner)] = entry
		}
	}
	for owner, nonce := range t.nonces {
		if nonce > 0 {
			snap.Nonces[encodeAddress(owner)] = nonce
		}
	}
	return snap
}

// RestoreToken rebuilds a ledger from a snapshot.
func RestoreToken(snap *Snapshot) (*Token, error) {
	if snap == nil {
		return nil, fmt.Errorf("token: nil snapshot")
	}
	t, err := NewToken(snap.Symbol, snap.Decimals)
	if err != nil {
		return nil, err
	}
	total, err := parseAmount(snap.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("token: restore %s supply: %w", snap.Symbol, err)
	}
	t.totalSupply = total
	for raw, amount := range snap.Balances {
		addr, err := decodeAddress(raw)
		if err != nil {
			return nil, err
		}
		parsed, err := parseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("token: restore %s balance: %w", snap.Symbol, err)
		}
		t.balances[addr] = parsed
	}
	for rawOwner, spenders := range snap.Allowances {
		owner, err := decodeAddress(rawOwner)
		if err != nil {
			return nil, err
		}
		for rawSpender, amount := range spenders {
			spender, err := decodeAddress(rawSpender)
			if err != nil {
				return nil, err
			}
			parsed, err := parseAmount(amount)
			if err != nil {
				return nil, fmt.Errorf("token: restore %s allowance: %w", snap.Symbol, err)
			}
			t.setAllowance(owner, spender, parsed)
		}
	}
	for raw, nonce := range snap.Nonces {
		owner, err := decodeAddress(raw)
		if err != nil {
			return nil, err
		}
		t.nonces[owner] = nonce
	}
	return t, nil
}

func encodeAddress(addr [20]byte) string {
	return ethcommon.BytesToAddress(addr[:]).Hex()
}

func decodeAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return addr, fmt.Errorf("token: invalid address %q", raw)
	}
	copy(addr[:], ethcommon.HexToAddress(trimmed).Bytes())
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return parsed, nil
}
