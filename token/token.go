package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when a holder cannot cover a transfer or burn.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance is returned when a delegated spend exceeds the approved amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("token: invalid amount")
	// ErrUnknownToken is returned when a registry lookup misses.
	ErrUnknownToken = errors.New("token: unknown token")
)

// Token is an in-process fungible asset ledger with ERC-20 shaped semantics:
// balances, spender allowances, supply-reducing burns and offline-signed
// permits. It backs the exchange engine's asset gateway in the daemon and in
// tests.
type Token struct {
	symbol   string
	decimals uint8

	mu          sync.RWMutex
	balances    map[[20]byte]*big.Int
	allowances  map[[20]byte]map[[20]byte]*big.Int
	nonces      map[[20]byte]uint64
	totalSupply *big.Int
	clock       func() time.Time
}

// NewToken constructs an empty ledger for the given symbol.
func NewToken(symbol string, decimals uint8) (*Token, error) {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, fmt.Errorf("token: symbol required")
	}
	return &Token{
		symbol:      normalized,
		decimals:    decimals,
		balances:    make(map[[20]byte]*big.Int),
		allowances:  make(map[[20]byte]map[[20]byte]*big.Int),
		nonces:      make(map[[20]byte]uint64),
		totalSupply: big.NewInt(0),
		clock:       time.Now,
	}, nil
}

// NormalizeSymbol canonicalises a token symbol for lookups and events.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SetClock overrides the time source used for permit deadline checks.
// Primarily intended for deterministic tests.
func (t *Token) SetClock(clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	t.mu.Lock()
	t.clock = clock
	t.mu.Unlock()
}

// Symbol returns the canonical token symbol.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the display precision of the token.
func (t *Token) Decimals() uint8 { return t.decimals }

// TotalSupply returns the current circulating supply.
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

// BalanceOf returns the balance held by addr.
func (t *Token) BalanceOf(addr [20]byte) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneAmount(t.balances[addr])
}

// Allowance returns the remaining amount spender may pull from owner.
func (t *Token) Allowance(owner, spender [20]byte) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneAmount(t.allowances[owner][spender])
}

// Nonce returns the next permit nonce expected for owner.
func (t *Token) Nonce(owner [20]byte) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nonces[owner]
}

// Mint credits amount to the recipient and grows the total supply. It returns
// the new total supply.
func (t *Token) Mint(to [20]byte, amount *big.Int) (*big.Int, error) {
	amt, err := validAmount(amount)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amt)
	t.totalSupply = new(big.Int).Add(t.totalSupply, amt)
	return new(big.Int).Set(t.totalSupply), nil
}

// Burn irreversibly destroys amount held by the holder, shrinking the total
// supply. It returns the new total supply.
func (t *Token) Burn(holder [20]byte, amount *big.Int) (*big.Int, error) {
	amt, err := validAmount(amount)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if amt.Sign() == 0 {
		return new(big.Int).Set(t.totalSupply), nil
	}
	if err := t.debit(holder, amt); err != nil {
		return nil, err
	}
	t.totalSupply = new(big.Int).Sub(t.totalSupply, amt)
	return new(big.Int).Set(t.totalSupply), nil
}

// Transfer moves amount from one holder to another. Zero amounts are no-ops.
func (t *Token) Transfer(from, to [20]byte, amount *big.Int) error {
	amt, err := validAmount(amount)
	if err != nil {
		return err
	}
	if amt.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(from, amt); err != nil {
		return err
	}
	t.credit(to, amt)
	return nil
}

// Approve sets the allowance spender may pull from owner, replacing any
// previous value.
func (t *Token) Approve(owner, spender [20]byte, amount *big.Int) error {
	amt, err := validAmount(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowance(owner, spender, amt)
	return nil
}

// TransferFrom moves amount from owner to the recipient on behalf of spender,
// consuming the matching allowance. Balance and allowance are checked before
// any mutation so a failed call leaves the ledger untouched.
func (t *Token) TransferFrom(spender, owner, to [20]byte, amount *big.Int) error {
	amt, err := validAmount(amount)
	if err != nil {
		return err
	}
	if amt.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	allowance := t.allowances[owner][spender]
	if allowance == nil || allowance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: %s spender %s", ErrInsufficientAllowance, t.symbol, ethcommon.BytesToAddress(spender[:]).Hex())
	}
	if err := t.debit(owner, amt); err != nil {
		return err
	}
	t.setAllowance(owner, spender, new(big.Int).Sub(allowance, amt))
	t.credit(to, amt)
	return nil
}

func (t *Token) credit(addr [20]byte, amt *big.Int) {
	current := t.balances[addr]
	if current == nil {
		current = big.NewInt(0)
	}
	t.balances[addr] = new(big.Int).Add(current, amt)
}

func (t *Token) debit(addr [20]byte, amt *big.Int) error {
	current := t.balances[addr]
	if current == nil || current.Cmp(amt) < 0 {
		return fmt.Errorf("%w: %s holder %s", ErrInsufficientBalance, t.symbol, ethcommon.BytesToAddress(addr[:]).Hex())
	}
	t.balances[addr] = new(big.Int).Sub(current, amt)
	return nil
}

func (t *Token) setAllowance(owner, spender [20]byte, amt *big.Int) {
	spenders := t.allowances[owner]
	if spenders == nil {
		spenders = make(map[[20]byte]*big.Int)
		t.allowances[owner] = spenders
	}
	if amt.Sign() == 0 {
		delete(spenders, spender)
		return
	}
	spenders[spender] = amt
}

func validAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
