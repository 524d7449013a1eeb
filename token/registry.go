package token

import (
	"fmt"
	"math/big"
	"sync"

	"burnswap/core/events"
)

// Registry multiplexes token ledgers by symbol and exposes the asset gateway
// surface the exchange engine operates on. Supply changes are published to the
// configured emitter.
type Registry struct {
	mu      sync.RWMutex
	tokens  map[string]*Token
	emitter events.Emitter
}

// NewRegistry constructs an empty registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{
		tokens:  make(map[string]*Token),
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter used for supply changes. Passing nil
// resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Register adds a token ledger to the registry.
func (r *Registry) Register(t *Token) error {
	if t == nil {
		return fmt.Errorf("token: nil token")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[t.Symbol()]; ok {
		return fmt.Errorf("token: %s already registered", t.Symbol())
	}
	r.tokens[t.Symbol()] = t
	return nil
}

// Get returns the ledger registered for symbol.
func (r *Registry) Get(symbol string) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[NormalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, NormalizeSymbol(symbol))
	}
	return t, nil
}

// Symbols returns the registered token symbols.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.tokens))
	for symbol := range r.tokens {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// BalanceOf returns addr's balance of the given token.
func (r *Registry) BalanceOf(symbol string, addr [20]byte) (*big.Int, error) {
	t, err := r.Get(symbol)
	if err != nil {
		return nil, err
	}
	return t.BalanceOf(addr), nil
}

// Transfer moves amount between holders of the given token.
func (r *Registry) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	t, err := r.Get(symbol)
	if err != nil {
		return err
	}
	return t.Transfer(from, to, amount)
}

// TransferFrom executes a delegated transfer on the given token.
func (r *Registry) TransferFrom(symbol string, spender, owner, to [20]byte, amount *big.Int) error {
	t, err := r.Get(symbol)
	if err != nil {
		return err
	}
	return t.TransferFrom(spender, owner, to, amount)
}

// Burn destroys amount held by holder and publishes the supply delta.
func (r *Registry) Burn(symbol string, holder [20]byte, amount *big.Int) error {
	t, err := r.Get(symbol)
	if err != nil {
		return err
	}
	total, err := t.Burn(holder, amount)
	if err != nil {
		return err
	}
	r.emitSupply(t.Symbol(), total, new(big.Int).Neg(amount), events.SupplyReasonBurn)
	return nil
}

// Mint credits amount to the recipient and publishes the supply delta.
func (r *Registry) Mint(symbol string, to [20]byte, amount *big.Int) error {
	t, err := r.Get(symbol)
	if err != nil {
		return err
	}
	total, err := t.Mint(to, amount)
	if err != nil {
		return err
	}
	r.emitSupply(t.Symbol(), total, amount, events.SupplyReasonMint)
	return nil
}

// Permit applies an offline-signed allowance grant on the given token.
func (r *Registry) Permit(symbol string, owner, spender [20]byte, value, deadline *big.Int, v byte, sigR, sigS [32]byte) error {
	t, err := r.Get(symbol)
	if err != nil {
		return err
	}
	return t.Permit(owner, spender, value, deadline, v, sigR, sigS)
}

func (r *Registry) emitSupply(symbol string, total, delta *big.Int, reason string) {
	r.mu.RLock()
	emitter := r.emitter
	r.mu.RUnlock()
	emitter.Emit(events.TokenSupply{Token: symbol, Total: total, Delta: delta, Reason: reason})
}
