package exchange

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"burnswap/core/events"
)

// State persists the singleton exchange configuration.
type State interface {
	ExchangeConfig() (*Config, error)
	PutExchangeConfig(*Config) error
}

// AssetGateway is the surface the engine requires from the two asset ledgers.
// Transfers and burns are assumed atomic: a failed call leaves no partial
// balance change behind.
type AssetGateway interface {
	BalanceOf(symbol string, addr [20]byte) (*big.Int, error)
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
	TransferFrom(symbol string, spender, owner, to [20]byte, amount *big.Int) error
	Burn(symbol string, holder [20]byte, amount *big.Int) error
	Permit(symbol string, owner, spender [20]byte, value, deadline *big.Int, v byte, sigR, sigS [32]byte) error
}

// Engine executes rate-based burn-and-exchange conversions against custodied
// reserves and gates administrator withdrawals behind the timelock. A single
// mutex serialises every operation: the ratio read and the transfer/burn
// sequence must observe one consistent snapshot.
type Engine struct {
	mu               sync.Mutex
	state            State
	gateway          AssetGateway
	emitter          events.Emitter
	self             [20]byte
	nowFn            func() int64
	rejectZeroOutput bool
}

// NewEngine creates an exchange engine with a no-op emitter and the module
// custody address. Callers wire state, gateway and emitter before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		self:    ModuleAddress(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetGateway configures the asset gateway the engine transfers through.
func (e *Engine) SetGateway(gateway AssetGateway) { e.gateway = gateway }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetRejectZeroOutput toggles rejection of exchanges whose target amount
// floors to zero. The baseline behaviour accepts them: the caller burns source
// tokens and receives nothing.
func (e *Engine) SetRejectZeroOutput(reject bool) { e.rejectZeroOutput = reject }

// ModuleAddress returns the custody address the engine operates from.
func (e *Engine) ModuleAddress() [20]byte { return e.self }

// Config returns a copy of the current exchange configuration.
func (e *Engine) Config() (*Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Quote returns the target amount a source amount converts into at the current
// ratio, without touching any balance.
func (e *Engine) Quote(sourceAmount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	amt, err := validAmount(sourceAmount)
	if err != nil {
		return nil, err
	}
	return convert(amt, cfg.Ratio), nil
}

// Reserve returns the engine-custodied balance of the target token.
func (e *Engine) Reserve() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if e.gateway == nil {
		return nil, errNilGateway
	}
	return e.gateway.BalanceOf(cfg.TargetToken, e.self)
}

// Exchange pulls sourceAmount from the caller, burns it and credits the caller
// with the converted target amount from the engine reserve. The optional
// permit payload authorizes the pull in the same call instead of a separate
// pre-approval. The whole sequence is one atomic unit: any failure aborts with
// no balance change.
func (e *Engine) Exchange(caller [20]byte, sourceAmount *big.Int, permitPayload []byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if e.gateway == nil {
		return nil, errNilGateway
	}
	amt, err := validAmount(sourceAmount)
	if err != nil {
		return nil, err
	}
	if len(permitPayload) > 0 {
		if err := e.authorizePermit(cfg, caller, amt, permitPayload); err != nil {
			return nil, err
		}
	}
	targetAmount := convert(amt, cfg.Ratio)
	if e.rejectZeroOutput && amt.Sign() > 0 && targetAmount.Sign() == 0 {
		return nil, ErrZeroOutput
	}
	// Reserve is checked up front so that once the pull-and-burn sequence
	// starts no later step can fail and leave a partial state behind.
	reserve, err := e.gateway.BalanceOf(cfg.TargetToken, e.self)
	if err != nil {
		return nil, err
	}
	if reserve.Cmp(targetAmount) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientReserve, reserve, targetAmount)
	}
	if err := e.gateway.TransferFrom(cfg.SourceToken, e.self, caller, e.self, amt); err != nil {
		return nil, err
	}
	if err := e.gateway.Burn(cfg.SourceToken, e.self, amt); err != nil {
		return nil, err
	}
	if err := e.gateway.Transfer(cfg.TargetToken, e.self, caller, targetAmount); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.ExchangePerformed{
		Requester:    caller,
		SourceToken:  cfg.SourceToken,
		TargetToken:  cfg.TargetToken,
		SourceAmount: amt,
		TargetAmount: targetAmount,
	})
	return targetAmount, nil
}

// Withdraw moves amount of the given token from engine custody to the
// administrator. Withdrawals of the target token are gated by the timelock;
// every other token (including donated source tokens) is withdrawable at any
// time.
func (e *Engine) Withdraw(caller [20]byte, symbol string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := requireAdmin(cfg, caller); err != nil {
		return err
	}
	if e.gateway == nil {
		return errNilGateway
	}
	amt, err := validAmount(amount)
	if err != nil {
		return err
	}
	normalized, err := normalizedSymbol(symbol)
	if err != nil {
		return err
	}
	if normalized == cfg.TargetToken && e.nowFn() <= cfg.WithdrawDeadline {
		return ErrTimeoutNotReached
	}
	if err := e.gateway.Transfer(normalized, e.self, cfg.Admin, amt); err != nil {
		return err
	}
	e.emitter.Emit(events.ExchangeWithdrawal{Token: normalized, Amount: amt, Recipient: cfg.Admin})
	return nil
}

// SetRatio overwrites the exchange rate. The baseline design trusts the
// administrator and applies no bounds beyond non-negativity.
func (e *Engine) SetRatio(caller [20]byte, newRatio *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := requireAdmin(cfg, caller); err != nil {
		return err
	}
	if newRatio == nil || newRatio.Sign() < 0 {
		return ErrInvalidRatio
	}
	cfg.Ratio = new(big.Int).Set(newRatio)
	if err := e.state.PutExchangeConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.ExchangeRatioUpdated{Ratio: cfg.Ratio})
	return nil
}

// SetWithdrawDeadline pushes the withdrawal timelock further into the future.
// Deadlines can only grow: the administrator cannot shorten the lock once set.
func (e *Engine) SetWithdrawDeadline(caller [20]byte, newDeadline int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := requireAdmin(cfg, caller); err != nil {
		return err
	}
	if newDeadline <= cfg.WithdrawDeadline {
		return ErrDeadlineNotIncreasing
	}
	cfg.WithdrawDeadline = newDeadline
	if err := e.state.PutExchangeConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.ExchangeDeadlineUpdated{Deadline: newDeadline})
	return nil
}

func (e *Engine) loadConfig() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, err := e.state.ExchangeConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errNilState
	}
	return cfg, nil
}

func requireAdmin(cfg *Config, caller [20]byte) error {
	if caller != cfg.Admin {
		return ErrUnauthorized
	}
	return nil
}

// convert computes floor(sourceAmount * ratio / RatioScale). Floor division is
// deliberate: small amounts relative to the ratio may round to zero output.
func convert(sourceAmount, ratio *big.Int) *big.Int {
	product := new(big.Int).Mul(sourceAmount, ratio)
	return product.Div(product, RatioScale)
}

func validAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}
