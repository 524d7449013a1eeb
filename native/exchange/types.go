package exchange

import (
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"burnswap/token"
)

// RatioScale is the fixed denominator of the exchange rate. A ratio equal to
// the scale converts one source unit into one target unit.
var RatioScale = big.NewInt(10_000_000_000)

// Config is the singleton exchange configuration. Token identities are fixed
// at creation; ratio and withdraw deadline are mutated only through the
// administrator operations on the engine.
type Config struct {
	SourceToken      string
	TargetToken      string
	Ratio            *big.Int
	WithdrawDeadline int64
	Admin            [20]byte
}

// NewConfig validates and builds the initial exchange configuration. The lock
// duration is converted into an absolute withdraw deadline relative to now.
func NewConfig(sourceToken, targetToken string, ratio *big.Int, lockDuration time.Duration, admin [20]byte, now int64) (*Config, error) {
	source := token.NormalizeSymbol(sourceToken)
	target := token.NormalizeSymbol(targetToken)
	if source == "" || target == "" {
		return nil, ErrUnknownAsset
	}
	if source == target {
		return nil, ErrSameAsset
	}
	if ratio == nil || ratio.Sign() < 0 {
		return nil, ErrInvalidRatio
	}
	if admin == ([20]byte{}) {
		return nil, ErrNoAdministrator
	}
	return &Config{
		SourceToken:      source,
		TargetToken:      target,
		Ratio:            new(big.Int).Set(ratio),
		WithdrawDeadline: now + int64(lockDuration/time.Second),
		Admin:            admin,
	}, nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Ratio != nil {
		clone.Ratio = new(big.Int).Set(c.Ratio)
	}
	return &clone
}

// PermitMessage is the decoded form of an offline-signed delegation payload.
// Instances are transient: constructed per exchange call and never stored.
type PermitMessage struct {
	Signer   [20]byte
	Spender  [20]byte
	Amount   *big.Int
	Deadline *big.Int
	V        byte
	R        [32]byte
	S        [32]byte
}

func normalizedSymbol(symbol string) (string, error) {
	normalized := token.NormalizeSymbol(symbol)
	if normalized == "" {
		return "", ErrUnknownAsset
	}
	return normalized, nil
}

// ModuleAddress returns the deterministic custody address holding the engine's
// reserve and receiving pulled source tokens prior to burning.
func ModuleAddress() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte("burnswap/exchange/module"))
	copy(addr[:], hash[12:])
	return addr
}
