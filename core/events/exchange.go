package events

import (
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"burnswap/core/types"
)

const (
	// TypeExchangePerformed is emitted on every successful burn-and-exchange.
	TypeExchangePerformed = "exchange.performed"
	// TypeExchangeRatioUpdated is emitted when the administrator overwrites the rate.
	TypeExchangeRatioUpdated = "exchange.ratio_updated"
	// TypeExchangeDeadlineUpdated is emitted when the withdrawal timelock is extended.
	TypeExchangeDeadlineUpdated = "exchange.deadline_updated"
	// TypeExchangeWithdrawal is emitted when the administrator drains custodied funds.
	TypeExchangeWithdrawal = "exchange.withdrawal"
)

// ExchangePerformed records a completed source-burn / target-credit exchange.
type ExchangePerformed struct {
	Requester    [20]byte
	SourceToken  string
	TargetToken  string
	SourceAmount *big.Int
	TargetAmount *big.Int
}

func (ExchangePerformed) EventType() string { return TypeExchangePerformed }

// Event renders the canonical payload for downstream consumers.
func (e ExchangePerformed) Event() *types.Event {
	return &types.Event{
		Type: TypeExchangePerformed,
		Attributes: map[string]string{
			"requester":    formatAddress(e.Requester),
			"sourceToken":  formatSymbol(e.SourceToken),
			"targetToken":  formatSymbol(e.TargetToken),
			"sourceAmount": formatAmount(e.SourceAmount),
			"targetAmount": formatAmount(e.TargetAmount),
		},
	}
}

// ExchangeRatioUpdated records an administrator rate change.
type ExchangeRatioUpdated struct {
	Ratio *big.Int
}

func (ExchangeRatioUpdated) EventType() string { return TypeExchangeRatioUpdated }

func (e ExchangeRatioUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeExchangeRatioUpdated,
		Attributes: map[string]string{
			"ratio": formatAmount(e.Ratio),
		},
	}
}

// ExchangeDeadlineUpdated records an extension of the withdrawal timelock.
type ExchangeDeadlineUpdated struct {
	Deadline int64
}

func (ExchangeDeadlineUpdated) EventType() string { return TypeExchangeDeadlineUpdated }

func (e ExchangeDeadlineUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeExchangeDeadlineUpdated,
		Attributes: map[string]string{
			"deadline": intToString(e.Deadline),
		},
	}
}

// ExchangeWithdrawal records an administrator withdrawal from engine custody.
type ExchangeWithdrawal struct {
	Token     string
	Amount    *big.Int
	Recipient [20]byte
}

func (ExchangeWithdrawal) EventType() string { return TypeExchangeWithdrawal }

func (e ExchangeWithdrawal) Event() *types.Event {
	return &types.Event{
		Type: TypeExchangeWithdrawal,
		Attributes: map[string]string{
			"token":     formatSymbol(e.Token),
			"amount":    formatAmount(e.Amount),
			"recipient": formatAddress(e.Recipient),
		},
	}
}

func formatAddress(addr [20]byte) string {
	return ethcommon.BytesToAddress(addr[:]).Hex()
}

func formatSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return big.NewInt(v).String()
}
