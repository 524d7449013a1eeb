package token

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestToken(t *testing.T) *Token {
	t.Helper()
	tok, err := NewToken("old", 18)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	return tok
}

func TestNewTokenNormalisesSymbol(t *testing.T) {
	tok := newTestToken(t)
	if tok.Symbol() != "OLD" {
		t.Fatalf("symbol: want OLD, got %s", tok.Symbol())
	}
	if _, err := NewToken("  ", 18); err == nil {
		t.Fatalf("blank symbol must be rejected")
	}
}

func TestMintBurnSupply(t *testing.T) {
	tok := newTestToken(t)
	holder := newTestAddress(0x01)

	total, err := tok.Mint(holder, big.NewInt(500))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if total.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("supply after mint: want 500, got %s", total)
	}

	total, err = tok.Burn(holder, big.NewInt(120))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if total.Cmp(big.NewInt(380)) != 0 {
		t.Fatalf("supply after burn: want 380, got %s", total)
	}
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(380)) != 0 {
		t.Fatalf("balance after burn: want 380, got %s", got)
	}

	if _, err := tok.Burn(holder, big.NewInt(1000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overburn: expected ErrInsufficientBalance, got %v", err)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(380)) != 0 {
		t.Fatalf("failed burn must not change supply, got %s", got)
	}
}

func TestTransfer(t *testing.T) {
	tok := newTestToken(t)
	alice := newTestAddress(0x0A)
	bob := newTestAddress(0x0B)
	if _, err := tok.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := tok.Transfer(alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := tok.BalanceOf(alice); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("alice: want 40, got %s", got)
	}
	if got := tok.BalanceOf(bob); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("bob: want 60, got %s", got)
	}

	if err := tok.Transfer(alice, bob, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw: expected ErrInsufficientBalance, got %v", err)
	}
	if err := tok.Transfer(alice, bob, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: expected ErrInvalidAmount, got %v", err)
	}
	if err := tok.Transfer(alice, bob, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	tok := newTestToken(t)
	owner := newTestAddress(0x0A)
	spender := newTestAddress(0x0B)
	sink := newTestAddress(0x0C)
	if _, err := tok.Mint(owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := tok.TransferFrom(spender, owner, sink, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("no approval: expected ErrInsufficientAllowance, got %v", err)
	}

	if err := tok.Approve(owner, spender, big.NewInt(70)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(spender, owner, sink, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := tok.Allowance(owner, spender); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("remaining allowance: want 40, got %s", got)
	}
	if got := tok.BalanceOf(sink); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("sink balance: want 30, got %s", got)
	}

	if err := tok.TransferFrom(spender, owner, sink, big.NewInt(41)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("exceeding allowance: expected ErrInsufficientAllowance, got %v", err)
	}

	// Allowance may exceed balance; the balance check still gates the pull.
	if err := tok.Approve(owner, spender, big.NewInt(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(spender, owner, sink, big.NewInt(500)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestRegistryRoutesBySymbol(t *testing.T) {
	registry := NewRegistry()
	tok := newTestToken(t)
	if err := registry.Register(tok); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(tok); err == nil {
		t.Fatalf("duplicate registration must fail")
	}

	holder := newTestAddress(0x01)
	if err := registry.Mint("old", holder, big.NewInt(5)); err != nil {
		t.Fatalf("mint via registry: %v", err)
	}
	balance, err := registry.BalanceOf(" OLD ", holder)
	if err != nil {
		t.Fatalf("balance via registry: %v", err)
	}
	if balance.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("balance: want 5, got %s", balance)
	}

	if _, err := registry.BalanceOf("MISSING", holder); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tok := newTestToken(t)
	alice := newTestAddress(0x0A)
	bob := newTestAddress(0x0B)
	if _, err := tok.Mint(alice, big.NewInt(250)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tok.Approve(alice, bob, big.NewInt(90)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	tok.nonces[alice] = 3

	restored, err := RestoreToken(tok.Snapshot())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Symbol() != tok.Symbol() {
		t.Fatalf("symbol mismatch: %s", restored.Symbol())
	}
	if got := restored.TotalSupply(); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("supply: want 250, got %s", got)
	}
	if got := restored.BalanceOf(alice); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("balance: want 250, got %s", got)
	}
	if got := restored.Allowance(alice, bob); got.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("allowance: want 90, got %s", got)
	}
	if got := restored.Nonce(alice); got != 3 {
		t.Fatalf("nonce: want 3, got %d", got)
	}
}
