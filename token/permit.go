package token

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrPermitExpired is returned when the signed deadline has already passed.
	ErrPermitExpired = errors.New("token: permit expired")
	// ErrPermitSignature is returned when the signature does not recover to the owner.
	ErrPermitSignature = errors.New("token: permit signature invalid")
)

var permitTypeHash = ethcrypto.Keccak256([]byte(
	"Permit(string symbol,address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)",
))

// PermitDigest computes the message hash an owner signs to grant a one-shot
// spending delegation. The owner's current nonce is bound into the digest so a
// consumed permit cannot be replayed.
func PermitDigest(symbol string, owner, spender [20]byte, value, deadline *big.Int, nonce uint64) []byte {
	return ethcrypto.Keccak256(
		permitTypeHash,
		ethcrypto.Keccak256([]byte(NormalizeSymbol(symbol))),
		leftPad20(owner),
		leftPad20(spender),
		leftPadBig(value),
		leftPadBig(new(big.Int).SetUint64(nonce)),
		leftPadBig(deadline),
	)
}

// SignPermit produces the 65-byte r||s||v signature for a permit digest. It is
// the client-side counterpart of Permit, used by tests and tooling.
func SignPermit(key *ecdsa.PrivateKey, symbol string, spender [20]byte, value, deadline *big.Int, nonce uint64) (v byte, r, s [32]byte, err error) {
	var owner [20]byte
	copy(owner[:], ethcrypto.PubkeyToAddress(key.PublicKey).Bytes())
	digest := PermitDigest(symbol, owner, spender, value, deadline, nonce)
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return 0, r, s, err
	}
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	// Normalise to the Ethereum wire convention of v in {27, 28}.
	return sig[64] + 27, r, s, nil
}

// Permit grants spender an allowance of value on behalf of owner, authorized by
// an offline signature over the owner's current nonce. The nonce is consumed on
// success so each signed message authorizes at most one grant.
func (t *Token) Permit(owner, spender [20]byte, value, deadline *big.Int, v byte, r, s [32]byte) error {
	amt, err := validAmount(value)
	if err != nil {
		return err
	}
	if deadline == nil {
		return fmt.Errorf("token: permit deadline required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock().Unix()
	if deadline.Cmp(big.NewInt(now)) < 0 {
		return ErrPermitExpired
	}
	nonce := t.nonces[owner]
	digest := PermitDigest(t.symbol, owner, spender, amt, deadline, nonce)
	sig := make([]byte, 65)
	copy(sig[:32], r[:])
	copy(sig[32:64], s[:])
	recoveryID := v
	if recoveryID >= 27 {
		recoveryID -= 27
	}
	sig[64] = recoveryID
	pubKey, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return ErrPermitSignature
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey)
	if recovered != ethcommon.BytesToAddress(owner[:]) {
		return ErrPermitSignature
	}
	t.nonces[owner] = nonce + 1
	t.setAllowance(owner, spender, amt)
	return nil
}

func leftPad20(addr [20]byte) []byte {
	padded := make([]byte, 32)
	copy(padded[12:], addr[:])
	return padded
}

func leftPadBig(v *big.Int) []byte {
	padded := make([]byte, 32)
	if v != nil {
		v.FillBytes(padded)
	}
	return padded
}
