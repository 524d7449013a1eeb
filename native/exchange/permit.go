package exchange

import (
	"bytes"
	"math/big"

	"github.com/holiman/uint256"
)

// permitTypeTag identifies the single recognized delegation shape: the
// canonical ERC-2612 permit(address,address,uint256,uint256,uint8,bytes32,bytes32)
// selector.
var permitTypeTag = []byte{0xd5, 0x05, 0xac, 0xcf}

const (
	permitWordSize   = 32
	permitWordCount  = 7
	permitPayloadLen = 4 + permitWordCount*permitWordSize
)

// DecodePermitPayload parses a raw delegation payload: a 4-byte type tag
// followed by seven ABI-style 32-byte words holding signer, spender, amount,
// deadline and the three signature components.
func DecodePermitPayload(payload []byte) (*PermitMessage, error) {
	if len(payload) != permitPayloadLen {
		return nil, ErrMalformedPermit
	}
	if !bytes.Equal(payload[:4], permitTypeTag) {
		return nil, ErrMalformedPermit
	}
	words := payload[4:]
	msg := &PermitMessage{}
	copy(msg.Signer[:], word(words, 0)[12:])
	copy(msg.Spender[:], word(words, 1)[12:])
	msg.Amount = wordToBig(words, 2)
	msg.Deadline = wordToBig(words, 3)
	msg.V = word(words, 4)[permitWordSize-1]
	copy(msg.R[:], word(words, 5))
	copy(msg.S[:], word(words, 6))
	return msg, nil
}

// EncodePermitPayload renders a permit message in the wire shape accepted by
// DecodePermitPayload. It is the client-side counterpart used by tests and
// tooling.
func EncodePermitPayload(msg *PermitMessage) []byte {
	payload := make([]byte, permitPayloadLen)
	copy(payload[:4], permitTypeTag)
	words := payload[4:]
	copy(word(words, 0)[12:], msg.Signer[:])
	copy(word(words, 1)[12:], msg.Spender[:])
	bigToWord(words, 2, msg.Amount)
	bigToWord(words, 3, msg.Deadline)
	word(words, 4)[permitWordSize-1] = msg.V
	copy(word(words, 5), msg.R[:])
	copy(word(words, 6), msg.S[:])
	return payload
}

// authorizePermit validates that the payload is a well-formed delegation bound
// to this exact exchange call, then forwards it to the asset gateway. The
// gateway call itself is best-effort: an attacker who observes a published
// signature could pre-consume the permit to disrupt the flow, so a gateway
// failure is not fatal and the dependent pull remains the real gate.
func (e *Engine) authorizePermit(cfg *Config, caller [20]byte, amount *big.Int, payload []byte) error {
	msg, err := DecodePermitPayload(payload)
	if err != nil {
		return err
	}
	if msg.Signer != caller {
		return ErrPermitSignerMismatch
	}
	if msg.Spender != e.self {
		return ErrPermitSpenderMismatch
	}
	if msg.Amount.Cmp(amount) != 0 {
		return ErrPermitAmountMismatch
	}
	_ = e.gateway.Permit(cfg.SourceToken, msg.Signer, msg.Spender, msg.Amount, msg.Deadline, msg.V, msg.R, msg.S)
	return nil
}

func word(words []byte, index int) []byte {
	return words[index*permitWordSize : (index+1)*permitWordSize]
}

func wordToBig(words []byte, index int) *big.Int {
	value := new(uint256.Int).SetBytes32(word(words, index))
	return value.ToBig()
}

func bigToWord(words []byte, index int, v *big.Int) {
	if v == nil {
		return
	}
	value, _ := uint256.FromBig(v)
	if value == nil {
		return
	}
	encoded := value.Bytes32()
	copy(word(words, index), encoded[:])
}
