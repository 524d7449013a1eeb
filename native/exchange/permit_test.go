package exchange

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

func samplePermitMessage() *PermitMessage {
	msg := &PermitMessage{
		Signer:   newTestAddress(0x11),
		Spender:  newTestAddress(0x22),
		Amount:   big.NewInt(1_000_000),
		Deadline: big.NewInt(1_800_000_000),
		V:        27,
	}
	for i := range msg.R {
		msg.R[i] = byte(i)
		msg.S[i] = byte(0xFF - i)
	}
	return msg
}

func TestPermitPayloadRoundTrip(t *testing.T) {
	msg := samplePermitMessage()
	payload := EncodePermitPayload(msg)
	if len(payload) != permitPayloadLen {
		t.Fatalf("payload length: want %d, got %d", permitPayloadLen, len(payload))
	}
	if !bytes.Equal(payload[:4], permitTypeTag) {
		t.Fatalf("payload must start with the permit type tag")
	}
	decoded, err := DecodePermitPayload(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Signer != msg.Signer || decoded.Spender != msg.Spender {
		t.Fatalf("address fields corrupted in round trip")
	}
	if decoded.Amount.Cmp(msg.Amount) != 0 {
		t.Fatalf("amount: want %s, got %s", msg.Amount, decoded.Amount)
	}
	if decoded.Deadline.Cmp(msg.Deadline) != 0 {
		t.Fatalf("deadline: want %s, got %s", msg.Deadline, decoded.Deadline)
	}
	if decoded.V != msg.V || decoded.R != msg.R || decoded.S != msg.S {
		t.Fatalf("signature fields corrupted in round trip")
	}
}

func TestDecodePermitPayloadRejectsMalformed(t *testing.T) {
	valid := EncodePermitPayload(samplePermitMessage())

	truncated := valid[:len(valid)-1]
	if _, err := DecodePermitPayload(truncated); !errors.Is(err, ErrMalformedPermit) {
		t.Fatalf("truncated payload: expected ErrMalformedPermit, got %v", err)
	}

	padded := append(append([]byte(nil), valid...), 0x00)
	if _, err := DecodePermitPayload(padded); !errors.Is(err, ErrMalformedPermit) {
		t.Fatalf("oversized payload: expected ErrMalformedPermit, got %v", err)
	}

	wrongTag := append([]byte(nil), valid...)
	wrongTag[0] ^= 0xFF
	if _, err := DecodePermitPayload(wrongTag); !errors.Is(err, ErrMalformedPermit) {
		t.Fatalf("wrong tag: expected ErrMalformedPermit, got %v", err)
	}

	if _, err := DecodePermitPayload(nil); !errors.Is(err, ErrMalformedPermit) {
		t.Fatalf("empty payload: expected ErrMalformedPermit, got %v", err)
	}
}

func TestPermitAmountUsesFullWord(t *testing.T) {
	msg := samplePermitMessage()
	msg.Amount, _ = new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	decoded, err := DecodePermitPayload(EncodePermitPayload(msg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Amount.Cmp(msg.Amount) != 0 {
		t.Fatalf("max uint256 amount: want %s, got %s", msg.Amount, decoded.Amount)
	}
}
