package crypto

import (
	"bytes"
	"testing"
)

func testKeyNonce() ([KeySize]byte, [NonceSize]byte) {
	var key [KeySize]byte
	var nonce [NonceSize]byte
	for i := range key {
		key[i] = byte(i)
	}
	for i := range nonce {
		nonce[i] = byte(0x10 + i)
	}
	return key, nonce
}

func TestSealOpenRoundTrip(t *testing.T) {
	key, nonce := testKeyNonce()
	aad := []byte("counter=0 position=5 callsign=N0CALL")
	pt := []byte("hello sleipnir")

	ct := Seal(key, nonce, aad, pt)
	got, err := Open(key, nonce, aad, ct, FullTagSize)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatalf("round trip mismatch: got %q want %q", got, pt)
	}
}

func TestOpenTruncatedTagRoundTrip(t *testing.T) {
	key, nonce := testKeyNonce()
	aad := []byte("aad")
	pt := []byte("voice payload data..........")

	full := Seal(key, nonce, aad, pt)
	ct := full[:len(full)-FullTagSize]
	wireTag := full[len(full)-FullTagSize:][:WireTagSize]
	wire := append(append([]byte{}, ct...), wireTag...)

	got, err := Open(key, nonce, aad, wire, WireTagSize)
	if err != nil {
		t.Fatalf("open with truncated tag failed: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatalf("mismatch: got %q want %q", got, pt)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key, nonce := testKeyNonce()
	aad := []byte("aad")
	pt := []byte("payload")

	full := Seal(key, nonce, aad, pt)
	full[0] ^= 0xFF

	if _, err := Open(key, nonce, aad, full, FullTagSize); err != ErrMacInvalid {
		t.Fatalf("expected ErrMacInvalid, got %v", err)
	}
}

func TestOpenRejectsTamperedTruncatedTag(t *testing.T) {
	key, nonce := testKeyNonce()
	aad := []byte("aad")
	pt := []byte("payload")

	full := Seal(key, nonce, aad, pt)
	ct := full[:len(full)-FullTagSize]
	wireTag := append([]byte{}, full[len(full)-FullTagSize:][:WireTagSize]...)
	wireTag[0] ^= 0x01
	wire := append(append([]byte{}, ct...), wireTag...)

	if _, err := Open(key, nonce, aad, wire, WireTagSize); err != ErrMacInvalid {
		t.Fatalf("expected ErrMacInvalid, got %v", err)
	}
}

func TestDeriveNonceIsXOROfCounterAndPosition(t *testing.T) {
	var base [NonceSize]byte
	for i := range base {
		base[i] = 0xFF
	}
	nonce := DeriveNonce(base, 0x01020304, 0x05)
	want := [NonceSize]byte{0xFE, 0xFD, 0xFC, 0xFB, 0xFA, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if nonce != want {
		t.Fatalf("got %x want %x", nonce, want)
	}
}

func TestNonceRegistryDetectsReuse(t *testing.T) {
	key, nonce := testKeyNonce()
	reg := NewNonceRegistry()

	if err := reg.Check(key, nonce); err != nil {
		t.Fatalf("first use should succeed: %v", err)
	}
	if err := reg.Check(key, nonce); err != ErrNonceReuse {
		t.Fatalf("expected ErrNonceReuse, got %v", err)
	}

	nonce[0] ^= 0x01
	if err := reg.Check(key, nonce); err != nil {
		t.Fatalf("distinct nonce should succeed: %v", err)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	var digest [32]byte
	for i := range digest {
		digest[i] = byte(i * 7)
	}

	sig, err := Sign(digest, kp.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !Verify(digest, sig, kp.PublicKey()) {
		t.Fatalf("expected signature to verify")
	}

	var other [32]byte
	copy(other[:], digest[:])
	other[0] ^= 0xFF
	if Verify(other, sig, kp.PublicKey()) {
		t.Fatalf("expected verification to fail for a different digest")
	}
}

func TestSignIsDeterministic(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	var digest [32]byte
	for i := range digest {
		digest[i] = byte(i)
	}

	sig1, err := Sign(digest, kp.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig2, err := Sign(digest, kp.Private)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig1.R.Cmp(sig2.R) != 0 || sig1.S.Cmp(sig2.S) != 0 {
		t.Fatalf("expected deterministic signatures, got different (r,s) pairs")
	}
	if sig1.Wire() != sig2.Wire() {
		t.Fatalf("expected deterministic wire signatures")
	}
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	var digest [32]byte
	if Verify(digest, Signature{}, kp.PublicKey()) {
		t.Fatalf("expected verification of empty signature to fail")
	}
}

func TestDeriveSessionKeysDeterministic(t *testing.T) {
	secret := []byte("shared-secret-material")
	salt := []byte("N0CALL")

	mac1, base1, err := DeriveSessionKeys(secret, salt)
	if err != nil {
		t.Fatalf("derive session keys: %v", err)
	}
	mac2, base2, err := DeriveSessionKeys(secret, salt)
	if err != nil {
		t.Fatalf("derive session keys: %v", err)
	}
	if mac1 != mac2 || base1 != base2 {
		t.Fatalf("expected deterministic derivation for identical inputs")
	}

	mac3, base3, err := DeriveSessionKeys(secret, []byte("OTHER"))
	if err != nil {
		t.Fatalf("derive session keys: %v", err)
	}
	if mac1 == mac3 && base1 == base3 {
		t.Fatalf("expected different salt to change derived keys")
	}
}
