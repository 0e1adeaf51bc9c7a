package frame

import (
	"bytes"
	"testing"

	"github.com/sleipnir-radio/sleipnir/internal/crypto"
)

func callsign() [5]byte {
	var c [5]byte
	copy(c[:], "N0CAL")
	return c
}

func TestBuildParseVoicePlaintext(t *testing.T) {
	var opus [40]byte
	for i := range opus {
		opus[i] = byte(i)
	}
	frame := BuildVoice(opus, nil, [crypto.NonceSize]byte{}, nil)

	pf, err := Parse(frame, nil, [crypto.NonceSize]byte{}, nil, 0, false)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if pf.Tag != TagVoice {
		t.Fatalf("expected voice tag, got %v", pf.Tag)
	}
	if !pf.Plaintext {
		t.Fatalf("expected plaintext frame")
	}
	// The wire payload only has room for DataSize (39) bytes; the 40th Opus
	// byte does not survive the 48-byte frame's fixed layout (tag 1 + data 39 + MAC 8).
	if !bytes.Equal(pf.Data, opus[:DataSize]) {
		t.Fatalf("data mismatch: got %x want %x", pf.Data, opus[:DataSize])
	}
}

func TestBuildParseVoiceAuthenticated(t *testing.T) {
	var key [crypto.KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}
	var nonce [crypto.NonceSize]byte
	for i := range nonce {
		nonce[i] = byte(0x20 + i)
	}
	aad := AAD(0, 5, callsign())

	var opus [40]byte
	copy(opus[:], "hello world this is voice data.........")

	frame := BuildVoice(opus, &key, nonce, aad)
	pf, err := Parse(frame, &key, nonce, aad, 0, false)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !pf.MacValid {
		t.Fatalf("expected mac valid")
	}
	if !bytes.Equal(pf.Data, opus[:DataSize]) {
		t.Fatalf("data mismatch")
	}
}

func TestParseRejectsTamperedMac(t *testing.T) {
	var key [crypto.KeySize]byte
	var nonce [crypto.NonceSize]byte
	aad := AAD(1, 3, callsign())
	var opus [40]byte

	f := BuildVoice(opus, &key, nonce, aad)
	f[5] ^= 0xFF // tamper a data byte

	_, err := Parse(f, &key, nonce, aad, 0, false)
	if err != ErrMacInvalid {
		t.Fatalf("expected ErrMacInvalid, got %v", err)
	}
}

func TestParseRejectsUnknownTag(t *testing.T) {
	var f [PayloadSize]byte
	f[0] = 0x7B
	_, err := Parse(f, nil, [crypto.NonceSize]byte{}, nil, 0, false)
	if err != ErrUnknownTag {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
}

func TestSyncRoundTripAndCounter(t *testing.T) {
	f := BuildSync(42)
	pf, err := Parse(f, nil, [crypto.NonceSize]byte{}, nil, 0, false)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if pf.Tag != TagSync {
		t.Fatalf("expected sync tag")
	}
	if pf.SyncCounter != 42 {
		t.Fatalf("expected counter 42, got %d", pf.SyncCounter)
	}
	if !pf.SyncPositionOK {
		t.Fatalf("expected position 0")
	}
}

func TestSyncRejectsBadMagic(t *testing.T) {
	f := BuildSync(1)
	f[0] ^= 0xFF
	_, err := Parse(f, nil, [crypto.NonceSize]byte{}, nil, 0, false)
	if err != ErrSyncMagicInvalid {
		t.Fatalf("expected ErrSyncMagicInvalid, got %v", err)
	}
}

func TestSyncDetectsCounterReplay(t *testing.T) {
	f := BuildSync(5)
	_, err := Parse(f, nil, [crypto.NonceSize]byte{}, nil, 10, true)
	if err != ErrCounterReplay {
		t.Fatalf("expected ErrCounterReplay, got %v", err)
	}
}

func TestSyncCounterWrapIsNotReplay(t *testing.T) {
	f := BuildSync(0)
	_, err := Parse(f, nil, [crypto.NonceSize]byte{}, nil, 1<<32-1, true)
	if err != nil {
		t.Fatalf("expected wrap to be accepted, got %v", err)
	}
}

func TestAuthRoundTrip(t *testing.T) {
	var sig [crypto.SignatureSize]byte
	for i := range sig {
		sig[i] = byte(i)
	}
	payload := BuildAuth(sig)
	got := ParseAuth(payload)
	if got != sig {
		t.Fatalf("auth round trip mismatch")
	}
}
