package router

import (
	"testing"

	"github.com/sleipnir-radio/sleipnir/internal/ldpc"
)

func fixtureMatrices() (auth, voice *ldpc.Matrix) {
	auth = &ldpc.Matrix{NRows: 3, NCols: 8, ColIndices: make([][]int, 8), RowIndices: make([][]int, 3)}
	voice = &ldpc.Matrix{NRows: 2, NCols: 6, ColIndices: make([][]int, 6), RowIndices: make([][]int, 2)}
	return
}

func TestSelectTXPositionZeroSigningChoosesAuth(t *testing.T) {
	auth, voice := fixtureMatrices()
	sel := SelectTX(0, Policy{SigningOn: true}, false, auth, voice)
	if sel.Matrix != auth {
		t.Fatalf("expected auth matrix at position 0 under signing")
	}
	if !sel.AuthSlot || !sel.CryptoOps.Sign {
		t.Fatalf("expected auth slot with sign op, got %+v", sel)
	}
}

func TestSelectTXPositionZeroSyncChoosesVoice(t *testing.T) {
	auth, voice := fixtureMatrices()
	sel := SelectTX(0, Policy{SigningOn: false}, true, auth, voice)
	if sel.Matrix != voice {
		t.Fatalf("expected voice matrix for a position-0 sync frame")
	}
	if !sel.SyncSlot || sel.AuthSlot {
		t.Fatalf("expected sync slot, not auth slot, got %+v", sel)
	}
}

func TestSelectTXOtherPositionsChooseVoice(t *testing.T) {
	auth, voice := fixtureMatrices()
	sel := SelectTX(7, Policy{SigningOn: true, EncryptionOn: true}, false, auth, voice)
	if sel.Matrix != voice {
		t.Fatalf("expected voice matrix for non-zero position")
	}
	if !sel.CryptoOps.Encrypt {
		t.Fatalf("expected encrypt op when encryption_on")
	}
}

func TestSelectTXNeverSetsSignOutsidePositionZero(t *testing.T) {
	auth, voice := fixtureMatrices()
	sel := SelectTX(3, Policy{SigningOn: true}, false, auth, voice)
	if sel.CryptoOps.Sign {
		t.Fatalf("sign must only apply to position 0")
	}
	_ = voice
}

func TestSelectRXByCodewordLength(t *testing.T) {
	auth, voice := fixtureMatrices()
	m, err := SelectRX(8, auth, voice)
	if err != nil || m != auth {
		t.Fatalf("expected auth matrix for its codeword length, got %v err=%v", m, err)
	}
	m, err = SelectRX(6, auth, voice)
	if err != nil || m != voice {
		t.Fatalf("expected voice matrix for its codeword length, got %v err=%v", m, err)
	}
}

func TestSelectRXRejectsUnknownLength(t *testing.T) {
	auth, voice := fixtureMatrices()
	if _, err := SelectRX(99, auth, voice); err != ErrUnknownCodewordLength {
		t.Fatalf("expected ErrUnknownCodewordLength, got %v", err)
	}
}
