// Package router implements FrameRouter: the stateless mapping from a
// frame's position-in-superframe (TX) or codeword length (RX) to an LDPC
// matrix and the crypto operations to chain (spec §4.4). Grounded on the
// teacher's Router shape (pkg/bridge/router.go) stripped of its mutable
// registries: spec §4.4 requires the router be a pure function, so there
// is no shared state here and no mutex.
package router

import (
	"errors"

	"github.com/sleipnir-radio/sleipnir/internal/ldpc"
)

// ErrUnknownCodewordLength is returned by SelectRX when the observed
// codeword length matches neither the auth nor the voice matrix.
var ErrUnknownCodewordLength = errors.New("router: unknown codeword length")

// Policy is the TX-side snapshot the router consults; it is never mutated
// by the router itself (spec §4.4).
type Policy struct {
	SigningOn    bool
	EncryptionOn bool
}

// CryptoOps describes which per-frame crypto operations the caller must
// chain after LDPC encode/decode for a given slot.
type CryptoOps struct {
	Sign    bool // position 0 carries the ECDSA auth frame
	Encrypt bool // ChaCha20-Poly1305 seal/open applies to this slot
}

// Selection is the router's TX-direction result: which matrix to encode
// with, and which crypto operations apply to this slot.
type Selection struct {
	Matrix    *ldpc.Matrix
	CryptoOps CryptoOps
	AuthSlot  bool // true iff this slot carries the position-0 auth frame
	SyncSlot  bool // true iff this slot carries a sync frame (no signing)
}

// SelectTX returns the matrix and crypto operations for a frame at
// position within a superframe (spec §4.4): position 0 under signing
// chooses the auth matrix; a position-0 sync frame (no signing) still
// selects the voice matrix, since sync frames are rate 2/3; all other
// positions choose the voice matrix. The router never buffers frames.
func SelectTX(position int, policy Policy, isSync bool, authMatrix, voiceMatrix *ldpc.Matrix) Selection {
	if position == 0 {
		if policy.SigningOn {
			return Selection{Matrix: authMatrix, CryptoOps: CryptoOps{Sign: true}, AuthSlot: true}
		}
		if isSync {
			return Selection{Matrix: voiceMatrix, SyncSlot: true}
		}
	}
	return Selection{Matrix: voiceMatrix, CryptoOps: CryptoOps{Encrypt: policy.EncryptionOn}}
}

// SelectRX chooses the decode matrix by codeword length, as the RX router
// is rate-aware rather than position-aware: the demodulator contract
// (spec §6) hands the parser a codeword of either 768 or 576 bits before
// the frame's content (and therefore its position) is known.
func SelectRX(codewordLen int, authMatrix, voiceMatrix *ldpc.Matrix) (*ldpc.Matrix, error) {
	switch codewordLen {
	case authMatrix.CodewordLen():
		return authMatrix, nil
	case voiceMatrix.CodewordLen():
		return voiceMatrix, nil
	default:
		return nil, ErrUnknownCodewordLength
	}
}
