// Package frame implements FrameCodec: building and parsing the 48-byte
// voice/text/APRS/sync payload and the 32-byte auth payload (spec §4.1,
// §6). Grounded on the teacher's offset-table wire-parsing idiom
// (pkg/protocol/dmrd.go, pkg/protocol/auth.go): named Offset* constants,
// Parse/Encode methods returning (T, error).
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sleipnir-radio/sleipnir/internal/crypto"
)

// Tag identifies the payload kind carried by a 48-byte frame.
type Tag byte

const (
	TagVoice Tag = 0x00
	TagAPRS  Tag = 0x01
	TagText  Tag = 0x02
	TagSync  Tag = 0xFF
)

func (t Tag) String() string {
	switch t {
	case TagVoice:
		return "voice"
	case TagAPRS:
		return "aprs"
	case TagText:
		return "text"
	case TagSync:
		return "sync"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(t))
	}
}

const (
	// PayloadSize is the size of a voice/text/APRS/sync frame payload.
	PayloadSize = 48
	// AuthPayloadSize is the size of the position-0 auth frame payload.
	AuthPayloadSize = 32
	// DataSize is the number of data bytes available after the tag byte
	// and before the MAC trailer in a voice/text/APRS payload.
	DataSize = 39

	tagOffset  = 0
	dataOffset = 1
	macOffset  = PayloadSize - crypto.WireTagSize
)

// SyncMagic is the fixed 8-byte pattern identifying a sync frame (spec §3, §6).
var SyncMagic = [8]byte{0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE, 0xBA, 0xBE}

// Failure kinds, per spec §4.1.
var (
	ErrUnknownTag       = errors.New("frame: unknown tag")
	ErrMacInvalid       = errors.New("frame: mac invalid")
	ErrSyncMagicInvalid = errors.New("frame: sync magic invalid")
	ErrCounterReplay    = errors.New("frame: counter replay")
)

// AAD builds the associated data bound into the per-frame AEAD: counter,
// position, and the 5-byte callsign (spec §4.1, §6).
func AAD(counter uint32, position uint8, callsign [5]byte) []byte {
	out := make([]byte, 4+1+5)
	binary.BigEndian.PutUint32(out[0:4], counter)
	out[4] = position
	copy(out[5:], callsign[:])
	return out
}

// BuildVoice builds a 48-byte voice payload from a 40-byte opaque Opus
// frame. If macKey is non-nil, the last 8 bytes carry the truncated
// Poly1305 tag over tag||data||aad; otherwise they are zero and the frame
// is plaintext.
func BuildVoice(opus [40]byte, macKey *[crypto.KeySize]byte, nonce [crypto.NonceSize]byte, aad []byte) [PayloadSize]byte {
	return buildDataFrame(TagVoice, opus[:], macKey, nonce, aad)
}

// BuildText builds a 48-byte text fragment payload. fragment must already
// contain the 3-byte fragment header followed by up to 36 bytes of body
// (spec §4.5, §6), left-padded/truncated to DataSize bytes by the caller.
func BuildText(fragment [DataSize]byte, macKey *[crypto.KeySize]byte, nonce [crypto.NonceSize]byte, aad []byte) [PayloadSize]byte {
	return buildDataFrame(TagText, fragment[:], macKey, nonce, aad)
}

// BuildAPRS builds a 48-byte APRS fragment payload.
func BuildAPRS(fragment [DataSize]byte, macKey *[crypto.KeySize]byte, nonce [crypto.NonceSize]byte, aad []byte) [PayloadSize]byte {
	return buildDataFrame(TagAPRS, fragment[:], macKey, nonce, aad)
}

func buildDataFrame(tag Tag, data []byte, macKey *[crypto.KeySize]byte, nonce [crypto.NonceSize]byte, aad []byte) [PayloadSize]byte {
	var out [PayloadSize]byte
	out[tagOffset] = byte(tag)
	copy(out[dataOffset:macOffset], data)

	if macKey != nil {
		macData := append([]byte{byte(tag)}, out[dataOffset:macOffset]...)
		macData = append(macData, aad...)
		tagBytes := sealTag(*macKey, nonce, macData)
		copy(out[macOffset:], tagBytes[:])
	}
	return out
}

// sealTag computes the truncated 8-byte authentication tag for a plaintext
// frame (no confidentiality, MAC-only use of the AEAD construction with an
// empty ciphertext and macData as AAD).
func sealTag(key [crypto.KeySize]byte, nonce [crypto.NonceSize]byte, macData []byte) [crypto.WireTagSize]byte {
	sealed := crypto.Seal(key, nonce, macData, nil)
	var out [crypto.WireTagSize]byte
	copy(out[:], sealed[len(sealed)-crypto.FullTagSize:][:crypto.WireTagSize])
	return out
}

// BuildSync builds a 48-byte sync payload carrying the magic and the
// current superframe counter (spec §3, §6). The remaining bytes, including
// the 32-byte padding, are zero.
func BuildSync(counter uint32) [PayloadSize]byte {
	var out [PayloadSize]byte
	copy(out[0:8], SyncMagic[:])
	binary.BigEndian.PutUint32(out[8:12], counter)
	binary.BigEndian.PutUint32(out[12:16], 0) // position, always 0 (spec §3)
	return out
}

// BuildAuth builds the 32-byte auth payload from a truncated signature.
func BuildAuth(sig [crypto.SignatureSize]byte) [AuthPayloadSize]byte {
	return sig
}

// ParsedFrame is the result of parsing a 48-byte payload.
type ParsedFrame struct {
	Tag             Tag
	Data            []byte // DataSize bytes for voice/text/aprs; unused for sync
	MacValid        bool
	Plaintext       bool // true if Parse was called without a macKey
	SyncCounter     uint32
	SyncPositionOK  bool
}

// Parse validates and decodes a 48-byte payload per spec §4.1's validation
// order: (a) legal tag, (b) MAC (if present and tag != sync), (c) sync
// magic/position.
func Parse(payload [PayloadSize]byte, macKey *[crypto.KeySize]byte, nonce [crypto.NonceSize]byte, aad []byte, lastCounter uint32, haveLastCounter bool) (ParsedFrame, error) {
	tag := Tag(payload[tagOffset])

	switch tag {
	case TagVoice, TagAPRS, TagText:
		pf := ParsedFrame{Tag: tag, Data: append([]byte{}, payload[dataOffset:macOffset]...)}
		if macKey == nil {
			pf.Plaintext = true
			return pf, nil
		}
		macData := append([]byte{byte(tag)}, payload[dataOffset:macOffset]...)
		macData = append(macData, aad...)
		wantTag := payload[macOffset:]
		if !verifyTag(*macKey, nonce, macData, wantTag) {
			return pf, ErrMacInvalid
		}
		pf.MacValid = true
		return pf, nil

	case TagSync:
		pf := ParsedFrame{Tag: TagSync}
		if [8]byte(payload[0:8]) != SyncMagic {
			return pf, ErrSyncMagicInvalid
		}
		counter := binary.BigEndian.Uint32(payload[8:12])
		position := binary.BigEndian.Uint32(payload[12:16])
		pf.SyncCounter = counter
		pf.SyncPositionOK = position == 0
		if haveLastCounter && isReplay(lastCounter, counter) {
			return pf, ErrCounterReplay
		}
		return pf, nil

	default:
		return ParsedFrame{}, ErrUnknownTag
	}
}

func verifyTag(key [crypto.KeySize]byte, nonce [crypto.NonceSize]byte, macData []byte, wantTag []byte) bool {
	_, err := crypto.Open(key, nonce, macData, wantTag, crypto.WireTagSize)
	return err == nil
}

// isReplay reports whether newCounter represents a replay relative to
// lastCounter: a backward step of less than half the 32-bit range, per
// spec §3/§8.
func isReplay(lastCounter, newCounter uint32) bool {
	delta := lastCounter - newCounter
	return delta != 0 && delta < (1<<31)
}

// ParseAuth returns the raw 32-byte truncated signature carried by a
// position-0 auth frame. It cannot, by itself, be cryptographically
// verified (spec §9) — see internal/crypto.Verify, which operates on the
// full in-process Signature.
func ParseAuth(payload [AuthPayloadSize]byte) [crypto.SignatureSize]byte {
	return payload
}
