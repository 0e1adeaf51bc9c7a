// Package superframe implements SuperframeAssembler (TX) and
// SuperframeParser (RX), the core 25-frame-per-second state machines
// (spec §4.5, §4.6). Grounded on the teacher's pkg/bridge trio:
// router.go's priority-dispatch shape, stream.go's dedup-tracker idiom
// (adapted here to fragment reassembly), and timer.go's per-key deadline
// management (adapted to superframe-counter deadlines instead of
// wall-clock ones, since this waveform's clock is the superframe tick).
package superframe

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/crypto"
	"github.com/sleipnir-radio/sleipnir/internal/frame"
	"github.com/sleipnir-radio/sleipnir/internal/ldpc"
	"github.com/sleipnir-radio/sleipnir/internal/router"
	"github.com/sleipnir-radio/sleipnir/internal/session"
)

// FramesPerSuperframe is the fixed superframe length (spec §3).
const FramesPerSuperframe = 25

// DefaultSyncInterval is the default cadence, in superframes, at which a
// sync frame occupies position 0 when signing is inactive (spec §3).
const DefaultSyncInterval = 5

// PTTState is the assembler's lifecycle (spec §4.5).
type PTTState int

const (
	PTTIdle PTTState = iota
	PTTActive
	PTTDraining
)

var ErrNoPrivateKey = errors.New("superframe: signing_on requires a session signing key")

// Assembler is SuperframeAssembler: it owns the monotonic counter, the
// PTT-driven lifecycle, and the priority-queue draining that composes one
// 25-frame superframe per tick (spec §4.5).
type Assembler struct {
	Session      *session.State
	AuthMatrix   *ldpc.Matrix
	VoiceMatrix  *ldpc.Matrix
	Bus          *bus.Bus
	SyncInterval uint32
	SigningOn    bool
	EncryptionOn bool
	NonceReg     *crypto.NonceRegistry

	counter     uint32
	ptt         PTTState
	fragSeq     byte
	pendingAPRS []fragmentPayload
	pendingText []fragmentPayload
}

// NewAssembler constructs an Assembler in the idle lifecycle state.
func NewAssembler(sess *session.State, auth, voice *ldpc.Matrix, b *bus.Bus, syncInterval uint32, signingOn, encryptionOn bool, nonceReg *crypto.NonceRegistry) *Assembler {
	if syncInterval == 0 {
		syncInterval = DefaultSyncInterval
	}
	return &Assembler{
		Session:      sess,
		AuthMatrix:   auth,
		VoiceMatrix:  voice,
		Bus:          b,
		SyncInterval: syncInterval,
		SigningOn:    signingOn,
		EncryptionOn: encryptionOn,
		NonceReg:     nonceReg,
		ptt:          PTTIdle,
	}
}

// PressPTT transitions the assembler to actively composing superframes.
func (a *Assembler) PressPTT() {
	if a.ptt == PTTIdle {
		a.ptt = PTTActive
	}
}

// ReleasePTT requests a return to idle. The superframe in flight (if any)
// still completes before the assembler actually goes idle, since
// BuildSuperframe always finishes what it starts (spec §4.5).
func (a *Assembler) ReleasePTT() {
	if a.ptt == PTTActive {
		a.ptt = PTTDraining
	}
}

// PTTState reports the current lifecycle state.
func (a *Assembler) PTTState() PTTState { return a.ptt }

type slotContent struct {
	isSync   bool
	tag      frame.Tag
	opus     [40]byte
	fragment [frame.DataSize]byte
}

type fragmentPayload struct {
	data [frame.DataSize]byte
}

// BuildSuperframe composes and LDPC-encodes the next 25-frame superframe.
// It returns nil, nil when the assembler is idle (nothing to send). Each
// returned codeword is a one-byte-per-bit slice in transmission order.
func (a *Assembler) BuildSuperframe(ctx context.Context) ([][]byte, error) {
	if a.ptt == PTTIdle {
		return nil, nil
	}
	if a.SigningOn && a.Session.SigningKey == nil {
		return nil, ErrNoPrivateKey
	}

	slots := make([]slotContent, FramesPerSuperframe)
	// fillStart is where popNextSlot-sourced content begins: position 0 is
	// skipped when it instead carries a sync frame (set below) or the auth
	// frame (built separately after the encode loop, once the digest over
	// every other payload is known).
	fillStart := 0
	// encodeStart is where the main encode loop begins. Position 0 under
	// signing is encoded separately after the loop; a sync frame at
	// position 0 is still encoded in the main loop like any other slot.
	encodeStart := 0
	switch {
	case a.SigningOn:
		fillStart = 1
		encodeStart = 1
	case a.counter%a.SyncInterval == 0:
		slots[0] = slotContent{isSync: true}
		fillStart = 1
	}
	for i := fillStart; i < FramesPerSuperframe; i++ {
		slots[i] = a.popNextSlot()
	}

	payloads := make([][frame.PayloadSize]byte, FramesPerSuperframe)
	codewords := make([][]byte, FramesPerSuperframe)
	var digestInput []byte

	for i := encodeStart; i < FramesPerSuperframe; i++ {
		pos := uint8(i)
		sel := router.SelectTX(i, router.Policy{SigningOn: a.SigningOn, EncryptionOn: a.EncryptionOn}, slots[i].isSync, a.AuthMatrix, a.VoiceMatrix)

		var payload [frame.PayloadSize]byte
		if slots[i].isSync {
			payload = frame.BuildSync(a.counter)
		} else {
			var macKey *[crypto.KeySize]byte
			var nonce [crypto.NonceSize]byte
			aad := frame.AAD(a.counter, pos, callsignBytes(a.Session.Callsign))
			if sel.CryptoOps.Encrypt && a.Session.MacKey != nil && a.Session.NonceBase != nil {
				macKey = a.Session.MacKey
				nonce = crypto.DeriveNonce(*a.Session.NonceBase, a.counter, pos)
				if err := a.NonceReg.Check(*macKey, nonce); err != nil {
					return nil, fmt.Errorf("superframe: position %d: %w", pos, err)
				}
			}
			switch slots[i].tag {
			case frame.TagText:
				payload = frame.BuildText(slots[i].fragment, macKey, nonce, aad)
			case frame.TagAPRS:
				payload = frame.BuildAPRS(slots[i].fragment, macKey, nonce, aad)
			default:
				payload = frame.BuildVoice(slots[i].opus, macKey, nonce, aad)
			}
		}
		payloads[i] = payload
		digestInput = append(digestInput, payload[:]...)

		cw, err := sel.Matrix.Encode(bytesToBits(payload[:]))
		if err != nil {
			return nil, fmt.Errorf("superframe: position %d: %w", pos, err)
		}
		codewords[i] = cw
	}

	if a.SigningOn {
		digest := sha256.Sum256(digestInput)
		sig, err := crypto.Sign(digest, a.Session.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("superframe: signing position 0: %w", err)
		}
		authPayload := frame.BuildAuth(sig.Wire())
		cw, err := a.AuthMatrix.Encode(bytesToBits(authPayload[:]))
		if err != nil {
			return nil, fmt.Errorf("superframe: encoding auth frame: %w", err)
		}
		codewords[0] = cw
	}

	a.counter++
	if a.ptt == PTTDraining {
		a.ptt = PTTIdle
	}
	return codewords, nil
}

// popNextSlot drains the priority queues APRS > Text > Voice (spec §4.5
// step 2). A message too long for one slot is split into consecutive
// fragments that are exhausted before any other message of the same
// queue is sourced, so fragments of different messages are never
// interleaved. If every queue is empty, it returns a silence voice frame
// (an all-zero Opus frame, tag 0x00).
func (a *Assembler) popNextSlot() slotContent {
	if fp, ok := a.nextAPRSFragment(); ok {
		return slotContent{tag: frame.TagAPRS, fragment: fp.data}
	}
	if fp, ok := a.nextTextFragment(); ok {
		return slotContent{tag: frame.TagText, fragment: fp.data}
	}
	if of, ok := a.Bus.AudioIn.TryPop(); ok {
		return slotContent{tag: frame.TagVoice, opus: of.Data}
	}
	return slotContent{tag: frame.TagVoice}
}

func (a *Assembler) nextAPRSFragment() (fragmentPayload, bool) {
	if len(a.pendingAPRS) > 0 {
		fp := a.pendingAPRS[0]
		a.pendingAPRS = a.pendingAPRS[1:]
		return fp, true
	}
	msg, ok := a.Bus.AprsIn.TryPop()
	if !ok {
		return fragmentPayload{}, false
	}
	frags := splitFragments(a.nextFragSeq(), msg.Data)
	a.pendingAPRS = frags[1:]
	return frags[0], true
}

func (a *Assembler) nextTextFragment() (fragmentPayload, bool) {
	if len(a.pendingText) > 0 {
		fp := a.pendingText[0]
		a.pendingText = a.pendingText[1:]
		return fp, true
	}
	msg, ok := a.Bus.TextIn.TryPop()
	if !ok {
		return fragmentPayload{}, false
	}
	frags := splitFragments(a.nextFragSeq(), msg.Data)
	a.pendingText = frags[1:]
	return frags[0], true
}

func (a *Assembler) nextFragSeq() byte {
	seq := a.fragSeq
	a.fragSeq++
	return seq
}

// fragmentBody is the usable payload per fragment slot: DataSize minus the
// 3-byte (seq_id, fragment_index, fragment_count) header (spec §4.5).
const fragmentBody = frame.DataSize - 3

func splitFragments(seqID byte, data []byte) []fragmentPayload {
	count := (len(data) + fragmentBody - 1) / fragmentBody
	if count == 0 {
		count = 1
	}
	out := make([]fragmentPayload, count)
	for i := 0; i < count; i++ {
		out[i].data[0] = seqID
		out[i].data[1] = byte(i)
		out[i].data[2] = byte(count)
		start := i * fragmentBody
		end := start + fragmentBody
		if end > len(data) {
			end = len(data)
		}
		if start < len(data) {
			copy(out[i].data[3:], data[start:end])
		}
	}
	return out
}
