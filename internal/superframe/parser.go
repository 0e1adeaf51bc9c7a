package superframe

import (
	"context"
	"crypto/sha256"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/crypto"
	"github.com/sleipnir-radio/sleipnir/internal/frame"
	"github.com/sleipnir-radio/sleipnir/internal/ldpc"
	"github.com/sleipnir-radio/sleipnir/internal/router"
	"github.com/sleipnir-radio/sleipnir/internal/session"
)

// pendingFrame is one decoded, not-yet-delivered frame within the
// superframe currently being assembled on the RX side.
type pendingFrame struct {
	position uint8
	tag      frame.Tag
	data     []byte // DataSize bytes for voice/text/aprs
	macValid bool
}

// Parser is SuperframeParser: the RX counterpart to Assembler. It scans for
// acquisition while searching, then decodes one codeword per call while
// synced, buffering an entire superframe's frames and flushing them to the
// bus atomically at the position-24-to-0 boundary (spec §4.6), which is
// also the only point at which signature-gated delivery can be decided.
type Parser struct {
	Session     *session.State
	AuthMatrix  *ldpc.Matrix
	VoiceMatrix *ldpc.Matrix
	Bus         *bus.Bus

	TextReassembler *Reassembler
	AprsReassembler *Reassembler

	SigningOn        bool
	EncryptionOn     bool
	RequireSignature bool
	NonceReg         *crypto.NonceRegistry
	MaxDecodeIters   int

	// VerifySignature authenticates a superframe's 32-byte truncated
	// signature against digest, the SHA-256 of the concatenated
	// non-auth payload bytes. A nil hook means "unverifiable": real
	// verification from wire bytes alone is not possible for a
	// truncated, R-only signature (spec §9), so the zero value always
	// reports false rather than silently treating every superframe as
	// authentic.
	VerifySignature func(digest [32]byte, wireSig [crypto.SignatureSize]byte) bool

	position       int
	frames         []pendingFrame
	digestInput    []byte
	authSig        [crypto.SignatureSize]byte
	haveAuthSig    bool
	remoteCallsign string

	// predictedCounter is this superframe's counter value. It is seeded on
	// acquisition and incremented once per completed superframe; an
	// explicit sync frame (non-signing mode only) resynchronizes it to the
	// wire value via Session.RecordCounterMatch. Under signing mode no
	// frame ever carries the counter explicitly, so prediction is the only
	// source.
	predictedCounter uint32
}

// NewParser constructs a Parser with sane defaults (32 bit-flip iterations,
// default-size reassemblers).
func NewParser(sess *session.State, auth, voice *ldpc.Matrix, b *bus.Bus, signingOn, encryptionOn, requireSignature bool, nonceReg *crypto.NonceRegistry) *Parser {
	return &Parser{
		Session:          sess,
		AuthMatrix:       auth,
		VoiceMatrix:      voice,
		Bus:              b,
		TextReassembler:  NewReassembler(ReassemblyTimeout),
		AprsReassembler:  NewReassembler(ReassemblyTimeout),
		SigningOn:        signingOn,
		EncryptionOn:     encryptionOn,
		RequireSignature: requireSignature,
		NonceReg:         nonceReg,
		MaxDecodeIters:   32,
		remoteCallsign:   sess.Callsign,
	}
}

// ProcessCodeword consumes one demodulated codeword (one byte per bit, per
// spec §6) and dispatches it according to the session's current sync state.
func (p *Parser) ProcessCodeword(ctx context.Context, codewordBits []byte) error {
	switch p.Session.SyncState() {
	case session.SyncSynced:
		return p.processSynced(ctx, codewordBits)
	default:
		return p.tryAcquire(ctx, codewordBits)
	}
}

// tryAcquire attempts sync acquisition per spec §4.6: either the codeword
// decodes cleanly against the auth matrix with zero residual syndrome
// (condition a, signing mode), or it decodes against the voice matrix to a
// valid sync frame bearing SyncMagic at position 0 (condition b).
func (p *Parser) tryAcquire(ctx context.Context, codewordBits []byte) error {
	matrix, err := router.SelectRX(len(codewordBits), p.AuthMatrix, p.VoiceMatrix)
	if err != nil {
		return nil // unrecognized codeword length; stay searching
	}

	result, err := matrix.DecodeHard(codewordBits, p.MaxDecodeIters)
	if err != nil || !result.Converged {
		return nil
	}

	if matrix == p.AuthMatrix {
		// Condition (a): a structurally valid auth frame. No counter is
		// carried by an auth slot, so the session counter is seeded at 0.
		p.Session.AcquireSync(0)
		p.predictedCounter = 0
		p.beginSuperframe()
		p.position = 1
		return nil
	}

	payload := bitsToBytes(result.InfoBits)
	var pf [frame.PayloadSize]byte
	copy(pf[:], payload)
	parsed, err := frame.Parse(pf, nil, [crypto.NonceSize]byte{}, nil, 0, false)
	if err != nil || parsed.Tag != frame.TagSync || !parsed.SyncPositionOK {
		return nil
	}

	p.Session.AcquireSync(parsed.SyncCounter)
	p.predictedCounter = parsed.SyncCounter
	p.beginSuperframe()
	p.position = 1
	return p.emitStatus(ctx, bus.StatusSyncAcquired, true)
}

// processSynced decodes one codeword at the current superframe position,
// buffers the result, and flushes the superframe once position 24 wraps
// back to 0.
func (p *Parser) processSynced(ctx context.Context, codewordBits []byte) error {
	pos := p.position
	counter := p.predictedCounter
	sel := router.SelectTX(pos, router.Policy{SigningOn: p.SigningOn, EncryptionOn: p.EncryptionOn}, false, p.AuthMatrix, p.VoiceMatrix)

	result, err := sel.Matrix.DecodeHard(codewordBits, p.MaxDecodeIters)
	if err != nil {
		return p.advance(ctx)
	}
	if !result.Converged {
		p.emitStatus(ctx, bus.StatusFrameCorrupt, false)
		return p.advance(ctx)
	}

	if pos == 0 && p.SigningOn {
		var sig [crypto.SignatureSize]byte
		copy(sig[:], bitsToBytes(result.InfoBits))
		p.authSig = sig
		p.haveAuthSig = true
		return p.advance(ctx)
	}

	payload := bitsToBytes(result.InfoBits)
	var pf [frame.PayloadSize]byte
	copy(pf[:], payload)

	var macKey *[crypto.KeySize]byte
	var nonce [crypto.NonceSize]byte
	aad := frame.AAD(counter, uint8(pos), callsignBytes(p.Session.Callsign))
	if sel.CryptoOps.Encrypt && p.Session.MacKey != nil && p.Session.NonceBase != nil {
		macKey = p.Session.MacKey
		nonce = crypto.DeriveNonce(*p.Session.NonceBase, counter, uint8(pos))
	}

	parsed, err := frame.Parse(pf, macKey, nonce, aad, counter, true)
	switch {
	case err == frame.ErrCounterReplay:
		p.Session.RecordCounterMismatch()
		p.emitStatus(ctx, bus.StatusFrameCorrupt, false)
		return p.advance(ctx)
	case err == frame.ErrSyncMagicInvalid:
		p.emitStatus(ctx, bus.StatusFrameCorrupt, false)
		return p.advance(ctx)
	case err == frame.ErrUnknownTag:
		p.emitStatus(ctx, bus.StatusFrameCorrupt, false)
		return p.advance(ctx)
	}

	if parsed.Tag == frame.TagSync {
		p.Session.RecordCounterMatch(parsed.SyncCounter)
		p.predictedCounter = parsed.SyncCounter
		return p.advance(ctx)
	}

	if macKey != nil {
		if parsed.MacValid {
			p.Session.RecordMacSuccess()
		} else {
			if lost := p.Session.RecordMacFailure(); lost {
				p.emitStatus(ctx, bus.StatusSyncLost, false)
			}
			p.emitStatus(ctx, bus.StatusMacInvalid, false)
		}
	}

	p.frames = append(p.frames, pendingFrame{
		position: uint8(pos),
		tag:      parsed.Tag,
		data:     parsed.Data,
		macValid: parsed.MacValid || macKey == nil,
	})
	p.digestInput = append(p.digestInput, pf[:]...)

	return p.advance(ctx)
}

// advance moves to the next position, flushing and rolling over the
// superframe at the position-24-to-0 boundary.
func (p *Parser) advance(ctx context.Context) error {
	p.position++
	if p.position < FramesPerSuperframe {
		return nil
	}
	err := p.flush(ctx)
	p.predictedCounter++
	p.TextReassembler.Expire(p.predictedCounter, p.Bus.StatusOut)
	p.AprsReassembler.Expire(p.predictedCounter, p.Bus.StatusOut)
	p.beginSuperframe()
	p.position = 0
	return err
}

func (p *Parser) beginSuperframe() {
	p.frames = nil
	p.digestInput = nil
	p.haveAuthSig = false
}

// flush delivers the buffered superframe's payloads to the bus in position
// order, then the superframe's summary status event. Per-frame status
// events (frame_corrupt, mac_invalid, sync_lost) are pushed by emitStatus
// as each codeword is processed, so they precede the superframe's user
// payloads. If signing is required and the signature does not verify, the
// entire superframe's user payloads are dropped (spec §4.6).
func (p *Parser) flush(ctx context.Context) error {
	signatureValid := true
	if p.SigningOn {
		if p.haveAuthSig && p.VerifySignature != nil {
			digest := sha256.Sum256(p.digestInput)
			signatureValid = p.VerifySignature(digest, p.authSig)
		} else {
			signatureValid = false
		}
	}

	if !(p.SigningOn && p.RequireSignature && !signatureValid) {
		for _, f := range p.frames {
			if !f.macValid {
				continue
			}
			p.deliver(ctx, f)
		}
	}

	kind := bus.StatusFrameOK
	if p.SigningOn && !signatureValid {
		kind = bus.StatusSignatureBad
	}
	return p.Bus.StatusOut.Push(ctx, bus.StatusEvent{
		Callsign:       p.remoteCallsign,
		Counter:        p.predictedCounter,
		Kind:           kind,
		SignatureValid: signatureValid,
	})
}

func (p *Parser) deliver(ctx context.Context, f pendingFrame) {
	switch f.tag {
	case frame.TagVoice:
		var of bus.OpusFrame
		copy(of.Data[:], f.data)
		of.Position = f.position
		p.Bus.AudioOut.Push(ctx, of)
	case frame.TagText:
		if msg, complete := p.TextReassembler.Accept(p.predictedCounter, f.data); complete {
			p.Bus.TextOut.Push(ctx, bus.Message{Data: msg, Position: f.position})
		}
	case frame.TagAPRS:
		if msg, complete := p.AprsReassembler.Accept(p.predictedCounter, f.data); complete {
			p.Bus.AprsOut.Push(ctx, bus.Message{Data: msg, Position: f.position})
		}
	}
}

func (p *Parser) emitStatus(ctx context.Context, kind string, signatureValid bool) error {
	return p.Bus.StatusOut.Push(ctx, bus.StatusEvent{
		Callsign:       p.remoteCallsign,
		Counter:        p.predictedCounter,
		Kind:           kind,
		SignatureValid: signatureValid,
	})
}
