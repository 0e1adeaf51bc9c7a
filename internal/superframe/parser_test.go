package superframe

import (
	"context"
	"testing"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/crypto"
	"github.com/sleipnir-radio/sleipnir/internal/session"
)

func TestParserAcquiresSyncFromSyncFrameAndDecodesSuperframe(t *testing.T) {
	auth, voice := testMatrices()
	txSess := session.New("TXCALL")
	txBus := bus.New()
	a := NewAssembler(txSess, auth, voice, txBus, DefaultSyncInterval, false, false, crypto.NewNonceRegistry())
	a.PressPTT()

	codewords, err := a.BuildSuperframe(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rxSess := session.New("RXCALL")
	rxBus := bus.New()
	p := NewParser(rxSess, auth, voice, rxBus, false, false, false, crypto.NewNonceRegistry())

	ctx := context.Background()
	for i, cw := range codewords {
		if err := p.ProcessCodeword(ctx, cw); err != nil {
			t.Fatalf("position %d: %v", i, err)
		}
	}

	if rxSess.SyncState() != session.SyncSynced {
		t.Fatalf("expected synced after a full superframe, got %v", rxSess.SyncState())
	}

	var sawAcquired, sawFrameOK bool
	for rxBus.StatusOut.Len() > 0 {
		ev, _ := rxBus.StatusOut.Pop(ctx)
		switch ev.Kind {
		case bus.StatusSyncAcquired:
			sawAcquired = true
		case bus.StatusFrameOK:
			sawFrameOK = true
		}
	}
	if !sawAcquired {
		t.Fatalf("expected a sync_acquired status event")
	}
	if !sawFrameOK {
		t.Fatalf("expected a frame_ok status event after the first full superframe")
	}
}

func TestParserAcquiresFromAuthFrameUnderSigning(t *testing.T) {
	auth, voice := testMatrices()
	txSess := session.New("TXCALL")
	priv := generateTestKey(t)
	txSess.SigningKey = priv
	txBus := bus.New()
	a := NewAssembler(txSess, auth, voice, txBus, DefaultSyncInterval, true, false, crypto.NewNonceRegistry())
	a.PressPTT()

	codewords, err := a.BuildSuperframe(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rxSess := session.New("RXCALL")
	rxBus := bus.New()
	p := NewParser(rxSess, auth, voice, rxBus, true, false, false, crypto.NewNonceRegistry())

	ctx := context.Background()
	if err := p.ProcessCodeword(ctx, codewords[0]); err != nil {
		t.Fatalf("position 0: %v", err)
	}
	if rxSess.SyncState() != session.SyncSynced {
		t.Fatalf("expected synced immediately after decoding a valid auth frame, got %v", rxSess.SyncState())
	}

	for i := 1; i < len(codewords); i++ {
		if err := p.ProcessCodeword(ctx, codewords[i]); err != nil {
			t.Fatalf("position %d: %v", i, err)
		}
	}

	var sawBadSignature bool
	for rxBus.StatusOut.Len() > 0 {
		ev, _ := rxBus.StatusOut.Pop(ctx)
		if ev.Kind == bus.StatusSignatureBad {
			sawBadSignature = true
		}
	}
	if !sawBadSignature {
		t.Fatalf("expected signature_invalid with no VerifySignature hook wired")
	}
}

func TestParserDeliversVoiceFramesToAudioOut(t *testing.T) {
	auth, voice := testMatrices()
	txSess := session.New("TXCALL")
	txBus := bus.New()
	a := NewAssembler(txSess, auth, voice, txBus, 1000, false, false, crypto.NewNonceRegistry())
	a.PressPTT()
	var opus bus.OpusFrame
	opus.Data[0] = 0xAB
	txBus.AudioIn.Push(context.Background(), opus)

	codewords, err := a.BuildSuperframe(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	rxSess := session.New("RXCALL")
	rxBus := bus.New()
	p := NewParser(rxSess, auth, voice, rxBus, false, false, false, crypto.NewNonceRegistry())
	p.Session.AcquireSync(0)
	p.position = 0

	ctx := context.Background()
	for _, cw := range codewords {
		if err := p.ProcessCodeword(ctx, cw); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if rxBus.AudioOut.Len() == 0 {
		t.Fatalf("expected at least one delivered voice frame")
	}
}
