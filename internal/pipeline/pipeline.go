// Package pipeline wires the opaque audio-codec and bit-channel
// collaborators spec §6 describes to the SuperframeAssembler/Parser and
// the MessageBus. Grounded on the teacher's pkg/network/server.go: a
// Start(ctx) entrypoint that spins up its loops as goroutines reporting
// onto a shared error channel, and shuts down cleanly on context
// cancellation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/logging"
	"github.com/sleipnir-radio/sleipnir/internal/metrics"
	"github.com/sleipnir-radio/sleipnir/internal/monitor"
	"github.com/sleipnir-radio/sleipnir/internal/superframe"
	"github.com/sleipnir-radio/sleipnir/internal/telemetry"
)

// AudioCodec is the opaque upstream/downstream Opus collaborator (spec
// §6): 8 kHz mono audio in, 40-byte Opus frames out, and the reverse. The
// core never looks inside an OpusFrame's payload.
type AudioCodec interface {
	// EncodeNext blocks until the next 40ms audio window is ready and
	// returns its Opus-encoded frame, or returns ok=false when the
	// upstream audio source is exhausted/closed.
	EncodeNext(ctx context.Context) (frame bus.OpusFrame, ok bool, err error)
	// DecodeFrame hands a received Opus frame to the downstream decoder
	// (e.g. for playback).
	DecodeFrame(ctx context.Context, frame bus.OpusFrame) error
}

// BitChannel is the opaque FSK modulator/demodulator collaborator (spec
// §6): it carries LDPC codewords as one-byte-per-bit hard decisions in
// each direction. Symbol timing recovery and the analog front end live
// entirely on the far side of this interface.
type BitChannel interface {
	// Transmit sends one LDPC codeword (hard bits, one byte per bit).
	Transmit(ctx context.Context, codeword []byte) error
	// ReceiveCodeword blocks until the next demodulated codeword (hard
	// bits, one byte per bit) is available. The demodulator, not the
	// caller, determines its length from symbol framing. While acquiring
	// sync the parser selects the matrix by that length (router.SelectRX);
	// once synced it selects by superframe position (router.SelectTX).
	ReceiveCodeword(ctx context.Context) ([]byte, error)
}

// Observers bundles the optional downstream consumers of status_out
// events. Engine is the bus's single StatusOut consumer (queues are
// single-receiver per spec §4.7), fanning each event out to whichever of
// these are non-nil rather than letting each subsystem drain the queue
// itself.
type Observers struct {
	Metrics   *metrics.Collector
	Monitor   *monitor.Hub
	Telemetry *telemetry.Publisher
}

// Engine is the pipeline harness: it owns the bus, drives one of an
// Assembler (TX) or Parser (RX), and bridges it to the codec/bit-channel
// collaborators.
type Engine struct {
	Bus       *bus.Bus
	Codec     AudioCodec
	Channel   BitChannel
	Observers Observers
	Log       *logging.Logger

	// TickInterval is the per-frame period (40ms by default). The TX loop
	// composes one superframe every TickInterval*FramesPerSuperframe, i.e.
	// one second per superframe at the default.
	TickInterval time.Duration
}

// NewEngine constructs an Engine. log may be nil.
func NewEngine(b *bus.Bus, codec AudioCodec, channel BitChannel, obs Observers, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.New(logging.Config{Level: "info"})
	}
	return &Engine{
		Bus:          b,
		Codec:        codec,
		Channel:      channel,
		Observers:    obs,
		Log:          log.WithComponent("pipeline"),
		TickInterval: 40 * time.Millisecond,
	}
}

// RunTX drives a TX session: an audio-ingest loop that feeds audio_in, a
// superframe-composition loop that pops codewords from the assembler and
// hands them to the bit channel, and the shared status fan-out loop.
// Returns when ctx is cancelled or a loop errors.
func (e *Engine) RunTX(ctx context.Context, asm *superframe.Assembler) error {
	errCh := make(chan error, 2)

	go func() { errCh <- e.audioIngestLoop(ctx) }()
	go func() { errCh <- e.txSuperframeLoop(ctx, asm) }()
	go e.statusFanOutLoop(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunRX drives an RX session: a demodulated-codeword loop feeding the
// parser, an audio-egress loop draining audio_out to the codec, and the
// shared status fan-out loop. Returns when ctx is cancelled or a loop
// errors.
func (e *Engine) RunRX(ctx context.Context, parser *superframe.Parser) error {
	errCh := make(chan error, 2)

	go func() { errCh <- e.rxCodewordLoop(ctx, parser) }()
	go func() { errCh <- e.audioEgressLoop(ctx) }()
	go e.statusFanOutLoop(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// audioIngestLoop pulls encoded frames from the audio codec and pushes
// them onto audio_in for the assembler to consume (spec §4.7's "codec
// task": CPU-bound, never holds locks).
func (e *Engine) audioIngestLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		of, ok, err := e.Codec.EncodeNext(ctx)
		if err != nil {
			e.Log.Error("audio encode failed", logging.Error(err))
			continue
		}
		if !ok {
			return nil
		}
		if err := e.Bus.AudioIn.Push(ctx, of); err != nil {
			return err
		}
	}
}

// txSuperframeLoop paces superframe composition at TickInterval*25 and
// hands each resulting codeword to the bit channel in order.
func (e *Engine) txSuperframeLoop(ctx context.Context, asm *superframe.Assembler) error {
	interval := e.TickInterval * superframe.FramesPerSuperframe
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			codewords, err := asm.BuildSuperframe(ctx)
			if err != nil {
				e.Log.Error("superframe composition failed", logging.Error(err))
				continue
			}
			if codewords == nil {
				continue
			}
			for _, cw := range codewords {
				if err := e.Channel.Transmit(ctx, cw); err != nil {
					return fmt.Errorf("pipeline: bit channel transmit: %w", err)
				}
			}
			if e.Observers.Metrics != nil {
				e.Observers.Metrics.SuperframeSent()
			}
		}
	}
}

// rxCodewordLoop pulls demodulated codewords from the bit channel and
// feeds them to the parser one at a time.
func (e *Engine) rxCodewordLoop(ctx context.Context, parser *superframe.Parser) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		codeword, err := e.Channel.ReceiveCodeword(ctx)
		if err != nil {
			return fmt.Errorf("pipeline: bit channel receive: %w", err)
		}
		if err := parser.ProcessCodeword(ctx, codeword); err != nil {
			return fmt.Errorf("pipeline: codeword processing: %w", err)
		}
	}
}

// audioEgressLoop drains audio_out and hands each decoded frame to the
// codec for playback.
func (e *Engine) audioEgressLoop(ctx context.Context) error {
	for {
		of, err := e.Bus.AudioOut.Pop(ctx)
		if err != nil {
			return err
		}
		if err := e.Codec.DecodeFrame(ctx, of); err != nil {
			e.Log.Error("audio decode failed", logging.Error(err))
		}
		if e.Observers.Metrics != nil {
			e.Observers.Metrics.SuperframeReceived()
		}
	}
}

// statusFanOutLoop is the bus's single StatusOut consumer (spec §4.7
// forbids multiple receivers on one queue). It fans each event out to
// whichever observers are configured, preserving the arrival order the
// parser/assembler produced it in.
func (e *Engine) statusFanOutLoop(ctx context.Context) {
	for {
		ev, err := e.Bus.StatusOut.Pop(ctx)
		if err != nil {
			return
		}
		e.dispatchStatus(ev)
	}
}

func (e *Engine) dispatchStatus(ev bus.StatusEvent) {
	if e.Observers.Metrics != nil {
		switch ev.Kind {
		case bus.StatusFrameOK:
			e.Observers.Metrics.FrameOK()
		case bus.StatusMacInvalid:
			e.Observers.Metrics.MacInvalid()
		case bus.StatusFrameCorrupt:
			e.Observers.Metrics.FrameCorrupt()
		case bus.StatusSignatureBad:
			e.Observers.Metrics.SignatureInvalid()
		case bus.StatusSyncAcquired:
			e.Observers.Metrics.SyncAcquired()
		case bus.StatusSyncLost:
			e.Observers.Metrics.SyncLost()
		}
	}
	if e.Observers.Monitor != nil {
		e.Observers.Monitor.BroadcastStatus(ev)
	}
	if e.Observers.Telemetry != nil {
		if err := e.Observers.Telemetry.PublishStatus(ev); err != nil {
			e.Log.Error("telemetry publish failed", logging.Error(err))
		}
	}
}
