package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
	"github.com/sleipnir-radio/sleipnir/internal/logging"
	"github.com/sleipnir-radio/sleipnir/internal/metrics"
)

type fakeCodec struct {
	mu      sync.Mutex
	emitted int
	max     int
	decoded []bus.OpusFrame
}

func (f *fakeCodec) EncodeNext(ctx context.Context) (bus.OpusFrame, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitted >= f.max {
		return bus.OpusFrame{}, false, nil
	}
	f.emitted++
	return bus.OpusFrame{Position: uint8(f.emitted)}, true, nil
}

func (f *fakeCodec) DecodeFrame(ctx context.Context, frame bus.OpusFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decoded = append(f.decoded, frame)
	return nil
}

type fakeChannel struct {
	mu         sync.Mutex
	transmits  int
	codewords  chan []byte
}

func (f *fakeChannel) Transmit(ctx context.Context, codeword []byte) error {
	f.mu.Lock()
	f.transmits++
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) ReceiveCodeword(ctx context.Context) ([]byte, error) {
	select {
	case cw, ok := <-f.codewords:
		if !ok {
			return nil, io.EOF
		}
		return cw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAudioIngestLoopFeedsBus(t *testing.T) {
	b := bus.New()
	codec := &fakeCodec{max: 3}
	engine := NewEngine(b, codec, &fakeChannel{}, Observers{}, logging.New(logging.Config{Level: "error"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := engine.audioIngestLoop(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, ok := b.AudioIn.TryPop(); !ok {
			t.Fatalf("expected frame %d on audio_in", i)
		}
	}
}

func TestAudioEgressLoopDrainsBus(t *testing.T) {
	b := bus.New()
	codec := &fakeCodec{}
	engine := NewEngine(b, codec, &fakeChannel{}, Observers{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go engine.audioEgressLoop(ctx)

	_ = b.AudioOut.Push(context.Background(), bus.OpusFrame{Position: 7})
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	codec.mu.Lock()
	defer codec.mu.Unlock()
	if len(codec.decoded) != 1 || codec.decoded[0].Position != 7 {
		t.Fatalf("expected one decoded frame with position 7, got %+v", codec.decoded)
	}
}

func TestStatusFanOutDispatchesToMetrics(t *testing.T) {
	b := bus.New()
	collector := metrics.NewCollector()
	engine := NewEngine(b, &fakeCodec{}, &fakeChannel{}, Observers{Metrics: collector}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go engine.statusFanOutLoop(ctx)

	_ = b.StatusOut.Push(context.Background(), bus.StatusEvent{Kind: bus.StatusFrameOK})
	_ = b.StatusOut.Push(context.Background(), bus.StatusEvent{Kind: bus.StatusSyncLost})
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	snap := collector.Snapshot()
	if snap.FramesOK != 1 || snap.SyncLost != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
