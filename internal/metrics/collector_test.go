package metrics

import "testing"

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.FrameOK()
	c.FrameOK()
	c.MacInvalid()
	c.FrameCorrupt()
	c.SignatureInvalid()
	c.SyncAcquired()
	c.SyncLost()
	c.DecoderDiverged()
	c.SuperframeSent()
	c.SuperframeReceived()
	c.ReassemblyTimeout()

	snap := c.Snapshot()
	if snap.FramesOK != 2 {
		t.Errorf("expected FramesOK=2, got %d", snap.FramesOK)
	}
	if snap.MacInvalid != 1 || snap.FrameCorrupt != 1 || snap.SignatureInvalid != 1 {
		t.Errorf("unexpected frame-level counters: %+v", snap)
	}
	if snap.SyncAcquired != 1 || snap.SyncLost != 1 {
		t.Errorf("unexpected sync counters: %+v", snap)
	}
	if snap.DecoderDiverged != 1 {
		t.Errorf("expected DecoderDiverged=1, got %d", snap.DecoderDiverged)
	}
	if snap.SuperframesSent != 1 || snap.SuperframesRecv != 1 {
		t.Errorf("unexpected superframe counters: %+v", snap)
	}
	if snap.ReassemblyTimeout != 1 {
		t.Errorf("expected ReassemblyTimeout=1, got %d", snap.ReassemblyTimeout)
	}
}
